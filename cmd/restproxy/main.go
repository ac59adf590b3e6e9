// restproxy is a small caching REST proxy built on restsource. It exists both
// as a demo of the library and as a handy local cache for flaky upstreams:
// every inbound request gets its own DataSource instance (the same lifecycle a
// GraphQL server would use per request), while the shared key/value cache and
// the HTTP connection pool live for the process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/jordanhubbard/restsource"
	"github.com/jordanhubbard/restsource/internal/logging"
	"github.com/jordanhubbard/restsource/internal/ratelimit"
	"github.com/jordanhubbard/restsource/keyvalue"
	"github.com/jordanhubbard/restsource/metrics"
	"github.com/jordanhubbard/restsource/tracing"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel)

	shutdown, err := tracing.Setup(tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: "restproxy",
	})
	if err != nil {
		logger.Error("tracing setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(ctx)
	}()

	kv, closeKV, err := openKV(cfg)
	if err != nil {
		logger.Error("cache backend setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeKV()

	m := metrics.New()

	// One client for the whole process so every per-request DataSource
	// shares a single keep-alive pool.
	client := &http.Client{
		Transport: tracing.HTTPTransport(nil),
		Timeout:   30 * time.Second,
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newRouter(cfg, logger, kv, m, client),
	}

	go func() {
		logger.Info("restproxy listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("origin", cfg.Origin),
			slog.String("kv_backend", cfg.KVBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info("restproxy stopped")
}

func openKV(cfg config) (keyvalue.Cache, func(), error) {
	switch cfg.KVBackend {
	case "sqlite":
		s, err := keyvalue.NewSQLite(cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return keyvalue.NewRedis(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil
	default:
		m := keyvalue.NewMemory(10000)
		return m, m.Stop, nil
	}
}

func newRouter(cfg config, logger *slog.Logger, kv keyvalue.Cache, m *metrics.Metrics, client *http.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET"}}))
	r.Use(logging.RequestLogger(logger))
	r.Use(tracing.Middleware("restproxy.request"))
	if cfg.RateLimitRPS > 0 {
		limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, time.Second)
		r.Use(limiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	cacheOpts := &restsource.CacheOptions{
		MaxTTL:        time.Duration(cfg.MaxTTLSecs) * time.Second,
		MaxTTLIfError: time.Duration(cfg.MaxTTLIfErrorSecs) * time.Second,
	}

	r.Get("/proxy/*", func(w http.ResponseWriter, req *http.Request) {
		ds, err := restsource.New(restsource.Config{
			BaseURL:    cfg.Origin,
			HTTPClient: client,
			KV:         kv,
			Logger:     logger,
			Metrics:    m,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		resp, err := ds.Get(req.Context(), "/"+chi.URLParam(req, "*"), &restsource.RequestOptions{
			Query: req.URL.Query(),
			Cache: cacheOpts,
		})
		if err != nil {
			writeUpstreamError(w, err)
			return
		}

		if ct := resp.Header("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if resp.FromCache {
			w.Header().Set("X-Cache-Status", "HIT")
		} else {
			w.Header().Set("X-Cache-Status", "MISS")
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	})

	return r
}

// writeUpstreamError maps the restsource error taxonomy onto proxy responses.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var statusErr *restsource.HTTPStatusError
	var abortErr *restsource.AbortError
	switch {
	case errors.As(err, &statusErr):
		if ct := statusErr.Response.Header("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(statusErr.StatusCode)
		_, _ = w.Write(statusErr.Response.Body)
	case errors.As(err, &abortErr):
		http.Error(w, "request cancelled", 499)
	default:
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
}
