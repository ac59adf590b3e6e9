// Package restsource is a base layer for building per-request HTTP data
// sources, typically one instance per GraphQL request. On top of a plain
// transport it adds in-flight de-duplication scoped to the instance, a shared
// TTL response cache with a stale-if-error fallback window, and a small set of
// lifecycle hooks for customization.
//
// The shared cache is consulted first (a hit skips the network entirely),
// then the instance's in-flight map, and only then does a live transport call
// happen. Successful cache-eligible responses are written through to both the
// primary and the stale entry without blocking the caller.
package restsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jordanhubbard/restsource/internal/lru"
	"github.com/jordanhubbard/restsource/keyvalue"
	"github.com/jordanhubbard/restsource/metrics"
)

const (
	defaultMemoCapacity     = 100
	defaultCacheReadTimeout = 500 * time.Millisecond
	cacheWriteTimeout       = 2 * time.Second

	stalePrefix = "stale:"
)

// Config configures one DataSource instance.
type Config struct {
	// BaseURL is the origin all paths resolve against, e.g.
	// "https://api.example.com". Required.
	BaseURL string

	// HTTPClient backs the default transport. Inject the process-wide
	// client here so every instance shares one keep-alive pool. Ignored
	// when Transport is set.
	HTTPClient *http.Client
	// Transport overrides the default net/http transport entirely.
	Transport Transport

	// KV is the shared response cache. nil disables shared caching for
	// every call on the instance.
	KV keyvalue.Cache

	// Headers are instance-level defaults merged under per-call headers.
	Headers map[string]string

	// MemoCapacity bounds the in-flight map. Default 100.
	MemoCapacity int
	// CacheReadTimeout bounds every shared-cache lookup so a slow backend
	// cannot stall the live path. On timeout the lookup counts as a miss.
	// Default 500ms.
	CacheReadTimeout time.Duration

	Policy Policy
	Hooks  Hooks

	// Logger receives absorbed cache-backend failures and stale serves.
	// Default slog.Default().
	Logger *slog.Logger
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// DataSource issues outbound HTTP calls to one REST origin. Instances are
// cheap and short-lived: create one per incoming request and let it go out of
// scope, which implicitly drops the in-flight map.
type DataSource struct {
	origin    string
	headers   map[string]string
	transport Transport
	kv        keyvalue.Cache
	policy    Policy
	hooks     Hooks
	logger    *slog.Logger
	metrics   *metrics.Metrics

	cacheReadTimeout time.Duration

	memo   *lru.Cache
	flight singleflight.Group

	abortCtx    context.Context
	abortCancel context.CancelFunc

	// writes tracks in-flight asynchronous cache writes; tests wait on it.
	writes sync.WaitGroup
}

// New validates cfg and returns a ready DataSource.
func New(cfg Config) (*DataSource, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("restsource: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("restsource: invalid BaseURL %q", cfg.BaseURL)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewHTTPTransport(cfg.HTTPClient)
	}
	capacity := cfg.MemoCapacity
	if capacity <= 0 {
		capacity = defaultMemoCapacity
	}
	readTimeout := cfg.CacheReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultCacheReadTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abortCtx, abortCancel := context.WithCancel(context.Background())

	return &DataSource{
		origin:           strings.TrimSuffix(cfg.BaseURL, "/"),
		headers:          cfg.Headers,
		transport:        transport,
		kv:               cfg.KV,
		policy:           cfg.Policy.withDefaults(),
		hooks:            cfg.Hooks,
		logger:           logger,
		metrics:          cfg.Metrics,
		cacheReadTimeout: readTimeout,
		memo:             lru.New(capacity),
		abortCtx:         abortCtx,
		abortCancel:      abortCancel,
	}, nil
}

// Abort cancels every call issued by this instance, including ones still
// waiting on the transport. Aborted calls reject with *AbortError.
func (ds *DataSource) Abort() {
	ds.abortCancel()
}

// Get issues a GET request.
func (ds *DataSource) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return ds.do(ctx, http.MethodGet, path, opts)
}

// Head issues a HEAD request.
func (ds *DataSource) Head(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return ds.do(ctx, http.MethodHead, path, opts)
}

// Post issues a POST request.
func (ds *DataSource) Post(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return ds.do(ctx, http.MethodPost, path, opts)
}

// Put issues a PUT request.
func (ds *DataSource) Put(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return ds.do(ctx, http.MethodPut, path, opts)
}

// Patch issues a PATCH request.
func (ds *DataSource) Patch(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return ds.do(ctx, http.MethodPatch, path, opts)
}

// Delete issues a DELETE request.
func (ds *DataSource) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return ds.do(ctx, http.MethodDelete, path, opts)
}

// do is the orchestrator: shared cache, then in-flight map, then live call.
func (ds *DataSource) do(ctx context.Context, method, path string, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	// Tie the call to the instance's abort signal without replacing the
	// caller's context.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ds.abortCtx, cancel)
	defer stop()

	req, err := ds.newRequest(method, path, opts)
	if err != nil {
		return nil, err
	}
	key := ds.cacheKey(req)

	cacheable := ds.kv != nil && req.Cache != nil && ds.policy.CacheableMethod(req.Method)

	// Shared cache first: a hit skips the network entirely.
	if cacheable {
		if resp, ok := ds.sharedGet(ctx, key, "primary"); ok {
			return resp, nil
		}
	}

	memoize := ds.policy.CacheableMethod(req.Method) && (opts.Memoize == nil || *opts.Memoize)
	if !memoize {
		return ds.fetch(ctx, req, key, cacheable, false)
	}

	if v, ok := ds.memo.Get(key); ok {
		resp := v.(*Response).clone()
		resp.Memoized = true
		resp.FromCache = false
		if ds.metrics != nil {
			ds.metrics.MemoHits.Inc()
		}
		return resp, nil
	}

	// Concurrent duplicates share one underlying call; only the caller
	// whose closure actually ran gets Memoized=false.
	executed := false
	v, err, _ := ds.flight.Do(key, func() (any, error) {
		executed = true
		return ds.fetch(ctx, req, key, cacheable, true)
	})
	if err != nil {
		return nil, err
	}
	resp := v.(*Response)
	if executed {
		return resp, nil
	}
	shared := resp.clone()
	shared.Memoized = true
	shared.FromCache = false
	if ds.metrics != nil {
		ds.metrics.MemoHits.Inc()
	}
	return shared, nil
}

// fetch performs the live transport call: hooks, classification, write-through
// and memo population. cacheable gates the shared-cache write; memoize gates
// the in-flight map.
func (ds *DataSource) fetch(ctx context.Context, req *Request, key string, cacheable, memoize bool) (*Response, error) {
	if ds.hooks.OnRequest != nil {
		if err := ds.hooks.OnRequest(ctx, req); err != nil {
			return nil, err
		}
	}

	ctx, span := otel.Tracer("restsource").Start(ctx, "restsource.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL()),
		),
	)
	defer span.End()

	start := time.Now()
	raw, err := ds.transport.Send(ctx, req)
	if ds.metrics != nil {
		ds.metrics.RequestLatency.WithLabelValues(req.Method).Observe(float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failed")
		if ctx.Err() != nil {
			// Cancelled, not failed: no stale fallback, no caching.
			return nil, &AbortError{Err: err}
		}
		terr := &TransportError{Method: req.Method, URL: req.URL(), Err: err}
		if ds.hooks.OnError != nil {
			ds.hooks.OnError(ctx, terr, req)
		}
		return ds.staleOrError(ctx, req, key, cacheable, terr)
	}

	span.SetAttributes(attribute.Int("http.status_code", raw.StatusCode))
	if ds.metrics != nil {
		ds.metrics.RequestsTotal.WithLabelValues(req.Method, strconv.Itoa(raw.StatusCode)).Inc()
	}

	resp := &Response{
		StatusCode: raw.StatusCode,
		Headers:    flattenHeaders(raw.Headers),
		Body:       raw.Body,
	}

	if ds.hooks.OnResponse != nil {
		// The hook replaces default classification wholesale.
		transformed, err := ds.hooks.OnResponse(ctx, req, resp)
		if err != nil {
			span.SetStatus(codes.Error, "rejected by OnResponse")
			if ds.hooks.OnError != nil {
				ds.hooks.OnError(ctx, err, req)
			}
			return ds.staleOrError(ctx, req, key, cacheable, err)
		}
		resp = transformed
	} else if !ds.policy.IsSuccess(raw.StatusCode) {
		herr := &HTTPStatusError{StatusCode: raw.StatusCode, Request: req, Response: resp}
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", raw.StatusCode))
		if ds.hooks.OnError != nil {
			ds.hooks.OnError(ctx, herr, req)
		}
		return ds.staleOrError(ctx, req, key, cacheable, herr)
	}

	span.SetStatus(codes.Ok, "")

	if cacheable && ds.policy.CacheableStatus(resp.StatusCode) && req.Cache.MaxTTL > 0 {
		resp.MaxTTLSeconds = int64(req.Cache.MaxTTL.Seconds())
		ds.writes.Add(1)
		go ds.writeThrough(key, resp, req.Cache)
	}
	if memoize {
		ds.memo.Add(key, resp)
	}
	return resp, nil
}

// staleOrError resolves a failed live call from the stale-if-error entry when
// one exists, fully suppressing the original error. Availability over
// consistency.
func (ds *DataSource) staleOrError(ctx context.Context, req *Request, key string, cacheable bool, origErr error) (*Response, error) {
	if !cacheable {
		return nil, origErr
	}
	resp, ok := ds.sharedGet(ctx, stalePrefix+key, "stale")
	if !ok {
		return nil, origErr
	}
	if ds.metrics != nil {
		ds.metrics.StaleServes.Inc()
	}
	ds.logger.Warn("serving stale response after origin failure",
		slog.String("method", req.Method),
		slog.String("url", req.URL()),
		slog.String("error", origErr.Error()),
	)
	return resp, nil
}

// sharedGet looks up one shared-cache entry under a bounded timeout. Backend
// errors and timeouts degrade to a miss.
func (ds *DataSource) sharedGet(ctx context.Context, key, kind string) (*Response, bool) {
	cctx, cancel := context.WithTimeout(ctx, ds.cacheReadTimeout)
	defer cancel()

	value, ok, err := ds.kv.Get(cctx, key)
	if err != nil {
		ds.absorb(&CacheBackendError{Op: "get", Key: key, Err: err})
		return nil, false
	}
	if !ok {
		if ds.metrics != nil && kind == "primary" {
			ds.metrics.CacheMisses.Inc()
		}
		return nil, false
	}

	var resp Response
	if err := json.Unmarshal([]byte(value), &resp); err != nil {
		ds.absorb(&CacheBackendError{Op: "get", Key: key, Err: fmt.Errorf("corrupt entry: %w", err)})
		return nil, false
	}
	resp.FromCache = true
	resp.Memoized = false
	if ds.metrics != nil {
		ds.metrics.CacheHits.WithLabelValues(kind).Inc()
	}
	return &resp, true
}

// writeThrough stores the primary and stale entries, best effort. It runs on
// its own context so a caller returning early cannot cancel the write.
func (ds *DataSource) writeThrough(key string, resp *Response, co *CacheOptions) {
	defer ds.writes.Done()

	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()

	payload, err := json.Marshal(resp)
	if err != nil {
		ds.absorb(&CacheBackendError{Op: "set", Key: key, Err: fmt.Errorf("encode entry: %w", err)})
		return
	}

	if err := ds.kv.Set(ctx, key, string(payload), int64(co.MaxTTL.Seconds())); err != nil {
		ds.absorb(&CacheBackendError{Op: "set", Key: key, Err: err})
	}
	if co.MaxTTLIfError > 0 {
		if err := ds.kv.Set(ctx, stalePrefix+key, string(payload), int64(co.staleWindow().Seconds())); err != nil {
			ds.absorb(&CacheBackendError{Op: "set", Key: stalePrefix + key, Err: err})
		}
	}
}

// absorb logs a cache-backend failure without surfacing it. The request path
// must never fail because the cache did.
func (ds *DataSource) absorb(err *CacheBackendError) {
	if ds.metrics != nil {
		ds.metrics.CacheBackendErrors.WithLabelValues(err.Op).Inc()
	}
	ds.logger.Warn("shared cache unavailable", slog.String("op", err.Op), slog.String("key", err.Key), slog.String("error", err.Err.Error()))
}

// flattenHeaders keeps the first value per header, which is all the envelope
// serialization carries.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
