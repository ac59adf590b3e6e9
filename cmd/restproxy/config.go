package main

import (
	"fmt"
	"os"
	"strconv"
)

type config struct {
	ListenAddr string
	LogLevel   string

	// Origin is the upstream REST API every proxied path resolves against.
	Origin string

	// KVBackend selects the shared cache: "memory", "sqlite" or "redis".
	KVBackend   string
	SQLiteDSN   string
	RedisAddr   string
	RedisPrefix string

	MaxTTLSecs        int
	MaxTTLIfErrorSecs int

	RateLimitRPS   int
	RateLimitBurst int

	OTelEnabled  bool
	OTelEndpoint string
}

func loadConfig() (config, error) {
	cfg := config{
		ListenAddr: getEnv("RESTPROXY_LISTEN_ADDR", ":8080"),
		LogLevel:   getEnv("RESTPROXY_LOG_LEVEL", "info"),

		Origin: getEnv("RESTPROXY_ORIGIN", ""),

		KVBackend:   getEnv("RESTPROXY_KV_BACKEND", "memory"),
		SQLiteDSN:   getEnv("RESTPROXY_SQLITE_DSN", "file:restproxy-cache.sqlite"),
		RedisAddr:   getEnv("RESTPROXY_REDIS_ADDR", "localhost:6379"),
		RedisPrefix: getEnv("RESTPROXY_REDIS_PREFIX", "restproxy"),

		MaxTTLSecs:        getEnvInt("RESTPROXY_MAX_TTL_SECS", 60),
		MaxTTLIfErrorSecs: getEnvInt("RESTPROXY_MAX_TTL_IF_ERROR_SECS", 300),

		RateLimitRPS:   getEnvInt("RESTPROXY_RATE_LIMIT_RPS", 60),
		RateLimitBurst: getEnvInt("RESTPROXY_RATE_LIMIT_BURST", 120),

		OTelEnabled:  getEnvBool("RESTPROXY_OTEL_ENABLED", false),
		OTelEndpoint: getEnv("RESTPROXY_OTEL_ENDPOINT", "localhost:4318"),
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	if c.Origin == "" {
		return fmt.Errorf("RESTPROXY_ORIGIN is required")
	}
	switch c.KVBackend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("RESTPROXY_KV_BACKEND must be memory, sqlite or redis, got %q", c.KVBackend)
	}
	if c.MaxTTLSecs <= 0 {
		return fmt.Errorf("RESTPROXY_MAX_TTL_SECS must be > 0, got %d", c.MaxTTLSecs)
	}
	if c.MaxTTLIfErrorSecs < 0 {
		return fmt.Errorf("RESTPROXY_MAX_TTL_IF_ERROR_SECS must be >= 0, got %d", c.MaxTTLIfErrorSecs)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RESTPROXY_RATE_LIMIT_RPS must be > 0, got %d", c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("RESTPROXY_RATE_LIMIT_BURST must be > 0, got %d", c.RateLimitBurst)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
