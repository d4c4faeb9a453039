// Package config assembles process configuration from environment variables
// once at startup. Values are immutable for the process lifetime.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration shared across subsystems.
type Server struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration

	// Cache settings. TTLs are per use case, mirroring the expensive
	// operations they shield (LLM generation vs. computed API responses).
	CacheMaxSize        int
	CacheTTLGeneration  time.Duration
	CacheTTLAPIResponse time.Duration

	// Redis. Empty URL means the in-memory cache store is used.
	RedisURL string

	// Background maintenance.
	ReaperInterval  time.Duration
	ReaperThreshold time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("AUTOFORMS_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	jwtSigningKey := os.Getenv("JWT_SECRET")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:                addr,
		JWTSigningKey:       jwtSigningKey,
		TokenTTL:            durationEnv("TOKEN_TTL", 24*time.Hour),
		CacheMaxSize:        intEnv("CACHE_MAX_SIZE", 200),
		CacheTTLGeneration:  secondsEnv("CACHE_TTL_FORM_GENERATION", 1800*time.Second),
		CacheTTLAPIResponse: secondsEnv("CACHE_TTL_API_RESPONSE", 600*time.Second),
		RedisURL:            os.Getenv("REDIS_URL"),
		ReaperInterval:      durationEnv("REAPER_INTERVAL", 30*time.Minute),
		ReaperThreshold:     durationEnv("REAPER_THRESHOLD", 2*time.Hour),
	}
}

func intEnv(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

// secondsEnv reads a duration expressed as whole seconds, the convention the
// deployment environment uses for cache TTLs.
func secondsEnv(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
