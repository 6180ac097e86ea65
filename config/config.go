package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/quotegrab/engine"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Session   SessionConfig
	Scraper   ScraperConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig selects and launches the render engine.
type BrowserConfig struct {
	// Engine is "rod" (headless Chromium) or "http" (static fetch).
	Engine string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is routed through by every session.
	Proxy string
}

// SessionConfig is applied to every render session.
type SessionConfig struct {
	UserAgent string
	Width     int // default: 1280
	Height    int // default: 720
	Locale    string

	// BlockedResources lists resource types denied in every session.
	// default: ["Image", "Media", "Font", "Stylesheet", "WebSocket", "EventSource"]
	BlockedResources []string
}

// ScraperConfig controls batch execution.
type ScraperConfig struct {
	// Concurrency is the number of sessions open at once.
	Concurrency int // default: 10

	// NavigationTimeout bounds DOM-ready for one target.
	NavigationTimeout time.Duration // default: 30s

	// FieldTimeout is the visibility wait of one selector strategy.
	FieldTimeout time.Duration // default: 5s

	// TargetTimeout caps one target end to end; 0 disables it.
	TargetTimeout time.Duration // default: 150s

	// MaxTargets is the largest batch the API accepts.
	MaxTargets int // default: 100
}

// RateLimitConfig controls per-client rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per client IP.
	Burst int // default: 10
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	// TTL is how long a successful result is reused; 0 disables the cache.
	TTL time.Duration

	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 1000
}

// WebhookConfig controls job completion notifications.
type WebhookConfig struct {
	// Secret signs webhook bodies; empty sends them unsigned.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
	File   string // optional rotating log file
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	width, height := envViewportOr("QUOTEGRAB_VIEWPORT", 1280, 720)
	return &Config{
		Server: ServerConfig{
			Host: envOr("QUOTEGRAB_HOST", "0.0.0.0"),
			Port: envIntOr("QUOTEGRAB_PORT", 8000),
			Mode: envOr("QUOTEGRAB_MODE", "release"),
		},
		Browser: BrowserConfig{
			Engine:     strings.ToLower(envOr("QUOTEGRAB_ENGINE", "rod")),
			Headless:   envBoolOr("QUOTEGRAB_HEADLESS", true),
			NoSandbox:  envBoolOr("QUOTEGRAB_NO_SANDBOX", true),
			BrowserBin: os.Getenv("QUOTEGRAB_BROWSER_BIN"),
			Proxy:      os.Getenv("QUOTEGRAB_PROXY"),
		},
		Session: SessionConfig{
			UserAgent: envOr("QUOTEGRAB_USER_AGENT", engine.DefaultUserAgent),
			Width:     width,
			Height:    height,
			Locale:    envOr("QUOTEGRAB_LOCALE", "en-US"),
			BlockedResources: envSliceOr("QUOTEGRAB_BLOCKED_RESOURCES", []string{
				"Image", "Media", "Font", "Stylesheet", "WebSocket", "EventSource",
			}),
		},
		Scraper: ScraperConfig{
			Concurrency:       envIntOr("QUOTEGRAB_CONCURRENCY", 10),
			NavigationTimeout: envDurationOr("QUOTEGRAB_NAV_TIMEOUT", 30*time.Second),
			FieldTimeout:      envDurationOr("QUOTEGRAB_FIELD_TIMEOUT", 5*time.Second),
			TargetTimeout:     envDurationOr("QUOTEGRAB_TARGET_TIMEOUT", 150*time.Second),
			MaxTargets:        envIntOr("QUOTEGRAB_MAX_TARGETS", 100),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("QUOTEGRAB_RATE_RPS", 5.0),
			Burst:             envIntOr("QUOTEGRAB_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			TTL:        envDurationOr("QUOTEGRAB_CACHE_TTL", 0),
			MaxEntries: envIntOr("QUOTEGRAB_CACHE_MAX_ENTRIES", 1000),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("QUOTEGRAB_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("QUOTEGRAB_LOG_LEVEL", "info"),
			Format: envOr("QUOTEGRAB_LOG_FORMAT", "json"),
			File:   os.Getenv("QUOTEGRAB_LOG_FILE"),
		},
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Browser.Engine {
	case "rod", "http":
	default:
		return fmt.Errorf("config: unknown engine %q (want rod or http)", c.Browser.Engine)
	}
	if c.Scraper.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Scraper.Concurrency)
	}
	if c.Scraper.MaxTargets < 1 {
		return fmt.Errorf("config: max targets must be at least 1, got %d", c.Scraper.MaxTargets)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	return nil
}

// ParseViewport parses "WIDTHxHEIGHT".
func ParseViewport(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("viewport %q: want WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("viewport %q: bad width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("viewport %q: bad height", s)
	}
	return width, height, nil
}

// --- helper functions ---

func envViewportOr(key string, width, height int) (int, int) {
	if v := os.Getenv(key); v != "" {
		if w, h, err := ParseViewport(v); err == nil {
			return w, h
		}
	}
	return width, height
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
