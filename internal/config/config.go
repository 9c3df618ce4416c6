package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/mdkroki/internal/kroki"
)

// Config carries the preprocessor's tunables. Values come from the
// [preprocessor.kroki] table in book.toml (delivered through the
// preprocessor context) with KROKI_* environment overrides.
type Config struct {
	// Endpoint of the render service, with a trailing slash.
	Endpoint string

	// MaxConcurrentRenders bounds in-flight render calls.
	MaxConcurrentRenders int

	// HTTPTimeout applies per render request.
	HTTPTimeout time.Duration

	// FailFast cancels outstanding renders as soon as one fails. When
	// false, every render runs to completion and the first error is
	// reported afterwards. The book is only mutated when all succeed.
	FailFast bool
}

// Load builds a Config from the raw preprocessor table. A nil table yields
// the defaults.
func Load(table map[string]any) (Config, error) {
	cfg := Config{
		Endpoint:             kroki.DefaultEndpoint,
		MaxConcurrentRenders: 8,
		HTTPTimeout:          30 * time.Second,
		FailFast:             true,
	}

	if v, ok := table["endpoint"]; ok {
		s, ok := v.(string)
		if !ok {
			return Config{}, fmt.Errorf("endpoint must be a string, got %T", v)
		}
		cfg.Endpoint = s
	}
	if v, ok := table["max-concurrent"]; ok {
		n, err := tableInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("max-concurrent: %w", err)
		}
		cfg.MaxConcurrentRenders = n
	}
	if v, ok := table["fail-fast"]; ok {
		b, ok := v.(bool)
		if !ok {
			return Config{}, fmt.Errorf("fail-fast must be a boolean, got %T", v)
		}
		cfg.FailFast = b
	}

	cfg.Endpoint = envOr("KROKI_ENDPOINT", cfg.Endpoint)
	cfg.MaxConcurrentRenders = envInt("KROKI_MAX_CONCURRENT", cfg.MaxConcurrentRenders)
	cfg.HTTPTimeout = envDuration("KROKI_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.FailFast = envBool("KROKI_FAIL_FAST", cfg.FailFast)

	if !strings.HasSuffix(cfg.Endpoint, "/") {
		cfg.Endpoint += "/"
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 8
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	return cfg, nil
}

// tableInt accepts the numeric types a decoded TOML/JSON table can hold.
func tableInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
