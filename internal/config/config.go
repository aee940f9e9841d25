// Package config reads settings from the environment and an optional .env
// file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"
)

type Config struct {
	DBPath       string
	Addr         string
	UserAgent    string
	FetchTimeout time.Duration
	Fetcher      string
	IndexWorkers int
	LogLevel     string
}

// Load reads .env if present, then the SPIDEY_* variables. Unset variables
// take their defaults; malformed ones are errors.
func Load() (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:    getEnv("SPIDEY_DB_PATH", "spidey.db"),
		Addr:      getEnv("SPIDEY_ADDR", ":8080"),
		UserAgent: getEnv("SPIDEY_USER_AGENT", "SpideyBot/1.0"),
		Fetcher:   strings.ToLower(getEnv("SPIDEY_FETCHER", FetcherHTTP)),
		LogLevel:  strings.ToLower(getEnv("SPIDEY_LOG_LEVEL", "info")),
	}

	var err error
	if cfg.FetchTimeout, err = getEnvDuration("SPIDEY_FETCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.IndexWorkers, err = getEnvInt("SPIDEY_INDEX_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the program cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.IndexWorkers < 1 {
		return fmt.Errorf("index workers must be at least 1, got %d", c.IndexWorkers)
	}
	switch c.Fetcher {
	case FetcherHTTP, FetcherBrowser:
	default:
		return fmt.Errorf("unknown fetcher %q, want %q or %q", c.Fetcher, FetcherHTTP, FetcherBrowser)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, val)
	}
	return d, nil
}
