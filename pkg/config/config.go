// Package config loads runtime settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the resolved set of runtime settings.
type Config struct {
	DatabaseURL    string
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// ExecutionConcurrency caps how many nodes of one execution run at once.
	ExecutionConcurrency int
	NodeDelay            time.Duration
	NodeTimeout          time.Duration
	HistoryLimit         int
}

// Default returns the settings used when no environment overrides exist.
func Default() Config {
	return Config{
		Port:                 "8080",
		AllowedOrigins:       []string{"http://localhost:3003"},
		LogLevel:             "INFO",
		ExecutionConcurrency: 1,
		NodeDelay:            250 * time.Millisecond,
		NodeTimeout:          60 * time.Second,
		HistoryLimit:         50,
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup("DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.Port = v
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = strings.ToUpper(v)
	}

	var err error
	if cfg.ExecutionConcurrency, err = intVar(lookup, "EXECUTION_CONCURRENCY", cfg.ExecutionConcurrency); err != nil {
		return Config{}, err
	}
	if cfg.ExecutionConcurrency < 1 {
		return Config{}, fmt.Errorf("EXECUTION_CONCURRENCY must be at least 1, got %d", cfg.ExecutionConcurrency)
	}
	if cfg.HistoryLimit, err = intVar(lookup, "HISTORY_LIMIT", cfg.HistoryLimit); err != nil {
		return Config{}, err
	}
	if cfg.NodeDelay, err = durationVar(lookup, "NODE_DELAY", cfg.NodeDelay); err != nil {
		return Config{}, err
	}
	if cfg.NodeTimeout, err = durationVar(lookup, "NODE_TIMEOUT", cfg.NodeTimeout); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func intVar(lookup func(string) (string, bool), key string, def int) (int, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func durationVar(lookup func(string) (string, bool), key string, def time.Duration) (time.Duration, error) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
