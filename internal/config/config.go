// Package config loads runtime settings from the environment, after reading an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendBigQuery = "bigquery"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config holds every setting the binaries read.
type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	StoreBackend string
	GCPProject   string
	BQDataset    string
	SQLitePath   string
	GCSBucket    string

	GeminiModel   string
	AuthJWTSecret string

	OCRRatePerMin  int
	OCRBurst       int
	MaxUploadBytes int64

	Timezone string
	Location *time.Location

	NotionToken string
	NotionDBID  string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}
	cfg := &Config{
		Port:           e.int("PORT", 8080),
		LogLevel:       e.str("LOG_LEVEL", "info"),
		LogFormat:      e.str("LOG_FORMAT", "console"),
		StoreBackend:   e.str("STORE_BACKEND", BackendMemory),
		GCPProject:     e.str("GCP_PROJECT", ""),
		BQDataset:      e.str("BQ_DATASET", "fxledger"),
		SQLitePath:     e.str("SQLITE_PATH", "fxledger.db"),
		GCSBucket:      e.str("GCS_BUCKET", ""),
		GeminiModel:    e.str("GEMINI_MODEL", "gemini-2.5-flash"),
		AuthJWTSecret:  e.str("AUTH_JWT_SECRET", ""),
		OCRRatePerMin:  e.int("OCR_RATE_PER_MIN", 30),
		OCRBurst:       e.int("OCR_BURST", 5),
		MaxUploadBytes: int64(e.int("MAX_UPLOAD_BYTES", 10<<20)),
		Timezone:       e.str("TIMEZONE", "America/Caracas"),
		NotionToken:    e.str("NOTION_TOKEN", ""),
		NotionDBID:     e.str("NOTION_DB_ID", ""),
	}
	if len(e.errs) > 0 {
		return nil, fmt.Errorf("FromLookup: %w", errors.Join(e.errs...))
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("FromLookup: TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendBigQuery:
		if c.GCPProject == "" {
			return errors.New("GCP_PROJECT is required for the bigquery backend")
		}
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.OCRRatePerMin <= 0 || c.OCRBurst <= 0 {
		return errors.New("OCR_RATE_PER_MIN and OCR_BURST must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// UploadsEnabled reports whether a GCS bucket is configured.
func (c *Config) UploadsEnabled() bool { return c.GCSBucket != "" }

// NotionEnabled reports whether Notion credentials are configured.
func (c *Config) NotionEnabled() bool { return c.NotionToken != "" && c.NotionDBID != "" }

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}
