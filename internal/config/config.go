package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Vector index backends selectable through VECTOR_INDEX.
const (
	VectorIndexSQLiteVec = "sqlite-vec"
	VectorIndexQdrant    = "qdrant"
	VectorIndexNone      = "none"
)

// Config holds all configuration for the application.
type Config struct {
	InferenceBaseURL string
	InferenceAPIKey  string
	DBPath           string
	VecDBPath        string
	VaultPaths       []string
	APIPort          string

	LogLevel  slog.Level
	LogFormat string

	VectorIndex string
	QdrantURL   string

	NotePollInterval   time.Duration
	EssayPollInterval  time.Duration
	AuthorPollInterval time.Duration
	// MaxPolls caps status checks per task. Zero polls until a terminal status.
	MaxPolls int
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates typed values.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		InferenceBaseURL: getEnv("INFERENCE_BASE_URL", "http://localhost:8000"),
		InferenceAPIKey:  getEnv("INFERENCE_API_KEY", ""),
		DBPath:           getEnv("DB_PATH", "./data/morph.db"),
		VecDBPath:        getEnv("VEC_DB_PATH", "./data/morph-vec.db"),
		VaultPaths:       splitList(getEnv("VAULT_PATH", "")),
		APIPort:          getEnv("API_PORT", "9000"),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "text")),
		VectorIndex:      strings.ToLower(getEnv("VECTOR_INDEX", VectorIndexSQLiteVec)),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6334"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	switch cfg.VectorIndex {
	case VectorIndexSQLiteVec, VectorIndexQdrant, VectorIndexNone:
	default:
		return nil, fmt.Errorf("VECTOR_INDEX must be one of %s, %s, %s; got %q",
			VectorIndexSQLiteVec, VectorIndexQdrant, VectorIndexNone, cfg.VectorIndex)
	}

	if cfg.NotePollInterval, err = getDuration("NOTE_POLL_INTERVAL", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.EssayPollInterval, err = getDuration("ESSAY_POLL_INTERVAL", 12*time.Second); err != nil {
		return nil, err
	}
	if cfg.AuthorPollInterval, err = getDuration("AUTHOR_POLL_INTERVAL", 3*time.Second); err != nil {
		return nil, err
	}

	maxPolls, err := strconv.Atoi(getEnv("MAX_POLLS", "0"))
	if err != nil {
		return nil, fmt.Errorf("MAX_POLLS must be a valid integer: %w", err)
	}
	if maxPolls < 0 {
		return nil, fmt.Errorf("MAX_POLLS must not be negative")
	}
	cfg.MaxPolls = maxPolls

	for _, path := range []string{cfg.DBPath, cfg.VecDBPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses a positive duration such as "3s" from the environment.
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return d, nil
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
