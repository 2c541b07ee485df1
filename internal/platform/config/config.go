// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted in STORE_BACKEND.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendRedis     = "redis"
)

const (
	defaultPort         = "8080"
	defaultStoreTimeout = 5 * time.Second
	defaultUserIDFormat = "uuid"
)

var errInvalidConfig = errors.New("invalid configuration")

// Config holds everything cmd/server needs to wire the service.
type Config struct {
	Port string

	StoreBackend string
	StoreTimeout time.Duration

	FirebaseProjectID            string
	GoogleApplicationCredentials string
	DatabaseURL                  string
	RedisURL                     string

	UserIDFormat               string
	DuplicateContextInMetadata bool
	CORSAllowedOrigins         []string
}

// Load reads .env when present, then the environment. Every problem is
// reported in the returned error, not only the first.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv without touching .env files.
func FromEnv(getenv func(string) string) (Config, error) {
	var problems []string
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:                         get("PORT", defaultPort),
		StoreBackend:                 strings.ToLower(get("STORE_BACKEND", BackendMemory)),
		StoreTimeout:                 defaultStoreTimeout,
		FirebaseProjectID:            get("FIREBASE_PROJECT_ID", ""),
		GoogleApplicationCredentials: get("GOOGLE_APPLICATION_CREDENTIALS", ""),
		DatabaseURL:                  get("DATABASE_URL", ""),
		RedisURL:                     get("REDIS_URL", ""),
		UserIDFormat:                 strings.ToLower(get("USER_ID_FORMAT", defaultUserIDFormat)),
	}

	if raw := get("STORE_TIMEOUT", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			problems = append(problems, fmt.Sprintf("STORE_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.StoreTimeout = d
		}
	}

	if raw := get("DUPLICATE_CONTEXT_IN_METADATA", ""); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("DUPLICATE_CONTEXT_IN_METADATA must be a boolean, got %q", raw))
		}
		cfg.DuplicateContextInMetadata = b
	}

	if raw := get("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		for origin := range strings.SplitSeq(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	switch cfg.UserIDFormat {
	case "uuid", "ulid":
	default:
		problems = append(problems, fmt.Sprintf("USER_ID_FORMAT must be uuid or ulid, got %q", cfg.UserIDFormat))
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendFirestore:
		if cfg.FirebaseProjectID == "" {
			problems = append(problems, "FIREBASE_PROJECT_ID is required for the firestore backend")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			problems = append(problems, "REDIS_URL is required for the redis backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORE_BACKEND must be one of memory, firestore, postgres, redis, got %q", cfg.StoreBackend))
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errInvalidConfig, strings.Join(problems, "; "))
	}
	return cfg, nil
}

// AuthEnabled reports whether bearer tokens can be verified with Firebase.
func (c Config) AuthEnabled() bool {
	return c.FirebaseProjectID != ""
}
