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

	"schemakit/internal/schemas"
)

type Config struct {
	Port int

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisAddr      string
	SchemaCacheTTL time.Duration

	DefaultFetchMode schemas.FetchMode
	// EagerForeignKeys holds "table.column" pairs whose relation is preloaded.
	EagerForeignKeys map[string]bool

	CORSAllowedOrigins []string

	// RateLimitRPM is requests per minute per client IP; 0 disables limiting.
	RateLimitRPM   int
	RateLimitBurst int
}

// Load reads the .env file when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		DBDriver:         getEnvDefault("DB_DRIVER", "postgres"),
		SchemaCacheTTL:   5 * time.Minute,
		DefaultFetchMode: schemas.FetchModeLazy,
		EagerForeignKeys: make(map[string]bool),
	}

	port, err := strconv.Atoi(getEnvDefault("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("PORT must be a valid integer: %w", err)
	}
	cfg.Port = port

	required := []struct {
		key string
		dst *string
	}{
		{"DB_HOST", &cfg.DBHost},
		{"DB_PORT", &cfg.DBPort},
		{"DB_USERNAME", &cfg.DBUser},
		{"DB_PASSWORD", &cfg.DBPassword},
		{"DB_DATABASE", &cfg.DBName},
	}
	for _, r := range required {
		v := os.Getenv(r.key)
		if v == "" {
			return nil, fmt.Errorf("%s environment variable is required", r.key)
		}
		*r.dst = v
	}

	switch cfg.DBDriver {
	case "postgres", "mysql":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be postgres or mysql, got %q", cfg.DBDriver)
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	if v := os.Getenv("SCHEMA_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SCHEMA_CACHE_TTL must be a duration: %w", err)
		}
		cfg.SchemaCacheTTL = ttl
	}

	if v := os.Getenv("DEFAULT_FETCH_MODE"); v != "" {
		mode, err := schemas.ParseFetchMode(v)
		if err != nil {
			return nil, fmt.Errorf("DEFAULT_FETCH_MODE: %w", err)
		}
		cfg.DefaultFetchMode = mode
	}

	for _, pair := range splitList(os.Getenv("EAGER_FOREIGN_KEYS")) {
		if strings.Count(pair, ".") != 1 || strings.HasPrefix(pair, ".") || strings.HasSuffix(pair, ".") {
			return nil, fmt.Errorf("EAGER_FOREIGN_KEYS entry %q must be table.column", pair)
		}
		cfg.EagerForeignKeys[pair] = true
	}

	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	limits := []struct {
		key string
		def string
		dst *int
	}{
		{"RATE_LIMIT_RPM", "0", &cfg.RateLimitRPM},
		{"RATE_LIMIT_BURST", "10", &cfg.RateLimitBurst},
	}
	for _, l := range limits {
		n, err := strconv.Atoi(getEnvDefault(l.key, l.def))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", l.key)
		}
		*l.dst = n
	}

	return cfg, nil
}

// FetchModeFor returns the preload strategy for the foreign key on
// table.column.
func (c *Config) FetchModeFor(table, column string) schemas.FetchMode {
	if c.EagerForeignKeys[table+"."+column] {
		return schemas.FetchModeEager
	}
	return c.DefaultFetchMode
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
