// Package config loads service configuration from environment variables,
// with optional .env support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the binaries consume.
type Config struct {
	Addr       string
	DatabaseDSN string

	AuthSecret  string
	TokenIssuer string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration

	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64
	AllowedOrigins     []string

	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first if present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:               getEnv("KASTEL_ADDR", ":8080"),
		DatabaseDSN:        os.Getenv("KASTEL_PG_DSN"),
		AuthSecret:         os.Getenv("KASTEL_AUTH_SECRET"),
		TokenIssuer:        getEnv("KASTEL_TOKEN_ISSUER", "kastel"),
		AccessTTL:          getDuration("KASTEL_ACCESS_TTL", 30*time.Minute),
		RefreshTTL:         getDuration("KASTEL_REFRESH_TTL", 7*24*time.Hour),
		RateLimitPerSecond: getInt("KASTEL_RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     getInt("KASTEL_RATE_LIMIT_BURST", 40),
		MaxBodyBytes:       int64(getInt("KASTEL_MAX_BODY_BYTES", 1<<20)),
		LogLevel:           getEnv("KASTEL_LOG_LEVEL", "info"),
	}
	if origins := strings.TrimSpace(os.Getenv("KASTEL_ALLOWED_ORIGINS")); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("KASTEL_AUTH_SECRET is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= cfg.AccessTTL {
		return Config{}, fmt.Errorf("invalid token TTLs: access=%s refresh=%s", cfg.AccessTTL, cfg.RefreshTTL)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
