// Package config reads service settings from the environment, loading a
// .env file first when one is present.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	DatabaseURL string `validate:"required"`
	RedisURL    string `validate:"omitempty,url"`

	ORSAPIKey  string
	ORSBaseURL string `validate:"omitempty,url"`
	ORSProfile string `validate:"required"`

	// StatusStore selects where route progress is persisted.
	StatusStore     string `validate:"oneof=postgres redis"`
	Notifier        string `validate:"oneof=expo log"`
	ExpoAccessToken string
	SeedPath        string

	ArrivalRadiusMeters   int           `validate:"gt=0"`
	NearThresholdSeconds  int           `validate:"gt=0"`
	MaxInFlightDirections int64         `validate:"gt=0"`
	DirectionsCacheTTL    time.Duration `validate:"gte=0"`
}

// LoadEnv loads a .env file into the process environment if one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
}

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Load reads and validates the server configuration.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            Get("PORT", "8080"),
		DatabaseURL:     Get("DATABASE_URL", ""),
		RedisURL:        Get("REDIS_URL", ""),
		ORSAPIKey:       Get("ORS_API_KEY", ""),
		ORSBaseURL:      Get("ORS_BASE_URL", ""),
		ORSProfile:      Get("ORS_PROFILE", "driving-car"),
		StatusStore:     Get("STATUS_STORE", "postgres"),
		Notifier:        Get("NOTIFIER", "log"),
		ExpoAccessToken: Get("EXPO_ACCESS_TOKEN", ""),
		SeedPath:        Get("SEED_PATH", "data/seeds/routes.json"),
	}

	var err error
	if cfg.ArrivalRadiusMeters, err = getInt("ARRIVAL_RADIUS_METERS", 100); err != nil {
		return nil, err
	}
	if cfg.NearThresholdSeconds, err = getInt("NEAR_THRESHOLD_SECONDS", 300); err != nil {
		return nil, err
	}
	inflight, err := getInt("MAX_INFLIGHT_DIRECTIONS", 4)
	if err != nil {
		return nil, err
	}
	cfg.MaxInFlightDirections = int64(inflight)

	if cfg.DirectionsCacheTTL, err = getDuration("DIRECTIONS_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.StatusStore == "redis" && c.RedisURL == "" {
		return fmt.Errorf("config validation failed: REDIS_URL is required when STATUS_STORE=redis")
	}
	return nil
}

func getInt(key string, fallback int) (int, error) {
	raw := Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return d, nil
}
