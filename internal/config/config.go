// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/parkest/parkest/internal/database"
)

// Candidate store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// DevSigningKey is used when JWT_SIGNING_KEY is unset outside production.
const DevSigningKey = "local-dev-signing-key-change-in-production"

// Config is the API and worker configuration.
type Config struct {
	Port        string
	Environment string

	ORSAPIKey  string
	ORSBaseURL string

	// EstimatorURL selects the remote occupancy model; empty uses the local curve.
	EstimatorURL string

	CandidateStore     string
	SQLite             database.SQLiteConfig
	Database           database.Config
	SeedPath           string
	SearchRadiusMeters float64
	SessionTTL         time.Duration

	JWTSigningKey string

	PubSubProjectID        string
	PubSubTripTopic        string
	PubSubTripSubscription string

	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSampleRatio float64
}

// Load reads an optional .env file and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the configuration from the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:                   getEnvOrDefault("APP_PORT", "8080"),
		Environment:            getEnvOrDefault("APP_ENV", "development"),
		ORSAPIKey:              os.Getenv("ORS_API_KEY"),
		ORSBaseURL:             os.Getenv("ORS_BASE_URL"),
		EstimatorURL:           os.Getenv("ESTIMATOR_URL"),
		CandidateStore:         strings.ToLower(getEnvOrDefault("CANDIDATE_STORE", StoreMemory)),
		SQLite:                 database.SQLiteConfigFromEnv(),
		Database:               database.ConfigFromEnv(),
		SeedPath:               os.Getenv("SEED_PATH"),
		JWTSigningKey:          os.Getenv("JWT_SIGNING_KEY"),
		PubSubProjectID:        os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTripTopic:        getEnvOrDefault("PUBSUB_TRIP_TOPIC", "trip-events"),
		PubSubTripSubscription: getEnvOrDefault("PUBSUB_TRIP_SUBSCRIPTION", "trip-events-worker"),
		OTelEnabled:            os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:           getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	radius, err := strconv.ParseFloat(getEnvOrDefault("SEARCH_RADIUS_METERS", "1000"), 64)
	if err != nil || radius <= 0 {
		return Config{}, fmt.Errorf("SEARCH_RADIUS_METERS: invalid value %q", os.Getenv("SEARCH_RADIUS_METERS"))
	}
	cfg.SearchRadiusMeters = radius

	ttl, err := time.ParseDuration(getEnvOrDefault("SESSION_TTL", "30m"))
	if err != nil || ttl <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL: invalid value %q", os.Getenv("SESSION_TTL"))
	}
	cfg.SessionTTL = ttl

	ratio, err := strconv.ParseFloat(getEnvOrDefault("OTEL_SAMPLE_RATIO", "1"), 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		return Config{}, fmt.Errorf("OTEL_SAMPLE_RATIO: invalid value %q", os.Getenv("OTEL_SAMPLE_RATIO"))
	}
	cfg.OTelSampleRatio = ratio

	switch cfg.CandidateStore {
	case StorePostgres, StoreSQLite, StoreMemory:
	default:
		return Config{}, fmt.Errorf("CANDIDATE_STORE: unknown store %q", cfg.CandidateStore)
	}

	if cfg.JWTSigningKey == "" {
		if cfg.IsProduction() {
			return Config{}, errors.New("JWT_SIGNING_KEY is required in production")
		}
		cfg.JWTSigningKey = DevSigningKey
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// PubSubEnabled reports whether trip events go through Pub/Sub.
func (c Config) PubSubEnabled() bool {
	return c.PubSubProjectID != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
