// Package config loads application configuration from environment
// variables, with .env support via godotenv in development.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Matching MatchingConfig
	Parsing  ParsingConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// MatchingConfig is the externally adjustable matching surface: no code
// change is needed to retune the gate or the similarity weights.
type MatchingConfig struct {
	// ConfidenceThreshold is the score at or above which a match is
	// auto-accepted without review. Range 0-100.
	ConfidenceThreshold int
	MinCandidates       int
	MaxCandidates       int

	// Similarity weights for the approximate strategy. Must sum to 1.0.
	WeightNormalizedName float64
	WeightRawName        float64
	WeightBrand          float64
	WeightTermOverlap    float64

	// Concurrency bounds in-flight line-item matches per invoice.
	Concurrency int
	ItemTimeout time.Duration

	PhoneticEnabled bool
}

type ParsingConfig struct {
	// UnitCostConvention picks which price-like token on a line is the
	// unit cost: "first" or "last".
	UnitCostConvention string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "stockflow"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Matching: MatchingConfig{
			ConfidenceThreshold:  getEnvAsInt("CONFIDENCE_THRESHOLD", 80),
			MinCandidates:        getEnvAsInt("MIN_CANDIDATES", 1),
			MaxCandidates:        getEnvAsInt("MAX_CANDIDATES", 5),
			WeightNormalizedName: getEnvAsFloat("WEIGHT_NORMALIZED_NAME", 0.4),
			WeightRawName:        getEnvAsFloat("WEIGHT_RAW_NAME", 0.3),
			WeightBrand:          getEnvAsFloat("WEIGHT_BRAND", 0.2),
			WeightTermOverlap:    getEnvAsFloat("WEIGHT_TERM_OVERLAP", 0.1),
			Concurrency:          getEnvAsInt("MATCH_CONCURRENCY", 4),
			ItemTimeout:          getEnvAsDuration("MATCH_ITEM_TIMEOUT", 5*time.Second),
			PhoneticEnabled:      getEnvAsBool("PHONETIC_ENABLED", true),
		},
		Parsing: ParsingConfig{
			UnitCostConvention: getEnv("UNIT_COST_CONVENTION", "first"),
		},
	}

	if cfg.Matching.ConfidenceThreshold < 0 || cfg.Matching.ConfidenceThreshold > 100 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be 0-100, got %d", cfg.Matching.ConfidenceThreshold)
	}
	if cfg.Matching.MinCandidates < 1 || cfg.Matching.MaxCandidates < cfg.Matching.MinCandidates {
		return nil, fmt.Errorf("candidate bounds invalid: min %d, max %d",
			cfg.Matching.MinCandidates, cfg.Matching.MaxCandidates)
	}

	sum := cfg.Matching.WeightNormalizedName + cfg.Matching.WeightRawName +
		cfg.Matching.WeightBrand + cfg.Matching.WeightTermOverlap
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("similarity weights must sum to 1.0, got %v", sum)
	}

	if c := cfg.Parsing.UnitCostConvention; c != "first" && c != "last" {
		return nil, fmt.Errorf("UNIT_COST_CONVENTION must be \"first\" or \"last\", got %q", c)
	}

	return cfg, nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
