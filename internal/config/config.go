// Package config loads service and loader settings from .env, environment and YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StrategyBucket = "bucket"
	StrategyRadius = "radius"
)

// Config defines geotourist configuration.
type Config struct {
	DatabaseURL      string        `yaml:"database_url"`
	HTTPAddr         string        `yaml:"http_addr"`
	MaxRetries       int           `yaml:"max_retries"`
	BatchSize        int           `yaml:"batch_size"`
	Strategy         string        `yaml:"strategy"`
	CategoryPrefix   string        `yaml:"category_prefix"`
	RadiusMeters     float64       `yaml:"radius_meters"`
	ResultLimit      int           `yaml:"result_limit"`
	ReadPoolSize     int32         `yaml:"read_pool_size"`
	WritePoolSize    int32         `yaml:"write_pool_size"`
	FollowerReads    bool          `yaml:"follower_reads"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	Workers          int           `yaml:"workers"`
	RatingRateLimit  int           `yaml:"rating_rate_limit"`
	JWTSecret        string        `yaml:"jwt_secret"`
	CORSOrigins      []string      `yaml:"cors_origins"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	PushgatewayURL   string        `yaml:"pushgateway_url"`
}

// Load reads .env (if present), environment variables and the optional YAML
// file named by GEOTOURIST_CONFIG. Values from the YAML file win over env.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:      getenvDefault("DATABASE_URL", os.Getenv("DB_URL")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":"+getenvDefault("FLASK_PORT", "18080")),
		MaxRetries:       getenvIntDefault("MAX_RETRIES", 3),
		BatchSize:        getenvIntDefault("BATCH_SIZE", 2048),
		Strategy:         strategyFromEnv(),
		CategoryPrefix:   os.Getenv("CATEGORY_PREFIX"),
		RadiusMeters:     getenvFloatDefault("SEARCH_RADIUS_METERS", 5000),
		ResultLimit:      getenvIntDefault("RESULT_LIMIT", 10),
		ReadPoolSize:     int32(getenvIntDefault("READ_POOL_SIZE", 10)),
		WritePoolSize:    int32(getenvIntDefault("WRITE_POOL_SIZE", 10)),
		FollowerReads:    getenvBool("FOLLOWER_READS", true),
		ConnectTimeout:   getenvDuration("CONNECT_TIMEOUT", time.Second),
		StatementTimeout: getenvDuration("STATEMENT_TIMEOUT", 3*time.Second),
		Workers:          getenvIntDefault("HTTP_WORKERS", 10),
		RatingRateLimit:  getenvIntDefault("RATING_RATE_LIMIT", 30),
		JWTSecret:        os.Getenv("AUTH_JWT_SECRET"),
		CORSOrigins:      splitCSV(getenvDefault("CORS_ORIGINS", "*")),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		LogFormat:        getenvDefault("LOG_FORMAT", "json"),
		PushgatewayURL:   os.Getenv("PUSHGATEWAY_URL"),
	}

	if path := os.Getenv("GEOTOURIST_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.Strategy = strings.ToLower(strings.TrimSpace(cfg.Strategy))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required fields and ranges.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL required")
	}
	if c.MaxRetries < 1 {
		return errors.New("config: max retries must be at least 1")
	}
	if c.BatchSize < 1 {
		return errors.New("config: batch size must be at least 1")
	}
	if c.Strategy != StrategyBucket && c.Strategy != StrategyRadius {
		return fmt.Errorf("config: unknown strategy %q", c.Strategy)
	}
	if c.RadiusMeters <= 0 || c.ResultLimit < 1 {
		return errors.New("config: radius and result limit must be positive")
	}
	if c.ReadPoolSize < 1 || c.WritePoolSize < 1 || c.Workers < 1 {
		return errors.New("config: pool sizes and workers must be positive")
	}
	if c.RatingRateLimit < 0 {
		return errors.New("config: rating rate limit must not be negative")
	}
	if c.ConnectTimeout <= 0 || c.StatementTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	return nil
}

// strategyFromEnv honours QUERY_STRATEGY and falls back to the older USE_GEOHASH switch.
func strategyFromEnv() string {
	if value := os.Getenv("QUERY_STRATEGY"); value != "" {
		return value
	}
	if getenvBool("USE_GEOHASH", true) {
		return StrategyBucket
	}
	return StrategyRadius
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
