package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	App       AppConfig
	Auth      AuthConfig
	Reconcile ReconcileConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
	Timezone string
}

// AuthConfig holds the service-token settings for the trigger API
type AuthConfig struct {
	Secret   string
	TokenTTL string
}

// ReconcileConfig holds the engine tunables the schedule itself does not
// carry. Grace periods live on each shift definition, not here.
type ReconcileConfig struct {
	TailWindow        time.Duration
	SevereUndertime   time.Duration
	HalfDayFraction   float64
	Workers           int
	NightlyJobEnabled bool
}

func Load() (*Config, error) {
	// A missing .env file is fine in containerized deployments where the
	// environment is injected directly.
	_ = godotenv.Load()

	config := &Config{}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance-engine"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("APP_TIMEZONE", "UTC"),
	}

	config.Auth = AuthConfig{
		Secret:   getEnv("SERVICE_TOKEN_SECRET", ""),
		TokenTTL: getEnv("SERVICE_TOKEN_TTL", "24h"),
	}

	tail, err := time.ParseDuration(getEnv("RECONCILE_TAIL_WINDOW", "4h"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_TAIL_WINDOW: %w", err)
	}
	severe, err := time.ParseDuration(getEnv("RECONCILE_SEVERE_UNDERTIME", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_SEVERE_UNDERTIME: %w", err)
	}
	halfDay, err := strconv.ParseFloat(getEnv("RECONCILE_HALF_DAY_FRACTION", "0.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_HALF_DAY_FRACTION: %w", err)
	}
	workers, err := strconv.Atoi(getEnv("RECONCILE_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_WORKERS: %w", err)
	}

	config.Reconcile = ReconcileConfig{
		TailWindow:        tail,
		SevereUndertime:   severe,
		HalfDayFraction:   halfDay,
		Workers:           workers,
		NightlyJobEnabled: getEnv("RECONCILE_NIGHTLY_JOB", "true") == "true",
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("SERVICE_TOKEN_SECRET is required")
	}
	if c.Reconcile.Workers < 1 {
		return fmt.Errorf("RECONCILE_WORKERS must be at least 1")
	}
	if c.Reconcile.HalfDayFraction <= 0 || c.Reconcile.HalfDayFraction >= 1 {
		return fmt.Errorf("RECONCILE_HALF_DAY_FRACTION must be between 0 and 1")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Location resolves the configured site timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
