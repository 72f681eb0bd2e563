package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

const devJWTSecret = "dev-secret-change-me"

// Config holds the application configuration.
type Config struct {
	// Server settings
	ServerPort string `toml:"server_port"`

	// OpenTelemetry settings
	OTelEnabled  bool   `toml:"otel_enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
	Environment  string `toml:"environment"`

	// Storage settings
	StoreDriver   string `toml:"store_driver"`
	SQLitePath    string `toml:"sqlite_path"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`

	// Auth settings
	JWTSecret    string        `toml:"jwt_secret"`
	TokenTTL     time.Duration `toml:"-"`
	TokenTTLRaw  string        `toml:"token_ttl"`
	BcryptCost   int           `toml:"bcrypt_cost"`
	AuthRequired bool          `toml:"auth_required"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerPort:    "8080",
		OTelEnabled:   true,
		OTLPEndpoint:  "localhost:4317",
		ServiceName:   "task-tracker",
		Environment:   "development",
		StoreDriver:   StoreMemory,
		SQLitePath:    "tasktracker.db",
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "tasktracker",
		JWTSecret:     devJWTSecret,
		TokenTTLRaw:   "720h",
		BcryptCost:    10,
		AuthRequired:  true,
	}
}

// Load returns configuration from defaults, then the TOML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	ttl, err := time.ParseDuration(cfg.TokenTTLRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid token_ttl %q: %w", cfg.TokenTTLRaw, err)
	}
	cfg.TokenTTL = ttl

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile loads TOML config from the given file.
func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config) error {
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTLRaw = getEnv("TOKEN_TTL", cfg.TokenTTLRaw)

	var err error
	if cfg.OTelEnabled, err = getEnvBool("OTEL_ENABLED", cfg.OTelEnabled); err != nil {
		return err
	}
	if cfg.AuthRequired, err = getEnvBool("AUTH_REQUIRED", cfg.AuthRequired); err != nil {
		return err
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_COST %q: %w", v, err)
		}
		cfg.BcryptCost = n
	}
	return nil
}

// Validate checks the loaded configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite_path is required for the sqlite store"))
		}
	case StoreMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			errs = append(errs, errors.New("mongo_uri and mongo_database are required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret must not be empty"))
	}
	if c.JWTSecret == devJWTSecret && c.Environment == "production" {
		errs = append(errs, errors.New("jwt_secret must be set in production"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}
