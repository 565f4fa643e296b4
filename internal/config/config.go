package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// AuthMode decides where user identities are managed. Under AuthModeLocal the
// service owns user records and serves the user mutation endpoints; under
// AuthModeExternal an identity provider owns them and those endpoints answer 403.
type AuthMode string

const (
	AuthModeLocal    AuthMode = "local"
	AuthModeExternal AuthMode = "external"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
}

type AuditConfig struct {
	Retention     time.Duration
	PurgeInterval time.Duration
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	LookupTTL time.Duration
}

type AuthConfig struct {
	Mode AuthMode
}

type TelemetryConfig struct {
	Enabled        bool
	ExporterURL    string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
}

type RateLimitConfig struct {
	Enabled    bool
	Max        int
	Expiration time.Duration
}

func NewConfig() *Config {
	environment := getEnv("SERVER_ENVIRONMENT", EnvironmentDevelopment)

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "3001"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			Environment:  environment,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "password"),
			Name:         getEnv("DB_NAME", "casedesk"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		},
		Redis: RedisConfig{
			Enabled:   getEnvBool("REDIS_ENABLED", false),
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			LookupTTL: getEnvDuration("REDIS_LOOKUP_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			Mode: AuthMode(getEnv("AUTH_MODE", string(AuthModeLocal))),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("TELEMETRY_ENABLED", false),
			ExporterURL:    getEnv("TELEMETRY_EXPORTER_URL", ""),
			ServiceName:    getEnv("TELEMETRY_SERVICE_NAME", "casedesk"),
			ServiceVersion: getEnv("TELEMETRY_SERVICE_VERSION", "dev"),
			Environment:    environment,
			SamplingRatio:  getEnvFloat("TELEMETRY_SAMPLING_RATIO", 1.0),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getEnvBool("RATE_LIMIT_ENABLED", true),
			Max:        getEnvInt("RATE_LIMIT_MAX", 60),
			Expiration: getEnvDuration("RATE_LIMIT_EXPIRATION", time.Minute),
		},
		Audit: AuditConfig{
			Retention:     getEnvDuration("AUDIT_RETENTION", 90*24*time.Hour),
			PurgeInterval: getEnvDuration("AUDIT_PURGE_INTERVAL", time.Hour),
		},
	}
}

// DatabaseURL renders the pgx / lib/pq compatible connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name, c.Database.SSLMode)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
