package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	PHI        PHIConfig
	ADT        ADTConfig
	Alerts     AlertConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig holds configuration for the EventStoreDB alert/audit stream.
type EventStoreConfig struct {
	// Host is the EventStoreDB server hostname
	Host string
	// Port is the gRPC/HTTP port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret string
	// Enforce requires a valid bearer token on /api/v1 routes.
	// Off in development so the demo cohort can be browsed without an IdP.
	Enforce bool
}

// PHIConfig holds configuration for PHI display masking.
type PHIConfig struct {
	// MaskByDefault masks name/MRN fields unless a request opts out
	MaskByDefault bool
}

// ADTConfig holds configuration for the hospital ADT feed adapter.
type ADTConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// PollInterval between ADT table scans
	PollInterval time.Duration
}

// AlertConfig holds the alert generation thresholds.
type AlertConfig struct {
	// RPMThreshold is the risk score above which an RPM abnormal alert fires
	RPMThreshold int
	// ContactWindow is how long a patient may go without a successful
	// weekly contact before a missed-call alert fires
	ContactWindow time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "tracker"),
			Password: getEnv("DB_PASSWORD", "tracker"),
			Database: getEnv("DB_NAME", "tracker"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Enforce:   getEnvBool("AUTH_ENFORCE", false),
		},
		PHI: PHIConfig{
			MaskByDefault: getEnvBool("PHI_MASK_DEFAULT", false),
		},
		ADT: ADTConfig{
			Enabled:      getEnvBool("ADT_ENABLED", false),
			Host:         getEnv("ADT_DB_HOST", "localhost"),
			Port:         getEnvInt("ADT_DB_PORT", 1433),
			User:         getEnv("ADT_DB_USER", "adt_reader"),
			Password:     getEnv("ADT_DB_PASSWORD", ""),
			Database:     getEnv("ADT_DB_NAME", "hospital_adt"),
			SSLMode:      getEnv("ADT_DB_SSLMODE", "disable"),
			PollInterval: getEnvDuration("ADT_POLL_INTERVAL", 5*time.Minute),
		},
		Alerts: AlertConfig{
			RPMThreshold:  getEnvInt("ALERT_RPM_THRESHOLD", 70),
			ContactWindow: getEnvDuration("ALERT_CONTACT_WINDOW", 7*24*time.Hour),
		},
	}

	// The dev identity shortcut must never reach production
	if cfg.Server.Env == "production" && !cfg.Auth.Enforce {
		return nil, fmt.Errorf("AUTH_ENFORCE must be enabled in production")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
