package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Identity IdentityConfig
	OAuth    OAuthConfig
	Firebase FirebaseConfig
	Location LocationConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Port            string
	Env             string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimit       int
	RateWindow      time.Duration
}

type DatabaseConfig struct {
	Driver          string // postgres | mysql | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// IdentityConfig selects who verifies sign-in ID tokens.
type IdentityConfig struct {
	Provider string // firebase | google
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

type FirebaseConfig struct {
	ProjectID          string
	ServiceAccountPath string
}

type LocationConfig struct {
	// Samples less accurate than this are shown locally but never published.
	AccuracyThresholdMeters float64
	TrailLength             int
	NearbyRadiusKm          float64
	FeedBufferSize          int
	// Sessions with no open map socket are closed after this long without
	// use. Zero keeps them until sign-out.
	SessionIdleTimeout time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"

	ProviderFirebase = "firebase"
	ProviderGoogle   = "google"
)

// Load builds the configuration from defaults overridden by environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("APP_PORT", "8099"),
			Env:             getEnv("APP_ENV", "development"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RateLimit:       getEnvInt("RATE_LIMIT_PER_WINDOW", 120),
			RateWindow:      getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			DSN:             getEnv("DB_DSN", ""),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_SECRET_KEY", ""),
			AccessExpiry: getEnvDuration("JWT_ACCESS_EXPIRY", 24*time.Hour),
			Issuer:       getEnv("JWT_ISSUER", "friendmap"),
		},
		Identity: IdentityConfig{
			Provider: strings.ToLower(getEnv("IDENTITY_PROVIDER", ProviderFirebase)),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8099/api/v1/auth/google/callback"),
		},
		Firebase: FirebaseConfig{
			ProjectID:          getEnv("FIREBASE_PROJECT_ID", ""),
			ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		},
		Location: LocationConfig{
			AccuracyThresholdMeters: getEnvFloat("LOCATION_ACCURACY_THRESHOLD_METERS", 150),
			TrailLength:             getEnvInt("LOCATION_TRAIL_LENGTH", 500),
			NearbyRadiusKm:          getEnvFloat("LOCATION_NEARBY_RADIUS_KM", 5),
			FeedBufferSize:          getEnvInt("FEED_BUFFER_SIZE", 256),
			SessionIdleTimeout:      getEnvDuration("SESSION_IDLE_TIMEOUT", 15*time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = defaultDSN(cfg.Database.Driver)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be one of postgres, mysql, sqlite (got %q)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.JWT.AccessSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWT.AccessSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	switch c.Identity.Provider {
	case ProviderFirebase:
		if c.Firebase.ProjectID == "" && c.Firebase.ServiceAccountPath == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID or FIREBASE_SERVICE_ACCOUNT_PATH is required for the firebase provider")
		}
	case ProviderGoogle:
		if c.OAuth.GoogleClientID == "" {
			return fmt.Errorf("GOOGLE_CLIENT_ID is required for the google provider")
		}
	default:
		return fmt.Errorf("IDENTITY_PROVIDER must be firebase or google (got %q)", c.Identity.Provider)
	}
	if c.Location.AccuracyThresholdMeters <= 0 {
		return fmt.Errorf("LOCATION_ACCURACY_THRESHOLD_METERS must be positive")
	}
	if c.Location.TrailLength < 0 {
		return fmt.Errorf("LOCATION_TRAIL_LENGTH must not be negative")
	}
	if c.Location.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative")
	}
	if c.Location.FeedBufferSize <= 0 {
		return fmt.Errorf("FEED_BUFFER_SIZE must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func defaultDSN(driver string) string {
	switch driver {
	case DriverPostgres:
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "friendmap"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "friendmap"),
			getEnv("DB_SSLMODE", "disable"),
		)
	case DriverSQLite:
		return "friendmap.db"
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
