package config

import (
	"testing"
	"time"
)

const testSecret = "this_is_a_test_secret_key_with_32_chars_minimum"

func TestLoad(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("FIREBASE_PROJECT_ID", "friendmap-test")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("LOCATION_ACCURACY_THRESHOLD_METERS", "100")
	t.Setenv("JWT_ACCESS_EXPIRY", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Location.AccuracyThresholdMeters != 100 {
		t.Errorf("AccuracyThresholdMeters = %v, want 100", cfg.Location.AccuracyThresholdMeters)
	}
	if cfg.JWT.AccessExpiry != 2*time.Hour {
		t.Errorf("AccessExpiry = %v, want 2h", cfg.JWT.AccessExpiry)
	}
	if cfg.Identity.Provider != ProviderFirebase {
		t.Errorf("Provider = %q, want firebase", cfg.Identity.Provider)
	}
}

func TestLoad_DefaultPostgresDSN(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", testSecret)
	t.Setenv("FIREBASE_PROJECT_ID", "friendmap-test")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := "host=db.internal port=5432 user=friendmap password=pw dbname=friendmap sslmode=disable"
	if cfg.Database.DSN != want {
		t.Errorf("DSN = %q, want %q", cfg.Database.DSN, want)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: DriverSQLite, DSN: "x.db"},
			JWT:      JWTConfig{AccessSecret: testSecret},
			Identity: IdentityConfig{Provider: ProviderGoogle},
			OAuth:    OAuthConfig{GoogleClientID: "client"},
			Location: LocationConfig{AccuracyThresholdMeters: 150, TrailLength: 10, FeedBufferSize: 8},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: true},
		{name: "short secret", mutate: func(c *Config) { c.JWT.AccessSecret = "short" }, wantErr: true},
		{name: "missing secret", mutate: func(c *Config) { c.JWT.AccessSecret = "" }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Identity.Provider = "okta" }, wantErr: true},
		{name: "google without client id", mutate: func(c *Config) { c.OAuth.GoogleClientID = "" }, wantErr: true},
		{
			name: "firebase without project",
			mutate: func(c *Config) {
				c.Identity.Provider = ProviderFirebase
			},
			wantErr: true,
		},
		{name: "zero threshold", mutate: func(c *Config) { c.Location.AccuracyThresholdMeters = 0 }, wantErr: true},
		{name: "zero feed buffer", mutate: func(c *Config) { c.Location.FeedBufferSize = 0 }, wantErr: true},
		{name: "negative idle timeout", mutate: func(c *Config) { c.Location.SessionIdleTimeout = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
