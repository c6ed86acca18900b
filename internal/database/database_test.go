package database

import (
	"path/filepath"
	"testing"
	"time"

	"friendmap/config"
	"friendmap/internal/models"
)

func TestNewDBAndAutoMigrate(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:          config.DriverSQLite,
		DSN:             filepath.Join(t.TempDir(), "friendmap.db"),
		ConnMaxLifetime: time.Hour,
	}
	db, err := NewDB(cfg, "test")
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	for _, m := range []interface{}{&models.User{}, &models.LiveLocation{}, &models.ShareLink{}} {
		if !db.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
	if !db.Migrator().HasIndex(&models.ShareLink{}, "PairKey") {
		t.Error("expected unique index on location_shares.pair_key")
	}
}

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := NewDB(&config.DatabaseConfig{Driver: "oracle", DSN: "x"}, "test")
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
