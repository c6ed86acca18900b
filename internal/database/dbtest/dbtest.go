// Package dbtest opens throwaway migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"
	"time"

	"friendmap/config"
	"friendmap/internal/database"

	"gorm.io/gorm"
)

// Open returns a fresh, migrated database that lives for the duration of t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:          config.DriverSQLite,
		DSN:             filepath.Join(t.TempDir(), "test.db"),
		ConnMaxLifetime: time.Hour,
	}
	db, err := database.NewDB(cfg, "test")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
