package utils

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"taskory/config"
)

// openTestDB gives a test its own migrated SQLite file.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate database: %v", err)
	}
	return db
}
