// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hr-scheduling-backend/internal/db"
	"hr-scheduling-backend/internal/model"
)

// Open returns a fresh file-backed SQLite database with the schema applied.
// The database is closed when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	gormDB, err := gorm.Open(sqlite.Open(db.SQLiteDSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

// SeedApplications inserts applications with the given ids.
func SeedApplications(t testing.TB, gormDB *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		app := model.Application{ID: id, CandidateName: "Candidate " + id, JobTitle: "Engineer", Status: "submitted"}
		require.NoError(t, gormDB.Create(&app).Error)
	}
}
