package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-scheduling-backend/config"
	"hr-scheduling-backend/internal/db"
	"hr-scheduling-backend/internal/db/dbtest"
	"hr-scheduling-backend/internal/model"
)

func strPtr(s string) *string { return &s }

func TestMigrate_OccupantIndex(t *testing.T) {
	gormDB := dbtest.Open(t)

	occupied := func(id, app string) *model.InterviewSlot {
		return &model.InterviewSlot{ID: id, Date: "2025-10-15", Time: "09:00:00",
			ApplicationID: strPtr(app), Status: model.SlotStatusScheduled}
	}
	available := func(id string) *model.InterviewSlot {
		return &model.InterviewSlot{ID: id, Date: "2025-10-15", Time: "09:00:00",
			IsAvailable: true, Status: model.SlotStatusCancelled}
	}

	require.NoError(t, gormDB.Create(occupied("a", "app-1")).Error)
	assert.Error(t, gormDB.Create(occupied("b", "app-2")).Error, "second occupant on the same key must be rejected")

	// Historical rows for the same key coexist.
	require.NoError(t, gormDB.Create(available("c")).Error)
	require.NoError(t, gormDB.Create(available("d")).Error)

	// Migrations are re-runnable.
	require.NoError(t, db.Migrate(gormDB))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", db.SQLiteDSN("a.db"))
	assert.Equal(t, "file:x?mode=memory&_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", db.SQLiteDSN("file:x?mode=memory"))
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := db.Init(&config.DatabaseConfig{Driver: "oracle"}, "test", nil)
	assert.Error(t, err)
}
