package storage

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *AsyncSQLiteDB {
	t.Helper()
	log := logger.NewLogger(nil, "SQLiteTest")
	log.SetOutput(io.Discard)

	cfg := &models.MConfig{}
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "observer.db")

	db, err := NewAsyncSQLiteDB(cfg, log)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func reading(ts string, level any) models.MEntry {
	return models.MEntry{
		models.FieldGlucoseEntryDateTime: ts,
		models.FieldGlucoseLevel:         level,
		models.FieldUnitType:             "mg/dL",
	}
}

func snapshotResult(petID int64, readings ...models.MEntry) models.MCycleResult {
	return models.MCycleResult{
		Kind:  models.ResultSnapshot,
		PetID: petID,
		At:    time.Now().UTC(),
		Snapshot: &models.MSnapshot{
			ID:             "snap-1",
			PetID:          petID,
			RecentReadings: readings,
			RecentActivities: map[models.MCategory][]models.MEntry{
				models.CategoryBloodGlucose: readings,
				models.CategoryInsulin: {
					{"InsulinEntryDateTime": "2024-01-02T07:55:00", models.FieldInsulinDose: 2.5},
					{"InsulinDose": 1.0},
				},
			},
		},
		Metrics: models.MProcessingMetrics{Entries: len(readings) + 2},
	}
}

func count(t *testing.T, db *AsyncSQLiteDB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestNewAsyncSQLiteDB_RequiresPath(t *testing.T) {
	_, err := NewAsyncSQLiteDB(&models.MConfig{}, logger.NewLogger(nil, "x"))
	assert.Error(t, err)
}

func TestInitialize_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SaveCycleResult(snapshotResult(1, reading("2024-01-01T08:00:00", 100.0))))

	// Reopening keeps existing rows.
	require.NoError(t, db.createTables())
	assert.Equal(t, 1, count(t, db, "glucose_readings"))
}

func TestRegisterPets_Upserts(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.RegisterPets([]models.MPetRecord{
		{"PetId": 7, "PetName": "Milo"},
		{"PetName": "no id"},
	}))
	require.NoError(t, db.RegisterPets([]models.MPetRecord{{"PetId": 7, "PetName": "Milo II"}}))

	assert.Equal(t, 1, count(t, db, "pets"))
	var name string
	require.NoError(t, db.DB.QueryRow("SELECT name FROM pets WHERE pet_id = 7").Scan(&name))
	assert.Equal(t, "Milo II", name)
}

func TestSaveCycleResult_DeduplicatesEntries(t *testing.T) {
	db := newTestDB(t)

	first := snapshotResult(3,
		reading("2024-01-01T08:00:00", 100.0),
		reading("2024-01-02T08:00:00", nil),
	)
	require.NoError(t, db.SaveCycleResult(first))
	require.NoError(t, db.SaveCycleResult(first))

	assert.Equal(t, 2, count(t, db, "cycle_results"))
	assert.Equal(t, 2, count(t, db, "glucose_readings"))
	// The insulin entry without a timestamp is skipped; glucose lives in its own table.
	assert.Equal(t, 1, count(t, db, "activity_entries"))
}

func TestSaveCycleResult_FailureHasNoSnapshot(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveCycleResult(models.MCycleResult{
		Kind:   models.ResultAuthRequired,
		PetID:  3,
		Reason: "authentication failed",
		At:     time.Now(),
	}))

	var kind, reason, snapshotID string
	require.NoError(t, db.DB.QueryRow("SELECT kind, reason, snapshot_id FROM cycle_results").Scan(&kind, &reason, &snapshotID))
	assert.Equal(t, "auth_required", kind)
	assert.Equal(t, "authentication failed", reason)
	assert.Empty(t, snapshotID)
	assert.Equal(t, 0, count(t, db, "glucose_readings"))
}

func TestGlucoseHistory_NewestFirstSince(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SaveCycleResult(snapshotResult(3,
		reading("2024-01-01T08:00:00", 100.0),
		reading("2024-01-03T08:00:00", 120.0),
		reading("2024-01-02T08:00:00", nil),
	)))
	require.NoError(t, db.SaveCycleResult(snapshotResult(4, reading("2024-01-03T09:00:00", 90.0))))

	all, err := db.GlucoseHistory(3, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-01-03T08:00:00", all[0].EntryTime)
	require.NotNil(t, all[0].Level)
	assert.Equal(t, 120.0, *all[0].Level)
	assert.Equal(t, "mg/dL", all[0].Unit)
	assert.Nil(t, all[1].Level)
	assert.Equal(t, "2024-01-02T08:00:00", all[1].Raw[models.FieldGlucoseEntryDateTime])

	recent, err := db.GlucoseHistory(3, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	none, err := db.GlucoseHistory(99, time.Time{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCleanupOldData_RemovesExpiredRows(t *testing.T) {
	db := newTestDB(t)
	db.Config.Storage.RetentionDays = 1

	require.NoError(t, db.SaveCycleResult(snapshotResult(3, reading("2024-01-01T08:00:00", 100.0))))
	old := time.Now().AddDate(0, 0, -3).Unix()
	_, err := db.DB.Exec("UPDATE glucose_readings SET recorded_at = ?", old)
	require.NoError(t, err)
	_, err = db.DB.Exec("UPDATE cycle_results SET at = ?", old)
	require.NoError(t, err)

	require.NoError(t, db.CleanupOldData())
	assert.Equal(t, 0, count(t, db, "glucose_readings"))
	assert.Equal(t, 0, count(t, db, "cycle_results"))
	assert.Equal(t, 1, count(t, db, "activity_entries"))
}
