package storage

import (
	"database/sql"
	"fmt"
	"time"

	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
	"alphatrak-observer/src/utils"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, fmt.Errorf("storage.db_path is required for sqlite")
	}
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return err
	}

	// One writer at a time; also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)
	d.DB = db

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	queries := map[string]string{
		"pets": `
			CREATE TABLE IF NOT EXISTS pets (
				pet_id INTEGER PRIMARY KEY,
				name TEXT,
				raw TEXT,
				updated_at INTEGER
			);`,
		"cycle_results": `
			CREATE TABLE IF NOT EXISTS cycle_results (
				id TEXT PRIMARY KEY,
				pet_id INTEGER,
				kind TEXT,
				reason TEXT,
				at INTEGER,
				fetch_time_seconds REAL,
				entries INTEGER,
				snapshot_id TEXT
			);`,
		"glucose_readings": `
			CREATE TABLE IF NOT EXISTS glucose_readings (
				pet_id INTEGER,
				entry_time TEXT,
				level REAL,
				unit TEXT,
				raw TEXT,
				recorded_at INTEGER,
				PRIMARY KEY (pet_id, entry_time)
			);`,
		"activity_entries": `
			CREATE TABLE IF NOT EXISTS activity_entries (
				pet_id INTEGER,
				category TEXT,
				entry_time TEXT,
				raw TEXT,
				recorded_at INTEGER,
				PRIMARY KEY (pet_id, category, entry_time)
			);`,
	}

	for _, table := range []string{"pets", "cycle_results", "glucose_readings", "activity_entries"} {
		if _, err := d.DB.Exec(queries[table]); err != nil {
			return fmt.Errorf("failed to create %s: %w", table, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) RegisterPets(pets []models.MPetRecord) error {
	rows, err := petRows(pets)
	if err != nil || len(rows) == 0 {
		return err
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO pets (pet_id, name, raw, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (pet_id) DO UPDATE SET
			name = excluded.name,
			raw = excluded.raw,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, p := range rows {
		if _, err := stmt.Exec(p.PetID, p.Name, p.Raw, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveCycleResult(result models.MCycleResult) error {
	readings, activities, err := snapshotRows(result.Snapshot)
	if err != nil {
		return err
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	c := toCycleRow(result)
	if _, err := tx.Exec(`
		INSERT INTO cycle_results (id, pet_id, kind, reason, at, fetch_time_seconds, entries, snapshot_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.PetID, c.Kind, c.Reason, c.At, c.FetchTime, c.Entries, c.SnapshotID); err != nil {
		return fmt.Errorf("saving cycle result: %w", err)
	}

	now := time.Now().UTC().Unix()

	if len(readings) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO glucose_readings (pet_id, entry_time, level, unit, raw, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (pet_id, entry_time) DO UPDATE SET
				level = excluded.level,
				unit = excluded.unit,
				raw = excluded.raw
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range readings {
			if _, err := stmt.Exec(r.PetID, r.EntryTime, r.Level, r.Unit, r.Raw, now); err != nil {
				return fmt.Errorf("saving glucose reading: %w", err)
			}
		}
	}

	if len(activities) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO activity_entries (pet_id, category, entry_time, raw, recorded_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (pet_id, category, entry_time) DO UPDATE SET
				raw = excluded.raw
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, a := range activities {
			if _, err := stmt.Exec(a.PetID, a.Category, a.EntryTime, a.Raw, now); err != nil {
				return fmt.Errorf("saving activity entry: %w", err)
			}
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) GlucoseHistory(petID int64, since time.Time) ([]models.MGlucoseReading, error) {
	rows, err := d.DB.Query(`
		SELECT entry_time, level, unit, raw FROM glucose_readings
		WHERE pet_id = ? AND entry_time >= ?
		ORDER BY entry_time DESC
	`, petID, sinceKey(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.MGlucoseReading{}
	for rows.Next() {
		var entryTime string
		var level sql.NullFloat64
		var unit, raw sql.NullString
		if err := rows.Scan(&entryTime, &level, &unit, &raw); err != nil {
			return nil, err
		}
		var lv *float64
		if level.Valid {
			lv = &level.Float64
		}
		out = append(out, decodeReading(petID, entryTime, lv, unit.String, raw.String))
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	if retentionDays <= 0 {
		retentionDays = utils.DefaultRetentionDays
	}
	cutoff := retentionCutoff(retentionDays)

	d.Logger.Debug("Cleaning up data older than %d days (timestamp < %d)...", retentionDays, cutoff)

	cleanups := []struct{ table, column string }{
		{"cycle_results", "at"},
		{"glucose_readings", "recorded_at"},
		{"activity_entries", "recorded_at"},
	}
	for _, c := range cleanups {
		if _, err := d.DB.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s < ?", c.table, c.column), cutoff); err != nil {
			d.Logger.Error("Cleanup %s error: %v", c.table, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
