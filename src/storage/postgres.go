package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
	"alphatrak-observer/src/utils"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	if cfg.Storage.DBConnectionString == "" {
		return nil, fmt.Errorf("storage.db_connection_string is required for postgres")
	}

	// The schema is named after the executable so several observers can share
	// one database.
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		return err
	}
	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}
	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	queries := []struct{ name, ddl string }{
		{"pets", `
			CREATE TABLE IF NOT EXISTS %s (
				pet_id BIGINT PRIMARY KEY,
				name TEXT,
				raw JSONB,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			);`},
		{"cycle_results", `
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				pet_id BIGINT,
				kind TEXT,
				reason TEXT,
				at BIGINT,
				fetch_time_seconds DOUBLE PRECISION,
				entries INTEGER,
				snapshot_id TEXT
			);`},
		{"glucose_readings", `
			CREATE TABLE IF NOT EXISTS %s (
				pet_id BIGINT,
				entry_time TEXT,
				level DOUBLE PRECISION,
				unit TEXT,
				raw JSONB,
				recorded_at BIGINT,
				PRIMARY KEY (pet_id, entry_time)
			);`},
		{"activity_entries", `
			CREATE TABLE IF NOT EXISTS %s (
				pet_id BIGINT,
				category TEXT,
				entry_time TEXT,
				raw JSONB,
				recorded_at BIGINT,
				PRIMARY KEY (pet_id, category, entry_time)
			);`},
	}

	for _, q := range queries {
		if _, err := d.DB.Exec(fmt.Sprintf(q.ddl, d.table(q.name))); err != nil {
			return fmt.Errorf("failed to create %s: %w", q.name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) RegisterPets(pets []models.MPetRecord) error {
	rows, err := petRows(pets)
	if err != nil || len(rows) == 0 {
		return err
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %s (pet_id, name, raw, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pet_id) DO UPDATE SET
			name = EXCLUDED.name,
			raw = EXCLUDED.raw,
			updated_at = EXCLUDED.updated_at
	`, d.table("pets")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range rows {
		if _, err := stmt.Exec(p.PetID, p.Name, p.Raw, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveCycleResult(result models.MCycleResult) error {
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
	if _, err := tx.Exec(fmt.Sprintf(`
		INSERT INTO %s (id, pet_id, kind, reason, at, fetch_time_seconds, entries, snapshot_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.table("cycle_results")), c.ID, c.PetID, c.Kind, c.Reason, c.At, c.FetchTime, c.Entries, c.SnapshotID); err != nil {
		return fmt.Errorf("saving cycle result: %w", err)
	}

	now := time.Now().UTC().Unix()

	if len(readings) > 0 {
		stmt, err := tx.Prepare(fmt.Sprintf(`
			INSERT INTO %s (pet_id, entry_time, level, unit, raw, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (pet_id, entry_time) DO UPDATE SET
				level = EXCLUDED.level,
				unit = EXCLUDED.unit,
				raw = EXCLUDED.raw
		`, d.table("glucose_readings")))
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
		stmt, err := tx.Prepare(fmt.Sprintf(`
			INSERT INTO %s (pet_id, category, entry_time, raw, recorded_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (pet_id, category, entry_time) DO UPDATE SET
				raw = EXCLUDED.raw
		`, d.table("activity_entries")))
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

func (d *PostgresDB) GlucoseHistory(petID int64, since time.Time) ([]models.MGlucoseReading, error) {
	rows, err := d.DB.Query(fmt.Sprintf(`
		SELECT entry_time, level, unit, raw FROM %s
		WHERE pet_id = $1 AND entry_time >= $2
		ORDER BY entry_time DESC
	`, d.table("glucose_readings")), petID, sinceKey(since))
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

func (d *PostgresDB) CleanupOldData() error {
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
		if _, err := d.DB.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s < $1", d.table(c.table), c.column), cutoff); err != nil {
			d.Logger.Error("Cleanup %s error: %v", c.table, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
