package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alphatrak-observer/src/analysis"
	"alphatrak-observer/src/models"
)

// Rows shared by the SQLite and Postgres backends.

type cycleRow struct {
	ID         string
	PetID      int64
	Kind       string
	Reason     string
	At         int64
	FetchTime  float64
	Entries    int
	SnapshotID string
}

type glucoseRow struct {
	PetID     int64
	EntryTime string
	Level     *float64
	Unit      string
	Raw       string
}

type activityRow struct {
	PetID     int64
	Category  string
	EntryTime string
	Raw       string
}

type petRow struct {
	PetID int64
	Name  string
	Raw   string
}

// -----------------------------------------------------------------------------

func toCycleRow(r models.MCycleResult) cycleRow {
	row := cycleRow{
		ID:        uuid.NewString(),
		PetID:     r.PetID,
		Kind:      string(r.Kind),
		Reason:    r.Reason,
		At:        r.At.UTC().Unix(),
		FetchTime: r.Metrics.FetchTimeSeconds,
		Entries:   r.Metrics.Entries,
	}
	if r.Snapshot != nil {
		row.SnapshotID = r.Snapshot.ID
	}
	return row
}

// -----------------------------------------------------------------------------

// snapshotRows flattens a snapshot. Entries without a timestamp cannot be
// deduplicated and are skipped.
func snapshotRows(s *models.MSnapshot) ([]glucoseRow, []activityRow, error) {
	if s == nil {
		return nil, nil, nil
	}

	var readings []glucoseRow
	for _, e := range s.RecentReadings {
		ts := analysis.ExtractDatetime(e)
		if ts == "" {
			continue
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding glucose entry: %w", err)
		}
		row := glucoseRow{PetID: s.PetID, EntryTime: ts, Raw: string(raw)}
		if v, ok := e.Float(models.FieldGlucoseLevel); ok {
			row.Level = &v
		}
		if u, ok := e[models.FieldUnitType]; ok && u != nil {
			row.Unit = fmt.Sprint(u)
		}
		readings = append(readings, row)
	}

	var activities []activityRow
	for c, entries := range s.RecentActivities {
		if c == models.CategoryBloodGlucose {
			continue
		}
		for _, e := range entries {
			ts := analysis.ExtractDatetime(e)
			if ts == "" {
				continue
			}
			raw, err := json.Marshal(e)
			if err != nil {
				return nil, nil, fmt.Errorf("encoding %s entry: %w", c, err)
			}
			activities = append(activities, activityRow{PetID: s.PetID, Category: string(c), EntryTime: ts, Raw: string(raw)})
		}
	}
	return readings, activities, nil
}

// -----------------------------------------------------------------------------

func petRows(pets []models.MPetRecord) ([]petRow, error) {
	rows := make([]petRow, 0, len(pets))
	for _, p := range pets {
		id, ok := p.ID()
		if !ok {
			continue
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encoding pet %d: %w", id, err)
		}
		rows = append(rows, petRow{PetID: id, Name: p.Name(), Raw: string(raw)})
	}
	return rows, nil
}

// -----------------------------------------------------------------------------

func decodeReading(petID int64, entryTime string, level *float64, unit, raw string) models.MGlucoseReading {
	r := models.MGlucoseReading{PetID: petID, EntryTime: entryTime, Level: level, Unit: unit}
	if raw != "" {
		var e models.MEntry
		if err := json.Unmarshal([]byte(raw), &e); err == nil {
			r.Raw = e
		}
	}
	return r
}

// sinceKey renders a cutoff comparable with stored entry timestamps.
func sinceKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05")
}

func retentionCutoff(days int) int64 {
	return time.Now().UTC().AddDate(0, 0, -days).Unix()
}
