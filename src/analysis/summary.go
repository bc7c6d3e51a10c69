package analysis

import (
	"time"

	"alphatrak-observer/src/models"
)

// Summarize flattens a snapshot into dashboard values: the latest glucose
// reading with its flags, 7-day glucose figures, and per-category counts and
// last event times.
func Summarize(s *models.MSnapshot) models.MSummary {
	sum := models.MSummary{
		Counts:         map[models.MCategory]int{},
		LastEventTimes: map[models.MCategory]string{},
	}
	if s == nil {
		return sum
	}
	sum.PetID = s.PetID
	sum.ReadingsLastWeek = len(s.RecentReadings)
	if avg, ok := GlucoseAverage(s.RecentReadings); ok {
		sum.AverageLastWeek = &avg
	}

	if r := s.LatestReading; r != nil {
		if v, ok := r.Float(models.FieldGlucoseLevel); ok {
			sum.GlucoseLevel = &v
		}
		sum.LastReadingTime = normalizeTime(r[models.FieldGlucoseEntryDateTime])
		sum.UnitType = r[models.FieldUnitType]
		sum.DeviceName = r[models.FieldGlucoseDeviceName]
		sum.Note, _ = r.String(models.FieldGlucoseNote)
		sum.AfterMeal = r.Bool(models.FieldAfterMeal)
		sum.AfterInsulin = r.Bool(models.FieldAfterInsulin)
		sum.ControlTest = r.Bool(models.FieldControlTest)
		sum.NormalRangeMin = floatPtr(r[models.FieldMinRange])
		sum.NormalRangeMax = floatPtr(r[models.FieldMaxRange])
	}

	for c, entries := range s.RecentActivities {
		if c == models.CategoryBloodGlucose {
			continue
		}
		sum.Counts[c] = len(entries)
	}
	for c, e := range s.LatestActivities {
		if c == models.CategoryBloodGlucose || e == nil {
			continue
		}
		if dt := ExtractDatetime(e); dt != "" {
			sum.LastEventTimes[c] = dt
		}
	}

	if e := s.LatestActivities[models.CategoryInsulin]; e != nil {
		sum.LastInsulinDose = e[models.FieldInsulinDose]
	}
	if e := s.LatestActivities[models.CategoryWeight]; e != nil {
		sum.LastWeight = e[models.FieldPetWeight]
	}
	return sum
}

// -----------------------------------------------------------------------------

const wireLayout = "2006-01-02T15:04:05"

// normalizeTime re-renders a parseable timestamp and drops anything else.
func normalizeTime(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.RFC3339)
	}
	// Parsing accepts a fractional second even though the layout has none.
	if t, err := time.Parse(wireLayout, s); err == nil {
		return t.Format(wireLayout)
	}
	return ""
}

func floatPtr(v any) *float64 {
	f, ok := models.AsFloat(v)
	if !ok {
		return nil
	}
	return &f
}
