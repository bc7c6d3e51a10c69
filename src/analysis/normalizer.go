package analysis

import (
	"sort"
	"strings"

	"alphatrak-observer/src/analysis/core"
	"alphatrak-observer/src/models"
)

const (
	entryDateTimeSuffix = "EntryDateTime"
	entryDateFragment   = "EntryDate"
)

// -----------------------------------------------------------------------------

// ExtractDatetime returns the entry's timestamp string: the first field
// ending in "EntryDateTime", else the first containing "EntryDateTime",
// else the first containing "EntryDate", else "". Fields are scanned in the
// order the server sent them and only string values count.
func ExtractDatetime(e models.MEntry) string {
	if len(e) == 0 {
		return ""
	}
	keys := e.Keys()

	passes := []func(string) bool{
		func(k string) bool { return strings.HasSuffix(k, entryDateTimeSuffix) },
		func(k string) bool { return strings.Contains(k, entryDateTimeSuffix) },
		func(k string) bool { return strings.Contains(k, entryDateFragment) },
	}
	for _, match := range passes {
		for _, k := range keys {
			if !match(k) {
				continue
			}
			if s, ok := e[k].(string); ok {
				return s
			}
		}
	}
	return ""
}

// -----------------------------------------------------------------------------

// SortByDatetimeDesc returns a copy ordered by ExtractDatetime, newest
// first. Comparison is on the raw strings; ties keep their input order.
func SortByDatetimeDesc(entries []models.MEntry) []models.MEntry {
	type keyed struct {
		key   string
		entry models.MEntry
	}
	items := make([]keyed, len(entries))
	for i, e := range entries {
		items[i] = keyed{ExtractDatetime(e), e}
	}
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].key > items[b].key
	})

	out := make([]models.MEntry, len(items))
	for i, it := range items {
		out[i] = it.entry
	}
	return out
}

// -----------------------------------------------------------------------------

// annotateRange copies a glucose entry and stamps the payload's range on it
// as the server sent it. Absent bounds are written as nil so the keys are
// always there.
func annotateRange(e models.MEntry, p *models.MActivityPayload) models.MEntry {
	if e == nil {
		return nil
	}
	out := e.Clone()
	out[models.FieldMinRange], out[models.FieldMaxRange] = p.RangeBounds()
	return out
}

// -----------------------------------------------------------------------------

// WindowedList returns the category's entries newest first, never nil.
// Glucose entries are range-annotated copies.
func WindowedList(p *models.MActivityPayload, c models.MCategory) []models.MEntry {
	sorted := SortByDatetimeDesc(p.Entries(c))
	if c == models.CategoryBloodGlucose {
		for i, e := range sorted {
			sorted[i] = annotateRange(e, p)
		}
	}
	return sorted
}

// -----------------------------------------------------------------------------

// LatestPerCategory picks the newest entry of every category in the
// payload; empty categories map to nil. A single pass with a strict
// comparison keeps the first of equal timestamps, matching the head of
// SortByDatetimeDesc.
func LatestPerCategory(p *models.MActivityPayload) map[models.MCategory]models.MEntry {
	out := make(map[models.MCategory]models.MEntry)
	if p == nil {
		return out
	}
	for c, entries := range p.Categories {
		var best models.MEntry
		bestKey := ""
		for i, e := range entries {
			k := ExtractDatetime(e)
			if i == 0 || k > bestKey {
				best, bestKey = e, k
			}
		}
		if c == models.CategoryBloodGlucose {
			best = annotateRange(best, p)
		}
		out[c] = best
	}
	return out
}

// -----------------------------------------------------------------------------

func glucoseLevels(entries []models.MEntry) []float64 {
	levels := make([]float64, 0, len(entries))
	for _, e := range entries {
		if v, ok := e.Float(models.FieldGlucoseLevel); ok {
			levels = append(levels, v)
		}
	}
	return levels
}

// GlucoseAverage is the mean GlucoseLevel rounded to one decimal. ok is
// false when no entry carries a level.
func GlucoseAverage(entries []models.MEntry) (avg float64, ok bool) {
	levels := glucoseLevels(entries)
	if len(levels) == 0 {
		return 0, false
	}
	mean, _ := core.CalculateMeanStd(levels)
	return core.Round(mean, 1), true
}

// -----------------------------------------------------------------------------

// GlucoseStatistics derives summary numbers from a list of glucose entries.
// InRange is only counted when both bounds are known.
func GlucoseStatistics(entries []models.MEntry, minRange, maxRange *float64) models.MGlucoseStats {
	stats := models.MGlucoseStats{MinRange: minRange, MaxRange: maxRange}
	levels := glucoseLevels(entries)
	stats.Count = len(levels)
	if stats.Count == 0 {
		return stats
	}

	mean, std := core.CalculateMeanStd(levels)
	lo, hi := core.MinMax(levels)
	avg, sd := core.Round(mean, 1), core.Round(std, 1)
	stats.Average, stats.StdDev = &avg, &sd
	stats.Min, stats.Max = &lo, &hi
	if minRange != nil && maxRange != nil {
		stats.InRange = core.CountInRange(levels, *minRange, *maxRange)
	}
	return stats
}
