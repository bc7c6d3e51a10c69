package models

import (
	"encoding/json"
	"sort"
)

// -----------------------------------------------------------------------------
// Activity entries as returned by the AlphaTRAK service.
// -----------------------------------------------------------------------------

// MEntry is one activity record. Field sets differ per category, so entries
// stay open maps; a nil MEntry means "no entry".
type MEntry map[string]any

// MCategory is an activity type key inside PetActivity.
type MCategory string

const (
	CategoryBloodGlucose   MCategory = "BloodGlucose"
	CategoryInsulin        MCategory = "Insulin"
	CategoryFeeding        MCategory = "Feeding"
	CategoryExercise       MCategory = "Exercise"
	CategoryUrination      MCategory = "Urination"
	CategoryVomiting       MCategory = "Vomiting"
	CategoryWaterIntake    MCategory = "WaterIntake"
	CategoryWeight         MCategory = "Weight"
	CategorySignsOfIllness MCategory = "SignsOfillness" // sic, server spelling
)

// KnownCategories lists every category a snapshot always carries.
var KnownCategories = []MCategory{
	CategoryBloodGlucose,
	CategoryInsulin,
	CategoryFeeding,
	CategoryExercise,
	CategoryUrination,
	CategoryVomiting,
	CategoryWaterIntake,
	CategoryWeight,
	CategorySignsOfIllness,
}

// Entry field names used outside of the datetime heuristic.
const (
	FieldGlucoseLevel         = "GlucoseLevel"
	FieldGlucoseUnitID        = "GlucoseUnitId"
	FieldGlucoseEntryDateTime = "GlucoseEntryDateTime"
	FieldUnitType             = "UnitType"
	FieldGlucoseDeviceName    = "GlucoseDeviceName"
	FieldAfterMeal            = "AfterMeal"
	FieldAfterInsulin         = "AfterInsulinInjection"
	FieldControlTest          = "ControlTest"
	FieldGlucoseNote          = "GlucoseNote"
	FieldInsulinDose          = "InsulinDose"
	FieldPetWeight            = "PetWeight"
	FieldMinRange             = "MinRange"
	FieldMaxRange             = "MaxRange"
)

// -----------------------------------------------------------------------------

// MActivityPayload is the decoded ResponseData of one activity fetch.
// MinRange and MaxRange are the parsed bounds used for statistics;
// RawMinRange and RawMaxRange keep the values exactly as the server sent
// them and are what glucose entries get annotated with.
type MActivityPayload struct {
	Success     bool
	MinRange    *float64
	MaxRange    *float64
	RawMinRange any
	RawMaxRange any
	Categories  map[MCategory][]MEntry
}

// RangeBounds returns the values to stamp on glucose entries. Raw server
// values win; payloads built without them fall back to the parsed bounds.
func (p *MActivityPayload) RangeBounds() (lo, hi any) {
	if p == nil {
		return nil, nil
	}
	return rangeBound(p.RawMinRange, p.MinRange), rangeBound(p.RawMaxRange, p.MaxRange)
}

func rangeBound(raw any, parsed *float64) any {
	if raw != nil {
		return raw
	}
	if parsed != nil {
		return *parsed
	}
	return nil
}

// Entries returns the raw list for a category, or nil.
func (p *MActivityPayload) Entries(c MCategory) []MEntry {
	if p == nil || p.Categories == nil {
		return nil
	}
	return p.Categories[c]
}

// -----------------------------------------------------------------------------

// entryKeysField holds the wire order of an entry's fields. It never
// reaches JSON output.
const entryKeysField = "\x00keys"

type entryKeys []string

// NewOrderedEntry wraps decoded fields and remembers the order in which
// the server sent them. The entry takes ownership of fields.
func NewOrderedEntry(fields map[string]any, order []string) MEntry {
	e := MEntry(fields)
	if e == nil {
		e = MEntry{}
	}
	e[entryKeysField] = entryKeys(append([]string(nil), order...))
	return e
}

// Keys returns the field names in wire order when it is known. Fields
// without a recorded position (or every field of an entry built in code)
// follow in sorted order.
func (e MEntry) Keys() []string {
	order, _ := e[entryKeysField].(entryKeys)
	keys := make([]string, 0, len(e))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := e[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(e)-len(keys))
	for k := range e {
		if k != entryKeysField && !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// MarshalJSON writes the entry's fields without the key order.
func (e MEntry) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(e))
	for k, v := range e {
		if k != entryKeysField {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// Clone returns a shallow copy; values are scalars so this is a full copy.
func (e MEntry) Clone() MEntry {
	if e == nil {
		return nil
	}
	out := make(MEntry, len(e)+2)
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Float returns a numeric field, accepting JSON numbers and numeric strings.
func (e MEntry) Float(key string) (float64, bool) {
	return AsFloat(e[key])
}

// String returns a string field.
func (e MEntry) String(key string) (string, bool) {
	s, ok := e[key].(string)
	return s, ok
}

// Bool returns a boolean field; missing or non-bool values are false.
func (e MEntry) Bool(key string) bool {
	b, _ := e[key].(bool)
	return b
}
