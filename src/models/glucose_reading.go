package models

// MGlucoseReading is one stored BloodGlucose entry.
type MGlucoseReading struct {
	PetID     int64    `json:"pet_id"`
	EntryTime string   `json:"entry_time"`
	Level     *float64 `json:"level"`
	Unit      string   `json:"unit,omitempty"`
	Raw       MEntry   `json:"raw,omitempty"`
}
