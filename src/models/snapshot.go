package models

import "time"

// MSnapshot is the normalized, immutable result of one poll cycle.
type MSnapshot struct {
	ID               string                 `json:"id"`
	PetID            int64                  `json:"pet_id"`
	FetchedAt        time.Time              `json:"fetched_at"`
	LatestReading    MEntry                 `json:"latest_reading"`
	RecentReadings   []MEntry               `json:"recent_readings"`
	RecentActivities map[MCategory][]MEntry `json:"recent_activities"`
	LatestActivities map[MCategory]MEntry   `json:"latest_activities"`
	GlucoseStats     MGlucoseStats          `json:"glucose_stats"`
}

// MGlucoseStats holds values derived from the recent glucose readings.
type MGlucoseStats struct {
	Count    int      `json:"count"`
	Average  *float64 `json:"average"`
	StdDev   *float64 `json:"std_dev"`
	Min      *float64 `json:"min"`
	Max      *float64 `json:"max"`
	InRange  int      `json:"in_range"`
	MinRange *float64 `json:"min_range"`
	MaxRange *float64 `json:"max_range"`
}

// -----------------------------------------------------------------------------

// MSummary flattens a snapshot into the values a dashboard shows.
type MSummary struct {
	PetID            int64                `json:"pet_id"`
	GlucoseLevel     *float64             `json:"glucose_level"`
	LastReadingTime  string               `json:"last_reading_time,omitempty"`
	UnitType         any                  `json:"unit_type"`
	DeviceName       any                  `json:"device_name"`
	Note             string               `json:"note,omitempty"`
	AfterMeal        bool                 `json:"after_meal"`
	AfterInsulin     bool                 `json:"after_insulin"`
	ControlTest      bool                 `json:"control_test"`
	NormalRangeMin   *float64             `json:"normal_range_min"`
	NormalRangeMax   *float64             `json:"normal_range_max"`
	ReadingsLastWeek int                  `json:"readings_last_7_days"`
	AverageLastWeek  *float64             `json:"average_last_7_days,omitempty"`
	Counts           map[MCategory]int    `json:"counts_last_7_days"`
	LastEventTimes   map[MCategory]string `json:"last_event_times"`
	LastInsulinDose  any                  `json:"last_insulin_dose,omitempty"`
	LastWeight       any                  `json:"last_weight_value,omitempty"`
}
