package models

// MProcessingMetrics describes how long a cycle took and how much it saw.
type MProcessingMetrics struct {
	FetchTimeSeconds float64 `json:"fetch_time_seconds"`
	Entries          int     `json:"entries"`
	Categories       int     `json:"categories"`
}
