package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

type MLatestData struct {
	Type      string                 `json:"type"` // "INITIAL" or "UPDATE"
	Results   map[int64]MCycleResult `json:"results"`
	Timestamp int64                  `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string  `json:"command"`
	PetIDs  []int64 `json:"pet_ids"`
}
