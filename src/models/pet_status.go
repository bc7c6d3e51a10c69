package models

import "time"

// MPetStatus is the per-pet view served by the control surfaces.
type MPetStatus struct {
	PetID      int64             `json:"pet_id"`
	State      MCoordinatorState `json:"state"`
	LastKind   MResultKind       `json:"last_kind,omitempty"`
	LastReason string            `json:"last_reason,omitempty"`
	LastAt     *time.Time        `json:"last_at,omitempty"`
	SnapshotID string            `json:"snapshot_id,omitempty"`
}
