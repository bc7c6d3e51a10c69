package models

import "time"

// MResultKind tells the host how to react to a cycle outcome.
type MResultKind string

const (
	ResultSnapshot     MResultKind = "snapshot"
	ResultAuthRequired MResultKind = "auth_required"
	ResultTransient    MResultKind = "transient"
	ResultFatal        MResultKind = "fatal"
)

// MCoordinatorState is the per-target polling state.
type MCoordinatorState string

const (
	StateIdle         MCoordinatorState = "idle"
	StateFetching     MCoordinatorState = "fetching"
	StateReady        MCoordinatorState = "ready"
	StateAuthRequired MCoordinatorState = "auth_required"
	StateFailed       MCoordinatorState = "failed"
)

// MCycleResult is published once per completed poll cycle.
type MCycleResult struct {
	Kind     MResultKind        `json:"kind"`
	PetID    int64              `json:"pet_id"`
	Snapshot *MSnapshot         `json:"snapshot,omitempty"`
	Reason   string             `json:"reason,omitempty"`
	At       time.Time          `json:"at"`
	Metrics  MProcessingMetrics `json:"processing_metrics"`
}

// OK reports whether the cycle produced a snapshot.
func (r MCycleResult) OK() bool {
	return r.Kind == ResultSnapshot && r.Snapshot != nil
}
