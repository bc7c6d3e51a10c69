package interfaces

import (
	"context"

	"alphatrak-observer/src/models"
)

// -----------------------------------------------------------------------------
// IObserverControl is what the REST and gRPC surfaces need from the pollers.
// -----------------------------------------------------------------------------

type IObserverControl interface {

	// Statuses lists every polled pet ordered by id.
	Statuses() []models.MPetStatus

	// -----------------------------------------------------------------------------

	// LastSnapshot returns the last good snapshot of a pet, nil when none
	// was built yet. Unknown pets are an error.
	LastSnapshot(petID int64) (*models.MSnapshot, error)

	// -----------------------------------------------------------------------------

	// RefreshPet runs one cycle for a pet and waits for it.
	RefreshPet(ctx context.Context, petID int64) (models.MCycleResult, error)

	// -----------------------------------------------------------------------------

	// UpdateCredentials logs in again and installs the new token on every pet.
	UpdateCredentials(ctx context.Context, username, password string) (map[int64]models.MCycleResult, error)
}
