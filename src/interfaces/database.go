package interfaces

import (
	"time"

	"alphatrak-observer/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// RegisterPets upserts the pets discovered for the account.
	RegisterPets(pets []models.MPetRecord) error

	// -----------------------------------------------------------------------------

	// SaveCycleResult records the outcome of one poll cycle. Snapshots also
	// store their glucose readings and latest activities, deduplicated on
	// (pet, category, timestamp).
	SaveCycleResult(result models.MCycleResult) error

	// -----------------------------------------------------------------------------

	// GlucoseHistory returns stored readings for a pet at or after since,
	// newest first.
	GlucoseHistory(petID int64, since time.Time) ([]models.MGlucoseReading, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
