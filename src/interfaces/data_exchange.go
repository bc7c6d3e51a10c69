package interfaces

import "alphatrak-observer/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger shares cycle results with external listeners (REST/WebSocket).
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// -----------------------------------------------------------------------------

	// Broadcast pushes a message to every subscribed listener.
	Broadcast(payload interface{})

	// -----------------------------------------------------------------------------

	// UpdateResult records the latest result for a pet without broadcasting.
	UpdateResult(result models.MCycleResult)

	// -----------------------------------------------------------------------------

	// Start the server
	Start() error

	// -----------------------------------------------------------------------------

	// Stop the server gracefully
	Stop() error
}
