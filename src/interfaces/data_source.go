package interfaces

import (
	"context"
	"sync"

	"alphatrak-observer/src/models"
)

// -----------------------------------------------------------------------------
// IDataSource is one polling target producing cycle results.
// -----------------------------------------------------------------------------

type IDataSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// Refresh runs one cycle now. The error is non-nil only when ctx ended.
	Refresh(ctx context.Context) (models.MCycleResult, error)

	// -----------------------------------------------------------------------------

	// RequestRefresh asks the running loop for an extra cycle without
	// waiting for it.
	RequestRefresh()

	// -----------------------------------------------------------------------------

	// Start begins the polling loop
	// ctx: controls the lifecycle (cancellation stops the source)
	// outputChan: channel completed results are pushed to
	// wg: WaitGroup to signal when the source has fully stopped
	Start(ctx context.Context, outputChan chan<- models.MCycleResult, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop cancels the polling loop.
	Stop() error
}
