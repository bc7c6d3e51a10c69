package interfaces

import (
	"context"

	"alphatrak-observer/src/models"
)

// -----------------------------------------------------------------------------
// ISnapshotPublisher forwards completed cycle results to an external sink.
// -----------------------------------------------------------------------------

type ISnapshotPublisher interface {
	Publish(ctx context.Context, result models.MCycleResult) error
	Close() error
}
