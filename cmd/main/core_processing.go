package main

import (
	"context"
	"fmt"
	"time"

	pb "alphatrak-observer/src/grpc_control"
	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
	"alphatrak-observer/src/utils"
)

const (
	cleanupInterval = time.Hour
	publishTimeout  = 5 * time.Second
)

// resultSinks are the consumers of every cycle result. DB, Control and
// Publisher may be nil.
type resultSinks struct {
	DB        interfaces.IDatabase
	Server    interfaces.IDataExchanger
	History   *utils.HistoryManager
	Control   *pb.ControlService
	Publisher interfaces.ISnapshotPublisher
	Errors    *helpers.ErrorHandler
}

// -----------------------------------------------------------------------------

// runDataLoop handles the main processing loop (direct push model). It
// returns when ctx ends or the results channel is closed.
func runDataLoop(
	ctx context.Context,
	results <-chan models.MCycleResult,
	sinks resultSinks,
	appLogger *logger.Logger,
) {
	appLogger.Info("Starting data loop (Push Model)...")
	if sinks.Errors == nil {
		sinks.Errors = helpers.NewErrorHandler(appLogger)
	}
	lastCleanup := time.Now()

	for {
		select {
		case result, ok := <-results:
			if !ok {
				appLogger.Info("Coordinators closed channel.")
				return
			}

			handleResult(ctx, result, sinks, appLogger)

			if sinks.DB != nil && time.Since(lastCleanup) >= cleanupInterval {
				sinks.Errors.Handle(sinks.DB.CleanupOldData(), "cleanup")
				lastCleanup = time.Now()
			}

		case <-ctx.Done():
			appLogger.Info("Shutting down...")
			return
		}
	}
}

// -----------------------------------------------------------------------------

func handleResult(ctx context.Context, result models.MCycleResult, sinks resultSinks, appLogger *logger.Logger) {
	appLogger.Debug("Result for pet %d: %s", result.PetID, result.Kind)

	sinks.History.Add(result)

	if sinks.DB != nil {
		sinks.Errors.Handle(sinks.DB.SaveCycleResult(result), fmt.Sprintf("save pet %d", result.PetID))
	}

	sinks.Server.UpdateResult(result)
	sinks.Server.Broadcast(result)

	if sinks.Control != nil {
		sinks.Control.UpdateHealth(result)
	}

	if sinks.Publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		sinks.Errors.Handle(sinks.Publisher.Publish(pubCtx, result), fmt.Sprintf("publish pet %d", result.PetID))
		cancel()
	}
}
