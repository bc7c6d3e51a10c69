package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"alphatrak-observer/src/config"
	pb "alphatrak-observer/src/grpc_control"
	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
	"alphatrak-observer/src/publish"
	"alphatrak-observer/src/server"
	"alphatrak-observer/src/utils"
)

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf, conf.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Setup Components
	db, err := setupDatabase(conf.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("%v", err)
	}
	if db != nil {
		defer db.Close()
	}

	networkManager := setupNetwork(conf.MConfig)
	account := setupClient(conf.MConfig, networkManager)

	// 5. Bootstrap: authenticate, discover and validate pets
	if err := authenticate(ctx, conf, account, appLogger); err != nil {
		appLogger.Critical("%v", err)
	}
	petIDs, err := discoverPets(ctx, conf, account, db, appLogger)
	if err != nil {
		appLogger.Critical("%v", err)
	}

	manager := setupCoordinators(conf.MConfig, account, petIDs, appLogger)
	validatePets(ctx, manager, appLogger)

	// 6. Result consumers
	history := utils.NewHistoryManager(conf.Polling.HistorySize)

	srv := server.NewAPIServer(conf.MConfig, manager, db, history, logger.NewLogger(conf, "APIServer"))
	srv.OnCredentialsUpdated = func(username string) {
		saveUsername(conf, *configPath, username, appLogger)
	}

	controlService := pb.NewControlService(conf, manager, *configPath, logger.NewLogger(conf, "ControlService"))

	var publisher interfaces.ISnapshotPublisher
	if conf.Redis.Enabled {
		rp, err := publish.NewRedisPublisher(ctx, conf.Redis, logger.NewLogger(conf, "RedisPublisher"))
		if err != nil {
			appLogger.Warning("Redis publishing disabled: %v", err)
		} else {
			publisher = rp
			defer rp.Close()
		}
	}

	// 7. Start Servers
	servers, serversCtx := startServers(ctx, srv, controlService, conf, appLogger)

	// 8. Start Coordinators (Context-Based Direct Push)
	var wg sync.WaitGroup
	results := make(chan models.MCycleResult, 64)
	if err := manager.Start(ctx, results, &wg); err != nil {
		appLogger.Critical("Failed to start coordinators: %v", err)
	}

	// 9. Run Loop (Blocking)
	runDataLoop(serversCtx, results, resultSinks{
		DB:        db,
		Server:    srv,
		History:   history,
		Control:   controlService,
		Publisher: publisher,
		Errors:    helpers.NewErrorHandler(appLogger.Named("ErrorHandler")),
	}, appLogger)

	// 10. Shutdown
	appLogger.Info("Waiting for coordinators to stop...")
	stop()
	manager.Stop()
	wg.Wait()
	if err := servers.Wait(); err != nil {
		appLogger.Error("Server error: %v", err)
	}
	history.Cleanup()
	appLogger.Info("Shutdown complete.")
}

// -----------------------------------------------------------------------------

// saveUsername persists a changed username. The password stays in memory.
func saveUsername(conf *config.Config, path, username string, appLogger *logger.Logger) {
	if conf.Credentials.Username == username {
		return
	}
	conf.Credentials.Username = username
	if err := conf.Save(path); err != nil {
		appLogger.Error("Failed to save config: %v", err)
	}
}
