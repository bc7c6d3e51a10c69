package main

import (
	"fmt"
	"strings"

	"alphatrak-observer/src/analysis"
	datasource "alphatrak-observer/src/data_source"
	"alphatrak-observer/src/data_source/alphatrak"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
	"alphatrak-observer/src/network"
	"alphatrak-observer/src/storage"
	"alphatrak-observer/src/utils"
)

// -----------------------------------------------------------------------------

// setupDatabase initializes the database connection based on config. A nil
// database means storage is disabled.
func setupDatabase(config *models.MConfig, appLogger *logger.Logger) (interfaces.IDatabase, error) {
	var db interfaces.IDatabase
	var err error

	switch strings.ToLower(config.Storage.DBType) {
	case "none":
		appLogger.Info("Storage disabled")
		return nil, nil
	case "postgres":
		pgLogger := logger.NewLogger(config, "PostgresDB")
		db, err = storage.NewPostgresDB(config, pgLogger)
	default:
		sqliteLogger := logger.NewLogger(config, "SQLiteDB")
		db, err = storage.NewAsyncSQLiteDB(config, sqliteLogger)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	return db, nil
}

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(config *models.MConfig) interfaces.INetworkManager {
	networkLogger := logger.NewLogger(config, "NetworkManager")
	return network.NewAsyncNetworkManager(config, networkLogger)
}

// -----------------------------------------------------------------------------

// setupClient builds the account-level client that logs in and lists pets.
func setupClient(config *models.MConfig, networkManager interfaces.INetworkManager) *alphatrak.Client {
	clientLogger := logger.NewLogger(config, "AlphaTRAK")
	return alphatrak.NewClient(alphatrak.ConfigFromModel(config), networkManager, clientLogger)
}

// -----------------------------------------------------------------------------

// setupCoordinators creates one coordinator per pet. Every pet gets its own
// client sharing the account token, so pet ids never race.
func setupCoordinators(
	config *models.MConfig,
	account *alphatrak.Client,
	petIDs []int64,
	appLogger *logger.Logger,
) *datasource.MultiPetManager {
	analysisLogger := logger.NewLogger(config, "Analysis")
	analyzer := analysis.NewAnalysisFacade(config, analysisLogger)

	opts := datasource.CoordinatorOptions{
		Interval: utils.Minutes(config.Polling.IntervalMinutes, utils.DefaultPollInterval),
		Window:   utils.Days(config.Polling.WindowDays, utils.DefaultFetchWindow),
	}

	coordinators := make([]*datasource.Coordinator, 0, len(petIDs))
	for _, id := range petIDs {
		client := account.Fork()
		client.SetToken(account.Token())
		client.SetPetID(id)

		coordLogger := logger.NewLogger(config, fmt.Sprintf("Pet-%d", id))
		newAuth := func() interfaces.IAuthenticator { return client.Fork() }
		coordinators = append(coordinators, datasource.NewCoordinator(id, client, newAuth, analyzer, opts, coordLogger))
	}

	appLogger.Info("Initializing MultiPetManager for %d pets.", len(coordinators))
	return datasource.NewMultiPetManager(coordinators, logger.NewLogger(config, "MultiPetManager"))
}
