package main

import (
	"context"
	"fmt"

	"alphatrak-observer/src/config"
	datasource "alphatrak-observer/src/data_source"
	"alphatrak-observer/src/data_source/alphatrak"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
)

// -----------------------------------------------------------------------------

// authenticate installs the configured token, or logs in when there is none
// or pet discovery needs the account's user id.
func authenticate(ctx context.Context, conf *config.Config, account *alphatrak.Client, appLogger *logger.Logger) error {
	needLogin := conf.Credentials.Token == "" || (len(conf.Pets) == 0 && conf.Credentials.Password != "")
	if !needLogin {
		account.SetToken(conf.Credentials.Token)
		appLogger.Info("Using configured access token")
		return nil
	}

	if conf.Credentials.Username == "" || conf.Credentials.Password == "" {
		return fmt.Errorf("login needs a username and password")
	}
	result, err := account.Login(ctx, conf.Credentials.Username, conf.Credentials.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if result.Token == "" {
		return fmt.Errorf("login returned no access token")
	}
	return nil
}

// -----------------------------------------------------------------------------

// discoverPets returns the configured pets, or lists the account's pets when
// none are configured. Listed pets are registered in storage.
func discoverPets(
	ctx context.Context,
	conf *config.Config,
	account *alphatrak.Client,
	db interfaces.IDatabase,
	appLogger *logger.Logger,
) ([]int64, error) {
	if _, ok := account.Session().UserID(); !ok {
		if len(conf.Pets) == 0 {
			return nil, fmt.Errorf("pet discovery needs a login that returns a user id")
		}
		return conf.Pets, nil
	}

	pets, err := account.ListPets(ctx)
	if err != nil {
		if len(conf.Pets) > 0 {
			appLogger.Warning("Pet discovery failed, using configured pets: %v", err)
			return conf.Pets, nil
		}
		return nil, fmt.Errorf("pet discovery failed: %w", err)
	}

	if db != nil {
		if err := db.RegisterPets(pets); err != nil {
			appLogger.Error("Failed to register pets: %v", err)
		}
	}

	if len(conf.Pets) > 0 {
		return conf.Pets, nil
	}

	var ids []int64
	for _, p := range pets {
		if id, ok := p.ID(); ok {
			appLogger.Info("Discovered pet %d (%s)", id, p.Name())
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no pets found for %s", conf.Credentials.Username)
	}
	return ids, nil
}

// -----------------------------------------------------------------------------

// validatePets runs the short connectivity check per pet. Failures are
// logged only; the regular cycles report the real outcome.
func validatePets(ctx context.Context, manager *datasource.MultiPetManager, appLogger *logger.Logger) {
	for _, c := range manager.All() {
		ok, err := c.Validate(ctx)
		switch {
		case err != nil:
			appLogger.Warning("Validation for pet %d interrupted: %v", c.PetID(), err)
			return
		case !ok:
			appLogger.Warning("Validation for pet %d failed, polling anyway", c.PetID())
		default:
			appLogger.Info("Validated connection for pet %d", c.PetID())
		}
	}
}
