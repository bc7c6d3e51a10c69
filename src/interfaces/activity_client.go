package interfaces

import (
	"context"
	"time"

	"alphatrak-observer/src/models"
)

// -----------------------------------------------------------------------------
// IActivityClient is the part of the AlphaTRAK client a poll cycle needs.
// -----------------------------------------------------------------------------

type IActivityClient interface {

	// FetchActivity retrieves all categories for the configured pet in
	// [from, to]. An empty languageID means the default.
	FetchActivity(ctx context.Context, from, to time.Time, languageID string) (*models.MActivityPayload, error)

	// -----------------------------------------------------------------------------

	// ValidateConnection runs the short validation fetch. Only cancellation
	// is returned as an error.
	ValidateConnection(ctx context.Context) (bool, error)

	// -----------------------------------------------------------------------------

	// SetToken replaces the bearer token for subsequent requests.
	SetToken(token string)
}

// -----------------------------------------------------------------------------
// IAuthenticator performs a password login.
// -----------------------------------------------------------------------------

type IAuthenticator interface {
	Login(ctx context.Context, username, password string) (*models.MLoginResult, error)
}
