package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager is the HTTP capability handed to API clients. It performs a
// single request, with no retries and no status interpretation.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Do sends one request and returns the status code and the full body.
	// Transport failures (including timeouts) are returned as errors.
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (int, []byte, error)

	// -----------------------------------------------------------------------------

	// GetUserAgent returns the User-Agent header to send.
	GetUserAgent() string
}
