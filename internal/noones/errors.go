package noones

import (
	"errors"
	"fmt"
)

// ErrAuthentication indicates the token endpoint rejected the
// client-credentials exchange. Fatal to the calling request; the relay
// never retries.
var ErrAuthentication = errors.New("authentication failed")

// APIError reports a non-200 response from a platform endpoint.
type APIError struct {
	Endpoint   string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform returned %d for %s", e.StatusCode, e.Endpoint)
}
