package zoho

import (
	"errors"
	"fmt"

	"github.com/mbd888/distrokit/internal/config"
)

var (
	// ErrConfiguration matches config.ErrConfiguration so startup code can
	// check either.
	ErrConfiguration = config.ErrConfiguration

	// ErrProviderRejected means Zoho answered but refused the request.
	ErrProviderRejected = errors.New("zoho: request rejected")

	// ErrProviderUnavailable means Zoho could not be reached or answered with
	// something other than a decision: transport errors, 5xx, unreadable
	// bodies, or an open circuit.
	ErrProviderUnavailable = errors.New("zoho: provider unavailable")
)

// codeUnauthorized is the Zoho Books code for a token that is not (or no
// longer) authorized.
const codeUnauthorized = 57

// APIError is a business rejection from Zoho Books. It matches
// ErrProviderRejected.
type APIError struct {
	Code       int    // Zoho "code", non-zero on failure
	Message    string // Zoho "message"
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zoho: rejected (http %d, code %d): %s", e.HTTPStatus, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrProviderRejected
}
