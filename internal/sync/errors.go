package sync

import (
	"errors"

	"github.com/nhle/octobar/internal/source"
)

// kindError is a sentinel that classifies itself for source.KindOf.
type kindError struct {
	msg  string
	kind source.ErrorKind
}

func (e *kindError) Error() string               { return e.msg }
func (e *kindError) ErrorKind() source.ErrorKind { return e.kind }

var (
	// ErrNoCredential ends a pass when no access token is stored.
	ErrNoCredential error = &kindError{"no stored credential", source.KindNoCredential}

	// ErrNotAuthenticated rejects user actions attempted while signed out.
	ErrNotAuthenticated error = &kindError{"not signed in", source.KindNotAuthenticated}

	// ErrPassInFlight is returned by Poll when another pass is running.
	// The trigger is dropped, not queued.
	ErrPassInFlight = errors.New("reconciliation pass already in flight")
)
