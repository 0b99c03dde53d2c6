package app

import (
	"errors"

	"github.com/nhle/octobar/internal/source"
)

// describeError turns an engine or remote error into a status bar line.
func describeError(err error) string {
	switch source.KindOf(err) {
	case source.KindNone:
		return ""
	case source.KindNoCredential, source.KindNotAuthenticated:
		return "Not signed in. Press L to sign in."
	case source.KindUnauthorized:
		return "GitHub rejected the token. Sign out with L and sign in again."
	case source.KindForbidden:
		return "The token lacks the notifications scope."
	case source.KindRateLimited:
		return "GitHub rate limit reached. Polling resumes later."
	case source.KindNetwork:
		return "GitHub is unreachable. Showing cached notifications."
	case source.KindStore:
		return "Local cache error: " + rootCause(err).Error()
	default:
		return err.Error()
	}
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
