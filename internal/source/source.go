package source

import (
	"context"
	"time"

	"github.com/nhle/octobar/internal/model"
)

// PageSize is the fixed number of threads requested per fetch.
const PageSize = 50

// FetchOptions controls a single notification list request.
type FetchOptions struct {
	// IncludeRead asks for read threads as well as unread ones.
	IncludeRead bool

	// Since restricts results to threads updated after this time.
	Since *time.Time

	// CacheToken is the validator captured from the previous response.
	CacheToken string

	// UseConditional attaches CacheToken so the server may answer
	// "not modified". Ignored when CacheToken is empty.
	UseConditional bool
}

// FetchResult holds the outcome of a notification list request.
type FetchResult struct {
	Notifications []model.NotificationRecord

	// NotModified is set when the server confirmed nothing changed since
	// the supplied cache token. Notifications is empty in that case.
	NotModified bool

	// CacheToken is the validator to persist for the next conditional fetch.
	CacheToken string

	// PollInterval is the server's suggested minimum interval, zero if absent.
	PollInterval time.Duration

	// Dropped counts records that failed to decode and were skipped.
	Dropped int
}

// NotificationSource is the contract of the remote notification API.
// Implementations hold no per-call mutable state; everything a request
// depends on is passed in.
type NotificationSource interface {
	// FetchNotifications lists notification threads.
	FetchNotifications(
		ctx context.Context,
		token string,
		opts FetchOptions,
	) (*FetchResult, error)

	// MarkThreadRead marks a single thread as read.
	MarkThreadRead(ctx context.Context, token, id string) error

	// MarkAllRead marks every thread updated before since (or now, when
	// since is nil) as read.
	MarkAllRead(ctx context.Context, token string, since *time.Time) error

	// ValidateToken verifies the token and returns the account identity.
	ValidateToken(ctx context.Context, token string) (string, error)
}
