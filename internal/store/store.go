package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/source"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// StoreError wraps a failed persistence operation. A failed operation
// leaves the prior durable state unchanged.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrorKind classifies store failures for presentation.
func (e *StoreError) ErrorKind() source.ErrorKind {
	if errors.Is(e.Err, ErrNotFound) {
		return source.KindNotFound
	}
	return source.KindStore
}

// PollMark is the settings side of a successful poll.
type PollMark struct {
	// CacheToken is the validator for the next conditional fetch. Empty
	// clears the stored validator.
	CacheToken string

	PolledAt time.Time
}

// Store defines the persistence interface for notification threads and
// scalar settings. Mutations are serialized at the store boundary.
type Store interface {
	// === Notifications ===

	// Upsert inserts or replaces records by id in one transaction.
	Upsert(ctx context.Context, records []model.NotificationRecord) error
	FetchAll(ctx context.Context) ([]model.NotificationRecord, error)
	FetchByCategory(ctx context.Context, c model.Category) ([]model.NotificationRecord, error)
	GetByID(ctx context.Context, id string) (*model.NotificationRecord, error)
	CountUnread(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	ExistingIDs(ctx context.Context) (map[string]struct{}, error)

	// DeleteOlderThan removes read records last updated before cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// ClearAll deletes every notification and settings row.
	ClearAll(ctx context.Context) error

	// === Poll bookkeeping ===

	// CommitPass upserts records and records the poll mark atomically.
	CommitPass(ctx context.Context, records []model.NotificationRecord, mark PollMark) error

	// RecordPoll records the poll mark without touching notifications.
	RecordPoll(ctx context.Context, mark PollMark) error

	// === Settings ===

	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
	LoadSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error

	Close() error
}
