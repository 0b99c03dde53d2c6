package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Seed upserts records into s, failing the test on error.
func Seed(t *testing.T, s store.Store, records ...model.NotificationRecord) {
	t.Helper()
	if err := s.Upsert(context.Background(), records); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
}

// Record builds an unread issue notification with the given id, reason and
// update time.
func Record(id string, reason model.Reason, updated time.Time) model.NotificationRecord {
	url := fmt.Sprintf("https://api.github.com/repos/acme/widgets/issues/%s", id)
	return model.NotificationRecord{
		ID:            id,
		ContainerName: "acme/widgets",
		SubjectTitle:  "Thread " + id,
		SubjectType:   model.SubjectIssue,
		SubjectURL:    &url,
		Reason:        reason,
		Unread:        true,
		UpdatedAt:     updated.UTC().Truncate(time.Millisecond),
	}
}
