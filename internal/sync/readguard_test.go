package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/source"
	"github.com/nhle/octobar/internal/store"
	"github.com/nhle/octobar/tests/testutil"
)

func TestReadGuardCoversMarksUntilNewerActivity(t *testing.T) {
	g := newReadGuard()
	g.track()
	markedAt := base.Add(time.Hour)

	g.begin("1", markedAt)
	g.end("1", markedAt, true)
	g.begin("2", markedAt)
	g.end("2", markedAt, false)

	older := testutil.Record("1", model.ReasonMention, base)
	newer := testutil.Record("1", model.ReasonMention, base.Add(2*time.Hour))
	failed := testutil.Record("2", model.ReasonMention, base)

	out := g.apply([]model.NotificationRecord{older, newer, failed})
	assert.False(t, out[0].Unread)
	require.NotNil(t, out[0].LastReadAt)
	assert.Equal(t, markedAt, *out[0].LastReadAt)
	assert.True(t, out[1].Unread)
	assert.True(t, out[2].Unread)
	assert.True(t, older.Unread)
}

func TestReadGuardMarkAllCutoff(t *testing.T) {
	g := newReadGuard()
	cutoff := base.Add(time.Hour)
	before := testutil.Record("1", model.ReasonMention, base)
	after := testutil.Record("2", model.ReasonMention, base.Add(2*time.Hour))

	g.beginAll(cutoff)
	out := g.apply([]model.NotificationRecord{before, after})
	assert.False(t, out[0].Unread)
	assert.True(t, out[1].Unread)

	// Without a pass tracking, a finished mark leaves nothing behind.
	g.endAll(cutoff, true)
	out = g.apply([]model.NotificationRecord{before})
	assert.True(t, out[0].Unread)
}

func TestMarkReadDuringPassSurvivesCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.Results = []*source.FetchResult{{Notifications: records(1)}}
	_, err := h.engine.Poll(ctx)
	require.NoError(t, err)

	// The blocked fetch still reports thread 1 unread; the remote no
	// longer lists it once the mark is acknowledged.
	h.remote.Block = make(chan struct{})
	h.remote.Started = make(chan struct{}, 1)
	h.remote.Results = []*source.FetchResult{{Notifications: records(1)}, {}}

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.Poll(ctx)
		done <- err
	}()
	<-h.remote.Started

	require.NoError(t, h.engine.MarkAsRead(ctx, "1"))
	close(h.remote.Block)
	require.NoError(t, <-done)

	got, err := h.store.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.False(t, got.Unread)
	assert.Zero(t, h.engine.UnreadCount())

	_, err = h.engine.Poll(ctx)
	require.NoError(t, err)

	got, err = h.store.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.False(t, got.Unread)
	assert.Zero(t, h.engine.UnreadCount())
}

func TestMarkAllReadDuringPassSurvivesCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.Block = make(chan struct{})
	h.remote.Started = make(chan struct{}, 1)
	h.remote.Results = []*source.FetchResult{{Notifications: records(3)}}

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.Poll(ctx)
		done <- err
	}()
	<-h.remote.Started

	require.NoError(t, h.engine.MarkAllAsRead(ctx))
	close(h.remote.Block)
	require.NoError(t, <-done)

	n, err := h.store.CountUnread(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.engine.UnreadCount())
}

func TestSignOutDuringPassDiscardsResult(t *testing.T) {
	for _, tc := range []struct {
		name   string
		result *source.FetchResult
	}{
		{"changed", &source.FetchResult{Notifications: records(3), CacheToken: "Tue, 01 Jan 2025 00:00:00 GMT"}},
		{"not modified", &source.FetchResult{NotModified: true, CacheToken: "Tue, 01 Jan 2025 00:00:00 GMT"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.remote.Block = make(chan struct{})
			h.remote.Started = make(chan struct{}, 1)
			h.remote.Results = []*source.FetchResult{tc.result}

			done := make(chan error, 1)
			go func() {
				_, err := h.engine.Poll(ctx)
				done <- err
			}()
			<-h.remote.Started

			require.NoError(t, h.engine.SignOut(ctx))
			close(h.remote.Block)
			require.NoError(t, <-done)

			all, err := h.store.FetchAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
			for _, key := range []string{store.KeyCacheToken, store.KeyLastPollAt} {
				_, ok, err := h.store.GetSetting(ctx, key)
				require.NoError(t, err)
				assert.False(t, ok, key)
			}
			assert.Empty(t, h.engine.Notifications(model.CategoryAll))
			assert.Zero(t, h.engine.UnreadCount())
			assert.Empty(t, h.sink.Delivered())
			assert.Zero(t, h.store.commits.Load())
			assert.Zero(t, h.store.recordPolls.Load())
		})
	}
}
