package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/octobar/internal/credential"
	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/source"
	"github.com/nhle/octobar/internal/store"
	"github.com/nhle/octobar/tests/testutil"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// countingStore counts the mutating calls a pass makes.
type countingStore struct {
	store.Store
	commits     atomic.Int32
	recordPolls atomic.Int32
	snapshots   atomic.Int32
}

func (c *countingStore) CommitPass(ctx context.Context, recs []model.NotificationRecord, m store.PollMark) error {
	c.commits.Add(1)
	return c.Store.CommitPass(ctx, recs, m)
}

func (c *countingStore) RecordPoll(ctx context.Context, m store.PollMark) error {
	c.recordPolls.Add(1)
	return c.Store.RecordPoll(ctx, m)
}

func (c *countingStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	c.snapshots.Add(1)
	return c.Store.ExistingIDs(ctx)
}

type harness struct {
	engine *Engine
	remote *testutil.FakeRemote
	sink   *testutil.RecordingSink
	store  *countingStore
	creds  *credential.MemoryStore
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		remote: &testutil.FakeRemote{Login: "octocat"},
		sink:   &testutil.RecordingSink{},
		store:  &countingStore{Store: testutil.NewTestStore(t)},
		creds:  credential.NewMemoryStore("ghp_test"),
	}
	h.engine = New(Deps{
		Remote:      h.remote,
		Store:       h.store,
		Credentials: h.creds,
		Sink:        h.sink,
		Log:         zerolog.Nop(),
	}, opts...)
	t.Cleanup(h.engine.Stop)
	return h
}

func records(n int) []model.NotificationRecord {
	out := make([]model.NotificationRecord, n)
	for i := range out {
		out[i] = testutil.Record(fmt.Sprint(i+1), model.ReasonMention, base.Add(time.Duration(i)*time.Minute))
	}
	return out
}

func alertIDs(h *harness) []string {
	var ids []string
	for _, a := range h.sink.Delivered() {
		ids = append(ids, a.Payload.ID)
	}
	return ids
}

func TestPollDetectsNewAgainstPreUpsertSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	testutil.Seed(t, h.store, testutil.Record("1", model.ReasonMention, base), testutil.Record("2", model.ReasonComment, base))

	updated := testutil.Record("2", model.ReasonComment, base.Add(time.Hour))
	updated.SubjectTitle = "Edited"
	h.remote.Results = []*source.FetchResult{{
		Notifications: []model.NotificationRecord{
			testutil.Record("1", model.ReasonMention, base),
			updated,
			testutil.Record("3", model.ReasonAssign, base.Add(2*time.Hour)),
		},
		CacheToken: "tok-1",
	}}

	n, err := h.engine.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"3"}, alertIDs(h))
	assert.Empty(t, h.sink.Summaries())

	got, err := h.store.GetByID(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.SubjectTitle)

	// Same batch again: ids now exist, nothing is new.
	n, err = h.engine.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, h.sink.Delivered(), 1)

	all, err := h.store.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 3, h.engine.UnreadCount())
	assert.Equal(t, Idle, h.engine.PollState())
}

func TestPollSeedsConditionalFetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.PutSetting(ctx, store.KeyCacheToken, "Sat, 01 Mar 2025 12:00:00 GMT"))

	_, err := h.engine.Poll(ctx)
	require.NoError(t, err)

	fetches := h.remote.Fetches()
	require.Len(t, fetches, 1)
	assert.False(t, fetches[0].IncludeRead)
	assert.True(t, fetches[0].UseConditional)
	assert.Equal(t, "Sat, 01 Mar 2025 12:00:00 GMT", fetches[0].CacheToken)
}

func TestNotModifiedSkipsDiffPersistAndNotify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.remote.Results = []*source.FetchResult{{NotModified: true, CacheToken: "tok-2"}}
	events, cancel := h.engine.Subscribe(4)
	defer cancel()

	n, err := h.engine.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Zero(t, h.store.commits.Load())
	assert.Zero(t, h.store.snapshots.Load())
	assert.Equal(t, int32(1), h.store.recordPolls.Load())
	assert.Empty(t, h.sink.Delivered())
	assert.Empty(t, h.sink.Summaries())

	st, err := h.store.LoadSettings(ctx)
	require.NoError(t, err)
	assert.NotNil(t, st.LastPollAt)
	assert.Equal(t, "tok-2", st.CacheToken)

	ev := <-events
	assert.Equal(t, PassCompleted, ev.Type)
	assert.Zero(t, ev.NewCount)
	assert.NoError(t, ev.Err)
	assert.NotEmpty(t, ev.PassID)
}

func TestSevenNewItemsGiveFiveAlertsAndOneSummary(t *testing.T) {
	h := newHarness(t)

	h.remote.Results = []*source.FetchResult{{Notifications: records(7)}}

	n, err := h.engine.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	assert.Equal(t, []string{"7", "6", "5", "4", "3"}, alertIDs(h))
	assert.Equal(t, []int{7}, h.sink.Summaries())
}

func TestAlertsSkipped(t *testing.T) {
	t.Run("notifications disabled", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		require.NoError(t, h.store.PutSetting(ctx, store.KeyNotificationsEnabled, "false"))
		h.remote.Results = []*source.FetchResult{{Notifications: records(3)}}

		n, err := h.engine.Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Empty(t, h.sink.Delivered())
	})

	t.Run("sink not authorized", func(t *testing.T) {
		h := newHarness(t)
		h.sink.Unauthorized = true
		h.remote.Results = []*source.FetchResult{{Notifications: records(3)}}

		n, err := h.engine.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Empty(t, h.sink.Delivered())
	})
}

func TestPollWithoutCredential(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.creds.Delete())

	_, err := h.engine.Poll(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, source.KindNoCredential, source.KindOf(err))
	assert.Empty(t, h.remote.Fetches())
	assert.Equal(t, err, h.engine.Status().LastErr)
}

func TestFetchErrorIsReported(t *testing.T) {
	h := newHarness(t)
	h.remote.FetchErr = &source.AuthError{Message: "Bad credentials"}
	events, cancel := h.engine.Subscribe(4)
	defer cancel()

	_, err := h.engine.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, source.KindUnauthorized, source.KindOf(err))
	assert.Zero(t, h.store.commits.Load())

	ev := <-events
	assert.Equal(t, PassCompleted, ev.Type)
	assert.Equal(t, source.KindUnauthorized, source.KindOf(ev.Err))
	assert.Equal(t, Idle, h.engine.PollState())
}

func TestAlertFailureKeepsCommittedData(t *testing.T) {
	h := newHarness(t)
	h.sink.Err = errors.New("banner service down")
	h.remote.Results = []*source.FetchResult{{Notifications: records(2), CacheToken: "tok"}}

	n, err := h.engine.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, n)

	all, err := h.store.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	v, ok, err := h.store.GetSetting(context.Background(), store.KeyCacheToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestConcurrentTriggerIsDropped(t *testing.T) {
	h := newHarness(t)
	h.remote.Block = make(chan struct{})
	h.remote.Started = make(chan struct{}, 2)
	h.remote.Results = []*source.FetchResult{{Notifications: records(2)}}

	events, cancel := h.engine.Subscribe(8)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.Poll(context.Background())
		done <- err
	}()
	<-h.remote.Started
	assert.Equal(t, Fetching, h.engine.PollState())

	_, err := h.engine.Poll(context.Background())
	assert.ErrorIs(t, err, ErrPassInFlight)
	_, err = h.engine.PollNow(context.Background())
	assert.ErrorIs(t, err, ErrPassInFlight)

	close(h.remote.Block)
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), h.store.commits.Load())
	assert.Len(t, h.remote.Fetches(), 1)

	ev := <-events
	assert.Equal(t, PassCompleted, ev.Type)
	select {
	case extra := <-events:
		t.Fatalf("unexpected event %v", extra.Type)
	default:
	}
}

func TestServerSuggestionWidensButUserWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.SetInterval(ctx, 20)
	require.NoError(t, err)

	h.remote.Results = []*source.FetchResult{{PollInterval: 30 * time.Minute}}
	_, err = h.engine.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, h.engine.Interval())

	_, err = h.engine.SetInterval(ctx, 10)
	require.NoError(t, err)
	_, err = h.engine.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, h.engine.Interval())

	h.remote.Results = []*source.FetchResult{{PollInterval: 45 * time.Minute}}
	_, err = h.engine.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, h.engine.Interval())
}

func TestServerSuggestionNeverNarrowsAndIsCapped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.SetInterval(ctx, 20)
	require.NoError(t, err)

	h.remote.Results = []*source.FetchResult{{PollInterval: time.Minute}}
	_, err = h.engine.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, h.engine.Interval())

	h.remote.Results = []*source.FetchResult{{NotModified: true, PollInterval: 3 * time.Hour}}
	_, err = h.engine.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Minute, h.engine.Interval())
}

func TestSetIntervalClampsAndPersists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	events, cancel := h.engine.Subscribe(4)
	defer cancel()

	got, err := h.engine.SetInterval(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.MinPollIntervalMinutes, got)

	v, ok, err := h.store.GetSetting(ctx, store.KeyPollInterval)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "5", v)

	ev := <-events
	assert.Equal(t, IntervalChanged, ev.Type)
	assert.Equal(t, 5*time.Minute, ev.Interval)
	assert.False(t, ev.ServerSuggested)

	got, err = h.engine.SetInterval(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, model.MaxPollIntervalMinutes, got)
}

func TestRetentionSweep(t *testing.T) {
	h := newHarness(t, WithRetention(24*time.Hour), WithClock(func() time.Time { return base }))
	ctx := context.Background()

	old := testutil.Record("old", model.ReasonMention, base.Add(-72*time.Hour))
	old.Unread = false
	testutil.Seed(t, h.store, old)
	h.remote.Results = []*source.FetchResult{{Notifications: records(1)}}

	_, err := h.engine.Poll(ctx)
	require.NoError(t, err)

	_, err = h.store.GetByID(ctx, "old")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, h.engine.Notifications(model.CategoryAll), 1)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := newHarness(t, WithMetrics(m))
	ctx := context.Background()

	h.remote.Results = []*source.FetchResult{
		{Notifications: records(3)},
		{NotModified: true},
	}
	_, err := h.engine.Poll(ctx)
	require.NoError(t, err)
	_, err = h.engine.Poll(ctx)
	require.NoError(t, err)
	h.remote.SetFetchErr(errors.New("boom"))
	_, err = h.engine.Poll(ctx)
	require.Error(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.passes.WithLabelValues(outcomeOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.passes.WithLabelValues(outcomeNotModified)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.passes.WithLabelValues(outcomeError)))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.newItems))

	h.remote.MarkErr = errors.New("nope")
	require.Error(t, h.engine.MarkAsRead(ctx, "1"))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.markRead.WithLabelValues(outcomeError)))
}
