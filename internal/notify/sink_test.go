package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/octobar/internal/model"
)

func TestAlertFor(t *testing.T) {
	url := "https://api.github.com/repos/acme/widgets/pulls/7"
	a := AlertFor(model.NotificationRecord{
		ID:            "42",
		ContainerName: "acme/widgets",
		SubjectTitle:  "Fix flaky build",
		SubjectType:   model.SubjectPullRequest,
		SubjectURL:    &url,
		Reason:        model.ReasonReviewRequested,
		Unread:        true,
		UpdatedAt:     time.Now(),
	})

	assert.Equal(t, "acme/widgets", a.Title)
	assert.Equal(t, "Review requested", a.Subtitle)
	assert.Equal(t, "Fix flaky build", a.Body)
	assert.Equal(t, "acme/widgets", a.GroupKey)
	assert.Equal(t, Payload{ID: "42", URL: url, Type: model.SubjectPullRequest}, a.Payload)
}

func TestAlertForWithoutURL(t *testing.T) {
	a := AlertFor(model.NotificationRecord{ID: "1", Reason: model.ReasonUnknown})
	assert.Empty(t, a.Payload.URL)
}

func TestSummaryText(t *testing.T) {
	assert.Equal(t, "1 new notification", SummaryText(1))
	assert.Equal(t, "7 new notifications", SummaryText(7))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(zerolog.New(&buf), true)
	ctx := context.Background()

	require.True(t, s.IsAuthorized())
	require.NoError(t, s.Deliver(ctx, Alert{Title: "acme/widgets", Body: "hello", Payload: Payload{ID: "1"}}))
	require.NoError(t, s.Deliver(ctx, Alert{Body: "again", Payload: Payload{ID: "2"}}))
	assert.ElementsMatch(t, []string{"1", "2"}, s.Outstanding())

	var line map[string]any
	first, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	require.NoError(t, json.Unmarshal(first, &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "1", line["thread_id"])
	assert.Equal(t, "notify", line["component"])

	require.NoError(t, s.RemoveDelivered(ctx, "1"))
	assert.Equal(t, []string{"2"}, s.Outstanding())

	require.NoError(t, s.RemoveAllDelivered(ctx))
	assert.Empty(t, s.Outstanding())
}

func TestLogSinkDisabled(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(zerolog.New(&buf), false)

	assert.False(t, s.IsAuthorized())
	require.NoError(t, s.Deliver(context.Background(), Alert{Payload: Payload{ID: "1"}}))
	require.NoError(t, s.DeliverSummary(context.Background(), 9))
	assert.Empty(t, s.Outstanding())
	assert.Zero(t, buf.Len())
}

func TestFeedSinkDropsWhenFull(t *testing.T) {
	f := NewFeedSink(1)
	ctx := context.Background()

	require.NoError(t, f.Deliver(ctx, Alert{Body: "first"}))
	require.NoError(t, f.DeliverSummary(ctx, 3))

	got := <-f.Alerts()
	assert.Equal(t, "first", got.Body)
	select {
	case extra := <-f.Alerts():
		t.Fatalf("unexpected alert %+v", extra)
	default:
	}
}

type failingSink struct {
	FeedSink
	authorized bool
}

func (f *failingSink) Deliver(context.Context, Alert) error { return errors.New("boom") }
func (f *failingSink) IsAuthorized() bool                   { return f.authorized }

func TestMulti(t *testing.T) {
	feed := NewFeedSink(4)
	skipped := &failingSink{authorized: false}
	m := Multi{feed, skipped}

	assert.True(t, m.IsAuthorized())
	require.NoError(t, m.Deliver(context.Background(), Alert{Body: "x"}))
	assert.Len(t, feed.Alerts(), 1)

	m = Multi{feed, &failingSink{authorized: true}}
	assert.Error(t, m.Deliver(context.Background(), Alert{Body: "y"}))
	assert.Len(t, feed.Alerts(), 2)

	assert.False(t, Multi{skipped}.IsAuthorized())
}
