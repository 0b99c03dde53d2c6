package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// LogSink writes alerts as structured log events. It stands in for OS
// banners on headless hosts and keeps track of which threads have an
// outstanding alert.
type LogSink struct {
	log     zerolog.Logger
	enabled bool

	mu        sync.Mutex
	delivered map[string]Alert
}

// NewLogSink returns a sink logging through log. A disabled sink reports
// itself unauthorized and drops every alert.
func NewLogSink(log zerolog.Logger, enabled bool) *LogSink {
	return &LogSink{
		log:       log.With().Str("component", "notify").Logger(),
		enabled:   enabled,
		delivered: make(map[string]Alert),
	}
}

func (s *LogSink) Deliver(_ context.Context, a Alert) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()
	s.delivered[a.Payload.ID] = a
	s.mu.Unlock()

	s.log.Info().
		Str("thread_id", a.Payload.ID).
		Str("repo", a.Title).
		Str("reason", a.Subtitle).
		Str("subject_type", string(a.Payload.Type)).
		Str("url", a.Payload.URL).
		Msg(a.Body)
	return nil
}

func (s *LogSink) DeliverSummary(_ context.Context, count int) error {
	if !s.enabled {
		return nil
	}
	s.log.Info().Int("count", count).Msg(SummaryText(count))
	return nil
}

func (s *LogSink) RemoveDelivered(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.delivered, id)
	s.mu.Unlock()
	return nil
}

func (s *LogSink) RemoveAllDelivered(_ context.Context) error {
	s.mu.Lock()
	s.delivered = make(map[string]Alert)
	s.mu.Unlock()
	return nil
}

func (s *LogSink) IsAuthorized() bool { return s.enabled }

// Outstanding returns the ids with a delivered, not yet removed alert.
func (s *LogSink) Outstanding() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.delivered))
	for id := range s.delivered {
		ids = append(ids, id)
	}
	return ids
}

// FeedSink forwards alerts to a channel for an in-process consumer such
// as the terminal UI. Sends never block; alerts are dropped when the
// buffer is full.
type FeedSink struct {
	ch chan Alert
}

// NewFeedSink returns a sink with the given channel buffer.
func NewFeedSink(buffer int) *FeedSink {
	return &FeedSink{ch: make(chan Alert, buffer)}
}

// Alerts returns the receive side of the feed.
func (f *FeedSink) Alerts() <-chan Alert { return f.ch }

func (f *FeedSink) Deliver(_ context.Context, a Alert) error {
	select {
	case f.ch <- a:
	default:
	}
	return nil
}

func (f *FeedSink) DeliverSummary(_ context.Context, count int) error {
	select {
	case f.ch <- Alert{Title: "octobar", Body: SummaryText(count)}:
	default:
	}
	return nil
}

func (f *FeedSink) RemoveDelivered(context.Context, string) error { return nil }
func (f *FeedSink) RemoveAllDelivered(context.Context) error      { return nil }
func (f *FeedSink) IsAuthorized() bool                            { return true }
