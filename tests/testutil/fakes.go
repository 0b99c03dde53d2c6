package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/nhle/octobar/internal/notify"
	"github.com/nhle/octobar/internal/source"
)

// FakeRemote is a scripted source.NotificationSource.
type FakeRemote struct {
	mu sync.Mutex

	// Results are returned by successive fetches; the last one repeats.
	Results  []*source.FetchResult
	FetchErr error

	MarkErr     error
	MarkAllErr  error
	Login       string
	ValidateErr error

	// Block, when set, holds every fetch until it is closed or the
	// context ends. Started receives one value per fetch that begins.
	Block   chan struct{}
	Started chan struct{}

	fetches   []source.FetchOptions
	marked    []string
	markedAll []*time.Time
	validated []string
}

var _ source.NotificationSource = (*FakeRemote)(nil)

func (f *FakeRemote) FetchNotifications(
	ctx context.Context,
	_ string,
	opts source.FetchOptions,
) (*source.FetchResult, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, opts)
	started, block := f.Started, f.Block
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	if len(f.Results) == 0 {
		return &source.FetchResult{}, nil
	}
	res := f.Results[0]
	if len(f.Results) > 1 {
		f.Results = f.Results[1:]
	}
	cp := *res
	return &cp, nil
}

func (f *FakeRemote) MarkThreadRead(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return f.MarkErr
}

func (f *FakeRemote) MarkAllRead(_ context.Context, _ string, since *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedAll = append(f.markedAll, since)
	return f.MarkAllErr
}

func (f *FakeRemote) ValidateToken(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, token)
	if f.ValidateErr != nil {
		return "", f.ValidateErr
	}
	return f.Login, nil
}

// Fetches returns the options of every fetch so far.
func (f *FakeRemote) Fetches() []source.FetchOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]source.FetchOptions(nil), f.fetches...)
}

// Marked returns the ids passed to MarkThreadRead.
func (f *FakeRemote) Marked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.marked...)
}

// MarkedAll returns the number of MarkAllRead calls.
func (f *FakeRemote) MarkedAll() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.markedAll)
}

// SetFetchErr changes the fetch error under the lock.
func (f *FakeRemote) SetFetchErr(err error) {
	f.mu.Lock()
	f.FetchErr = err
	f.mu.Unlock()
}

// RecordingSink is a notify.Sink that remembers every call.
type RecordingSink struct {
	mu sync.Mutex

	Unauthorized bool
	Err          error

	delivered  []notify.Alert
	summaries  []int
	removed    []string
	removedAll int
}

var _ notify.Sink = (*RecordingSink)(nil)

func (s *RecordingSink) Deliver(_ context.Context, a notify.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, a)
	return s.Err
}

func (s *RecordingSink) DeliverSummary(_ context.Context, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, count)
	return s.Err
}

func (s *RecordingSink) RemoveDelivered(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, id)
	return nil
}

func (s *RecordingSink) RemoveAllDelivered(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removedAll++
	return nil
}

func (s *RecordingSink) IsAuthorized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.Unauthorized
}

// Delivered returns the alerts delivered so far.
func (s *RecordingSink) Delivered() []notify.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Alert(nil), s.delivered...)
}

// Summaries returns the counts passed to DeliverSummary.
func (s *RecordingSink) Summaries() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.summaries...)
}

// Removed returns the ids passed to RemoveDelivered.
func (s *RecordingSink) Removed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.removed...)
}

// RemovedAll returns the number of RemoveAllDelivered calls.
func (s *RecordingSink) RemovedAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removedAll
}
