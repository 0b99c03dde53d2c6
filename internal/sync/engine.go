// Package sync reconciles the remote notification feed with the local
// store: it schedules passes, detects new threads, raises alerts and
// pushes read state back upstream.
package sync

import (
	"context"
	"errors"
	"fmt"
	"math"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/octobar/internal/credential"
	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/notify"
	"github.com/nhle/octobar/internal/source"
	"github.com/nhle/octobar/internal/store"
)

// fetchTimeout is the maximum time allowed for a single remote call.
const fetchTimeout = 30 * time.Second

// maxIndividualAlerts caps per-thread alerts in one pass; the rest are
// folded into one summary alert.
const maxIndividualAlerts = 5

// Deps are the collaborators an Engine drives.
type Deps struct {
	Remote      source.NotificationSource
	Store       store.Store
	Credentials credential.TokenStore
	Sink        notify.Sink
	Log         zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records pass and mark-read metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRetention enables the post-pass sweep of read threads last updated
// more than d ago. Zero disables it.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) { e.retention = d }
}

// WithFetchTimeout overrides the per-call remote timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs reconciliation passes. At most one pass is in flight at a
// time; read-state calls may run concurrently with a pass.
type Engine struct {
	remote  source.NotificationSource
	store   store.Store
	creds   credential.TokenStore
	sink    notify.Sink
	log     zerolog.Logger
	metrics *Metrics
	events  *hub

	retention    time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	// unit is the length of one interval step; a minute outside tests.
	unit time.Duration

	mu    gosync.Mutex
	state PassState

	// writeMu orders a pass's commit against local read marks and
	// sign-out. Take it before mu, never while holding mu.
	writeMu gosync.Mutex
	epoch   uint64
	guard   readGuard

	// Scheduling, see schedule.go.
	interval  int
	suggested int
	overruled int
	timer     *time.Timer
	gen       uint64
	started   bool
	stopped   bool
	nextFire  time.Time
	runCtx    context.Context
	cancelRun context.CancelFunc

	lastPassAt time.Time
	lastErr    error

	// Projection of the store for presentation.
	records []model.NotificationRecord
	unread  int
}

// New creates an Engine over deps.
func New(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		remote:       deps.Remote,
		store:        deps.Store,
		creds:        deps.Credentials,
		sink:         deps.Sink,
		log:          deps.Log.With().Str("component", "sync").Logger(),
		events:       newHub(),
		fetchTimeout: fetchTimeout,
		now:          time.Now,
		unit:         time.Minute,
		interval:     model.DefaultPollIntervalMinutes,
		guard:        newReadGuard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PollState returns the current phase of the state machine.
func (e *Engine) PollState() PassState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status is a snapshot of engine bookkeeping for display.
type Status struct {
	State      PassState
	Interval   time.Duration
	NextPoll   time.Time
	LastPassAt time.Time
	LastErr    error
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:      e.state,
		Interval:   time.Duration(e.interval) * e.unit,
		NextPoll:   e.nextFire,
		LastPassAt: e.lastPassAt,
		LastErr:    e.lastErr,
	}
}

// Subscribe registers for engine events. Events are dropped for a
// subscriber whose buffer is full. Call the returned func to unsubscribe;
// it closes the channel.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	return e.events.subscribe(buffer)
}

func (e *Engine) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.events.publish(ev)
}

// tryBegin moves Idle to Fetching, reporting false if a pass is running.
func (e *Engine) tryBegin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return false
	}
	e.state = Fetching
	return true
}

func (e *Engine) setState(s PassState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Poll runs one reconciliation pass and returns the number of new
// threads. It returns ErrPassInFlight without side effects when another
// pass is running. A non-nil error with a positive count means the pass
// committed its data but a later step failed.
func (e *Engine) Poll(ctx context.Context) (int, error) {
	if !e.tryBegin() {
		e.metrics.observePass(outcomeDropped, 0, 0)
		return 0, ErrPassInFlight
	}
	defer e.setState(Idle)

	passID := uuid.NewString()
	log := e.log.With().Str("pass_id", passID).Logger()
	start := e.now()

	log.Debug().Msg("pass started")
	n, notModified, err := e.pass(ctx, log)
	elapsed := e.now().Sub(start)

	outcome := outcomeOK
	switch {
	case err != nil:
		outcome = outcomeError
		log.Warn().Err(err).Str("kind", source.KindOf(err).String()).Int("new", n).Msg("pass failed")
	case notModified:
		outcome = outcomeNotModified
		log.Debug().Dur("elapsed", elapsed).Msg("pass not modified")
	default:
		log.Info().Int("new", n).Dur("elapsed", elapsed).Msg("pass completed")
	}
	e.metrics.observePass(outcome, n, elapsed)

	e.mu.Lock()
	e.lastPassAt = e.now()
	e.lastErr = err
	e.mu.Unlock()

	e.publish(Event{Type: PassCompleted, PassID: passID, NewCount: n, Err: err})
	return n, err
}

// pass runs the fetch, diff, persist and notify steps in order. Errors
// after the commit never undo it.
func (e *Engine) pass(ctx context.Context, log zerolog.Logger) (int, bool, error) {
	e.writeMu.Lock()
	epoch := e.epoch
	e.guard.track()
	e.writeMu.Unlock()
	defer func() {
		e.writeMu.Lock()
		e.guard.untrack()
		e.writeMu.Unlock()
	}()

	token, err := e.creds.Get()
	if errors.Is(err, credential.ErrNotFound) {
		return 0, false, ErrNoCredential
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading credential: %w", err)
	}

	settings, err := e.store.LoadSettings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("loading settings, using defaults")
		settings = model.DefaultSettings()
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	res, err := e.remote.FetchNotifications(fetchCtx, token, source.FetchOptions{
		IncludeRead:    false,
		CacheToken:     settings.CacheToken,
		UseConditional: true,
	})
	cancel()
	if err != nil {
		return 0, false, fmt.Errorf("fetching notifications: %w", err)
	}
	if res.Dropped > 0 {
		log.Debug().Int("dropped", res.Dropped).Msg("skipped undecodable records")
	}

	mark := store.PollMark{CacheToken: res.CacheToken, PolledAt: e.now()}

	if res.NotModified {
		current, err := e.commitIfCurrent(epoch, func() error {
			return e.store.RecordPoll(ctx, mark)
		})
		if err != nil {
			return 0, true, err
		}
		if !current {
			log.Info().Msg("signed out during pass, discarding result")
			return 0, true, nil
		}
		e.applySuggestion(res.PollInterval)
		return 0, true, nil
	}

	e.setState(Diffing)
	existing, err := e.store.ExistingIDs(ctx)
	if err != nil {
		return 0, false, err
	}
	fresh := newItems(res.Notifications, existing)

	e.setState(Persisting)
	current, err := e.commitIfCurrent(epoch, func() error {
		if err := e.store.CommitPass(ctx, e.guard.apply(res.Notifications), mark); err != nil {
			return err
		}
		if err := e.reload(ctx); err != nil {
			log.Warn().Err(err).Msg("refreshing projection")
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	if !current {
		log.Info().Msg("signed out during pass, discarding result")
		return 0, false, nil
	}

	e.setState(Notifying)
	alertErr := e.deliverAlerts(ctx, settings, fresh, log)

	e.applySuggestion(res.PollInterval)
	e.sweep(ctx, log)

	if alertErr != nil {
		return len(fresh), false, fmt.Errorf("delivering alerts: %w", alertErr)
	}
	return len(fresh), false, nil
}

// commitIfCurrent runs fn under writeMu unless a sign-out happened after
// epoch was read. It reports whether fn ran.
func (e *Engine) commitIfCurrent(epoch uint64, fn func() error) (bool, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.epoch != epoch {
		return false, nil
	}
	return true, fn()
}

// newItems returns the fetched records whose id is absent from existing.
func newItems(fetched []model.NotificationRecord, existing map[string]struct{}) []model.NotificationRecord {
	var out []model.NotificationRecord
	for _, n := range fetched {
		if _, ok := existing[n.ID]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// deliverAlerts raises up to maxIndividualAlerts alerts, newest first, and
// one summary alert carrying the total when there are more.
func (e *Engine) deliverAlerts(
	ctx context.Context,
	settings model.Settings,
	fresh []model.NotificationRecord,
	log zerolog.Logger,
) error {
	if len(fresh) == 0 || e.sink == nil {
		return nil
	}
	if !settings.NotificationsEnabled || !e.sink.IsAuthorized() {
		log.Debug().Int("new", len(fresh)).Msg("alerts disabled")
		return nil
	}

	ordered := make([]model.NotificationRecord, len(fresh))
	copy(ordered, fresh)
	model.SortByUpdatedDesc(ordered)

	var errs []error
	for i, n := range ordered {
		if i == maxIndividualAlerts {
			break
		}
		if err := e.sink.Deliver(ctx, notify.AlertFor(n)); err != nil {
			errs = append(errs, fmt.Errorf("thread %s: %w", n.ID, err))
		}
	}
	if len(ordered) > maxIndividualAlerts {
		if err := e.sink.DeliverSummary(ctx, len(ordered)); err != nil {
			errs = append(errs, fmt.Errorf("summary: %w", err))
		}
	}
	return errors.Join(errs...)
}

// sweep drops read threads older than the retention window.
func (e *Engine) sweep(ctx context.Context, log zerolog.Logger) {
	if e.retention <= 0 {
		return
	}
	n, err := e.store.DeleteOlderThan(ctx, e.now().Add(-e.retention))
	if err != nil {
		log.Warn().Err(err).Msg("retention sweep")
		return
	}
	if n > 0 {
		log.Debug().Int64("deleted", n).Msg("retention sweep")
		if err := e.reload(ctx); err != nil {
			log.Warn().Err(err).Msg("refreshing projection")
		}
	}
}

// suggestedMinutes rounds a server-suggested interval up to whole steps.
func suggestedMinutes(d, unit time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(unit)))
}
