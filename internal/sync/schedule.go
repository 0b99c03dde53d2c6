package sync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/store"
)

// Start loads the poll interval from settings and arms the recurring
// timer. The first pass runs one interval from now; call PollNow for an
// immediate one. Start after Stop re-arms the timer.
func (e *Engine) Start(ctx context.Context) error {
	settings, err := e.store.LoadSettings(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("loading settings, using defaults")
		settings = model.DefaultSettings()
	}
	if err := e.reload(ctx); err != nil {
		e.log.Warn().Err(err).Msg("loading projection")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started && !e.stopped {
		return nil
	}
	e.interval = model.ClampPollInterval(settings.PollIntervalMinutes)
	e.runCtx, e.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	e.started = true
	e.stopped = false
	e.armLocked()

	e.log.Info().Int("interval_min", e.interval).Msg("scheduler started")
	return nil
}

// Stop disarms the timer. No firing happens after Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.stopped {
		return
	}
	e.stopped = true
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.nextFire = time.Time{}
	if e.cancelRun != nil {
		e.cancelRun()
	}
	e.log.Info().Msg("scheduler stopped")
}

// PollNow runs a pass immediately and reschedules the next firing one
// interval after it completes.
func (e *Engine) PollNow(ctx context.Context) (int, error) {
	n, err := e.Poll(ctx)
	if !errors.Is(err, ErrPassInFlight) {
		e.rearm()
	}
	return n, err
}

// SetInterval stores a user-chosen interval, clamped to the allowed
// range, and reschedules the next firing relative to now. A user choice
// overrides the server's current suggestion.
func (e *Engine) SetInterval(ctx context.Context, minutes int) (int, error) {
	minutes = model.ClampPollInterval(minutes)
	if err := e.store.PutSetting(ctx, store.KeyPollInterval, strconv.Itoa(minutes)); err != nil {
		return 0, fmt.Errorf("saving poll interval: %w", err)
	}

	e.mu.Lock()
	e.interval = minutes
	e.overruled = e.suggested
	e.armLocked()
	d := time.Duration(minutes) * e.unit
	e.mu.Unlock()

	e.log.Info().Int("interval_min", minutes).Msg("poll interval set")
	e.publish(Event{Type: IntervalChanged, Interval: d})
	return minutes, nil
}

// SavePreferences stores the user-editable settings, leaving the poll
// bookkeeping alone. A changed interval goes through SetInterval.
func (e *Engine) SavePreferences(ctx context.Context, s model.Settings) error {
	pairs := [][2]string{
		{store.KeyShowBadge, strconv.FormatBool(s.ShowBadge)},
		{store.KeyNotificationsEnabled, strconv.FormatBool(s.NotificationsEnabled)},
		{store.KeyLaunchAtLogin, strconv.FormatBool(s.LaunchAtLogin)},
		{store.KeyIconStyle, string(s.IconStyle)},
	}
	for _, p := range pairs {
		if err := e.store.PutSetting(ctx, p[0], p[1]); err != nil {
			return fmt.Errorf("saving preferences: %w", err)
		}
	}

	current, err := e.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	if model.ClampPollInterval(s.PollIntervalMinutes) == current.PollIntervalMinutes {
		return nil
	}
	_, err = e.SetInterval(ctx, s.PollIntervalMinutes)
	return err
}

// Interval returns the current poll interval.
func (e *Engine) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Duration(e.interval) * e.unit
}

// applySuggestion widens the interval to a larger server suggestion,
// capped at the maximum. It never narrows the interval, and a suggestion
// the user has already overruled is ignored until the server changes it.
func (e *Engine) applySuggestion(d time.Duration) {
	e.mu.Lock()
	minutes := suggestedMinutes(d, e.unit)
	if minutes != e.suggested {
		e.overruled = 0
	}
	e.suggested = minutes

	if minutes == 0 || minutes <= e.interval || minutes == e.overruled {
		e.mu.Unlock()
		return
	}
	if minutes > model.MaxPollIntervalMinutes {
		minutes = model.MaxPollIntervalMinutes
	}
	if minutes <= e.interval {
		e.mu.Unlock()
		return
	}
	e.interval = minutes
	e.armLocked()
	interval := time.Duration(minutes) * e.unit
	e.mu.Unlock()

	e.log.Info().Int("interval_min", minutes).Msg("server widened poll interval")
	e.publish(Event{Type: IntervalChanged, Interval: interval, ServerSuggested: true})
}

func (e *Engine) rearm() {
	e.mu.Lock()
	e.armLocked()
	e.mu.Unlock()
}

// armLocked replaces any pending firing with one a full interval from
// now. It does nothing unless the scheduler is running. Callers hold mu.
func (e *Engine) armLocked() {
	if !e.started || e.stopped {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	d := time.Duration(e.interval) * e.unit
	e.nextFire = e.now().Add(d)
	e.timer = time.AfterFunc(d, func() { e.fire(gen) })
}

// fire is the timer callback. A stale generation means the timer was
// replaced or stopped after it had already fired.
func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	if e.stopped || gen != e.gen {
		e.mu.Unlock()
		return
	}
	ctx := e.runCtx
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("scheduled pass panicked")
		}
		e.mu.Lock()
		if gen == e.gen {
			e.armLocked()
		}
		e.mu.Unlock()
	}()

	if _, err := e.Poll(ctx); errors.Is(err, ErrPassInFlight) {
		e.log.Debug().Msg("scheduled pass dropped, another pass is running")
	}
}
