package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/octobar/internal/credential"
	"github.com/nhle/octobar/internal/model"
)

// token returns the stored credential or ErrNotAuthenticated.
func (e *Engine) token() (string, error) {
	tok, err := e.creds.Get()
	if errors.Is(err, credential.ErrNotFound) {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("reading credential: %w", err)
	}
	return tok, nil
}

// MarkAsRead marks one thread read locally, then upstream. The local
// change is committed before the remote call; if the remote call fails
// the projection is reloaded from the store and the error returned, and
// the next successful pass reconciles the thread.
func (e *Engine) MarkAsRead(ctx context.Context, id string) error {
	tok, err := e.token()
	if err != nil {
		return err
	}

	e.mu.Lock()
	for i := range e.records {
		if e.records[i].ID == id && e.records[i].Unread {
			e.records[i].Unread = false
			e.unread--
		}
	}
	e.mu.Unlock()

	markedAt := e.now()
	e.writeMu.Lock()
	e.guard.begin(id, markedAt)
	err = e.store.MarkRead(ctx, id)
	if err != nil {
		e.guard.end(id, markedAt, false)
	}
	e.writeMu.Unlock()
	if err != nil {
		e.reloadQuietly(ctx)
		return err
	}
	e.reloadQuietly(ctx)
	e.publish(Event{Type: ReadStateChanged})

	remoteCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	err = e.remote.MarkThreadRead(remoteCtx, tok, id)
	cancel()
	e.writeMu.Lock()
	e.guard.end(id, markedAt, err == nil)
	e.writeMu.Unlock()
	e.metrics.observeMarkRead(err)
	if err != nil {
		e.log.Warn().Err(err).Str("thread_id", id).Msg("remote mark read failed")
		e.reloadQuietly(ctx)
		return fmt.Errorf("marking thread %s read: %w", id, err)
	}

	if e.sink != nil {
		if err := e.sink.RemoveDelivered(ctx, id); err != nil {
			e.log.Debug().Err(err).Str("thread_id", id).Msg("removing delivered alert")
		}
	}
	return nil
}

// MarkAllAsRead marks every thread read locally, then upstream, with the
// same failure handling as MarkAsRead.
func (e *Engine) MarkAllAsRead(ctx context.Context) error {
	tok, err := e.token()
	if err != nil {
		return err
	}

	e.mu.Lock()
	for i := range e.records {
		e.records[i].Unread = false
	}
	e.unread = 0
	e.mu.Unlock()

	now := e.now()
	e.writeMu.Lock()
	e.guard.beginAll(now)
	err = e.store.MarkAllRead(ctx)
	if err != nil {
		e.guard.endAll(now, false)
	}
	e.writeMu.Unlock()
	if err != nil {
		e.reloadQuietly(ctx)
		return err
	}
	e.reloadQuietly(ctx)
	e.publish(Event{Type: ReadStateChanged})

	remoteCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	err = e.remote.MarkAllRead(remoteCtx, tok, &now)
	cancel()
	e.writeMu.Lock()
	e.guard.endAll(now, err == nil)
	e.writeMu.Unlock()
	e.metrics.observeMarkRead(err)
	if err != nil {
		e.log.Warn().Err(err).Msg("remote mark all read failed")
		e.reloadQuietly(ctx)
		return fmt.Errorf("marking all threads read: %w", err)
	}

	if e.sink != nil {
		if err := e.sink.RemoveAllDelivered(ctx); err != nil {
			e.log.Debug().Err(err).Msg("removing delivered alerts")
		}
	}
	return nil
}

// SignIn validates token against the remote and stores it. It returns
// the account login.
func (e *Engine) SignIn(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", credential.ErrEmpty
	}

	vctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	login, err := e.remote.ValidateToken(vctx, token)
	cancel()
	if err != nil {
		return "", fmt.Errorf("validating token: %w", err)
	}

	if err := e.creds.Set(token); err != nil {
		return "", fmt.Errorf("storing credential: %w", err)
	}
	e.log.Info().Str("login", login).Msg("signed in")
	return login, nil
}

// SignOut forgets the credential, all cached threads and settings, and
// any outstanding alerts. A pass in flight discards its result. It keeps
// going past individual failures and reports them together.
func (e *Engine) SignOut(ctx context.Context) error {
	var errs []error

	e.writeMu.Lock()
	e.epoch++
	if err := e.creds.Delete(); err != nil {
		errs = append(errs, fmt.Errorf("deleting credential: %w", err))
	}
	if err := e.store.ClearAll(ctx); err != nil {
		errs = append(errs, err)
	}
	e.mu.Lock()
	e.records = nil
	e.unread = 0
	e.lastErr = nil
	e.mu.Unlock()
	e.writeMu.Unlock()

	if e.sink != nil {
		if err := e.sink.RemoveAllDelivered(ctx); err != nil {
			errs = append(errs, fmt.Errorf("removing alerts: %w", err))
		}
	}

	e.log.Info().Msg("signed out")
	e.publish(Event{Type: SignedOut})
	return errors.Join(errs...)
}

// Authenticated reports whether a credential is stored.
func (e *Engine) Authenticated() bool {
	return credential.HasToken(e.creds)
}

// Notifications returns the projected threads in category, newest first.
func (e *Engine) Notifications(c model.Category) []model.NotificationRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.FilterByCategory(e.records, c)
}

// UnreadCount returns the projected number of unread threads.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

// Refresh reloads the projection from the store.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.reload(ctx)
}

func (e *Engine) reload(ctx context.Context) error {
	records, err := e.store.FetchAll(ctx)
	if err != nil {
		return err
	}
	unread := 0
	for _, n := range records {
		if n.Unread {
			unread++
		}
	}

	e.mu.Lock()
	e.records = records
	e.unread = unread
	e.mu.Unlock()
	return nil
}

func (e *Engine) reloadQuietly(ctx context.Context) {
	if err := e.reload(ctx); err != nil {
		e.log.Warn().Err(err).Msg("refreshing projection")
	}
}
