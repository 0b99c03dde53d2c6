package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/notify"
)

// refreshEvery redraws relative poll times in the header.
const refreshEvery = 15 * time.Second

// engineStartedMsg is sent once the scheduler is armed.
type engineStartedMsg struct {
	prefs model.Settings
	err   error
}

// pollDoneMsg is sent when a manual poll returns.
type pollDoneMsg struct {
	n   int
	err error
}

// actionDoneMsg reports the outcome of a user action.
type actionDoneMsg struct {
	status string
	err    error
}

// prefsLoadedMsg carries settings for the preferences form.
type prefsLoadedMsg struct {
	prefs model.Settings
	err   error
}

// alertMsg carries an alert from the in-process feed.
type alertMsg struct {
	alert notify.Alert
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForAlert(ch <-chan notify.Alert) tea.Cmd {
	return func() tea.Msg {
		a, ok := <-ch
		if !ok {
			return nil
		}
		return alertMsg{alert: a}
	}
}

// startEngine loads preferences and arms the scheduler.
func (m Model) startEngine() tea.Cmd {
	e, s := m.engine, m.store
	return func() tea.Msg {
		ctx := context.Background()
		prefs, err := s.LoadSettings(ctx)
		if err != nil {
			prefs = model.DefaultSettings()
		}
		if startErr := e.Start(ctx); startErr != nil {
			err = startErr
		}
		return engineStartedMsg{prefs: prefs, err: err}
	}
}

// runPoll triggers an immediate pass. Its outcome also arrives as a
// PassCompleted event.
func (m Model) runPoll() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		n, err := e.PollNow(context.Background())
		return pollDoneMsg{n: n, err: err}
	}
}

func (m Model) markRead(id string) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		err := e.MarkAsRead(context.Background(), id)
		return actionDoneMsg{err: err}
	}
}

func (m Model) markAllRead() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		if err := e.MarkAllAsRead(context.Background()); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "All notifications marked as read"}
	}
}

func (m Model) setInterval(minutes int) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		if _, err := e.SetInterval(context.Background(), minutes); err != nil {
			return actionDoneMsg{err: err}
		}
		return nil
	}
}

func (m Model) loadPrefs() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		prefs, err := s.LoadSettings(context.Background())
		return prefsLoadedMsg{prefs: prefs, err: err}
	}
}

func (m Model) savePreferences(prefs model.Settings) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		if err := e.SavePreferences(context.Background(), prefs); err != nil {
			return actionDoneMsg{err: fmt.Errorf("saving preferences: %w", err)}
		}
		return actionDoneMsg{status: "Preferences saved"}
	}
}

func (m Model) signOut() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		if err := e.SignOut(context.Background()); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "Signed out"}
	}
}
