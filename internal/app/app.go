package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/octobar/internal/keys"
	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/notify"
	"github.com/nhle/octobar/internal/store"
	appsync "github.com/nhle/octobar/internal/sync"
	"github.com/nhle/octobar/internal/theme"
	"github.com/nhle/octobar/internal/ui"
	helpview "github.com/nhle/octobar/internal/ui/help"
	"github.com/nhle/octobar/internal/ui/inbox"
	"github.com/nhle/octobar/internal/ui/login"
	settingsview "github.com/nhle/octobar/internal/ui/settings"
)

// intervalStep is how far the +/- keys move the poll interval, in minutes.
const intervalStep = 5

// statusTTL is how long a transient status message stays visible.
const statusTTL = 5 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewHelp
	ViewLogin
	ViewSettings
)

// Model is the root Bubble Tea model that routes between views and
// drives the reconciliation engine.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	engine       *appsync.Engine
	store        store.Store
	keys         *keys.KeyMap
	inbox        inbox.Model
	helpView     helpview.Model
	loginView    login.Model
	settingsView settingsview.Model

	events       <-chan appsync.Event
	cancelEvents func()
	alerts       <-chan notify.Alert

	prefs       model.Settings
	unread      int
	polling     bool
	lastErr     error
	status      string
	statusUntil time.Time
	ready       bool
	now         func() time.Time
}

// Option configures a Model.
type Option func(*Model)

// WithAlertFeed shows alerts from feed in the status bar.
func WithAlertFeed(feed *notify.FeedSink) Option {
	return func(m *Model) {
		m.alerts = feed.Alerts()
	}
}

// New creates the root model. The engine must not be started yet; Init
// starts it and Quit stops it.
func New(engine *appsync.Engine, s store.Store, opts ...Option) Model {
	k := keys.DefaultKeyMap()
	events, cancel := engine.Subscribe(16)

	m := Model{
		currentView:  ViewInbox,
		engine:       engine,
		store:        s,
		keys:         k,
		inbox:        inbox.New(80, 24),
		helpView:     helpview.New(k, 80, 24),
		loginView:    login.New(engine.SignIn, 80, 24),
		settingsView: settingsview.New(80, 24),
		events:       events,
		cancelEvents: cancel,
		prefs:        model.DefaultSettings(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the engine and begins listening for its events.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.startEngine(),
		appsync.WaitForEvent(m.events),
		tick(),
	}
	if m.alerts != nil {
		cmds = append(cmds, waitForAlert(m.alerts))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.inbox.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.loginView.SetSize(contentWidth, contentHeight)
		m.settingsView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case engineStartedMsg:
		m.prefs = msg.prefs
		m.inbox.SetIconStyle(m.prefs.IconStyle)
		cmd := m.syncInbox()
		if msg.err != nil {
			m.lastErr = msg.err
		}
		if !m.engine.Authenticated() {
			return m, tea.Batch(cmd, m.openLogin())
		}
		return m, tea.Batch(cmd, m.pollNow())

	case appsync.EventMsg:
		return m.handleEvent(msg.Event)

	case pollDoneMsg:
		m.polling = false
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		if msg.status != "" {
			m.setStatus(msg.status)
		}
		return m, nil

	case alertMsg:
		m.setStatus(fmt.Sprintf("New: %s (%s)", msg.alert.Body, msg.alert.Title))
		return m, waitForAlert(m.alerts)

	case tickMsg:
		return m, tick()

	case prefsLoadedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.prefs = msg.prefs
		m.previousView = m.currentView
		m.currentView = ViewSettings
		return m, m.settingsView.StartEdit(msg.prefs)

	case settingsview.SavedMsg:
		m.currentView = ViewInbox
		m.prefs = msg.Settings
		m.inbox.SetIconStyle(msg.Settings.IconStyle)
		return m, m.savePreferences(msg.Settings)

	case settingsview.CancelMsg:
		m.currentView = ViewInbox
		return m, nil

	case login.SignedInMsg:
		m.currentView = ViewInbox
		m.lastErr = nil
		m.setStatus("Signed in as " + msg.Login)
		return m, m.pollNow()

	case login.CancelMsg:
		if !m.engine.Authenticated() {
			return m, m.quit()
		}
		m.currentView = ViewInbox
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.currentView == ViewInbox {
			return m.handleInboxKeys(msg)
		}
		if m.currentView == ViewHelp && (key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back)) {
			m.currentView = m.previousView
			return m, nil
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleInboxKeys processes key input on the notification list.
func (m Model) handleInboxKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.polling {
			return m, nil
		}
		return m, m.pollNow()

	case key.Matches(msg, m.keys.NextCategory):
		return m, m.inbox.NextCategory()

	case key.Matches(msg, m.keys.PrevCategory):
		return m, m.inbox.PrevCategory()

	case key.Matches(msg, m.keys.MarkRead):
		r, ok := m.inbox.Selected()
		if !ok || !r.Unread {
			return m, nil
		}
		return m, m.markRead(r.ID)

	case key.Matches(msg, m.keys.MarkAllRead):
		if m.unread == 0 {
			return m, nil
		}
		return m, m.markAllRead()

	case key.Matches(msg, m.keys.IntervalUp):
		return m, m.setInterval(m.intervalMinutes() + intervalStep)

	case key.Matches(msg, m.keys.IntervalDown):
		return m, m.setInterval(m.intervalMinutes() - intervalStep)

	case key.Matches(msg, m.keys.Settings):
		return m, m.loadPrefs()

	case key.Matches(msg, m.keys.SignOut):
		return m, m.signOut()

	case key.Matches(msg, m.keys.Back):
		m.lastErr = nil
		return m, nil
	}

	return m.updateActiveView(msg)
}

// handleEvent folds an engine event into the view and keeps listening.
func (m Model) handleEvent(ev appsync.Event) (tea.Model, tea.Cmd) {
	wait := appsync.WaitForEvent(m.events)

	switch ev.Type {
	case appsync.PassCompleted:
		m.polling = false
		m.lastErr = ev.Err
		if ev.Err == nil && ev.NewCount > 0 {
			m.setStatus(fmt.Sprintf("%d new notification%s", ev.NewCount, plural(ev.NewCount)))
		}
	case appsync.SignedOut:
		cmd := m.syncInbox()
		return m, tea.Batch(wait, cmd, m.openLogin())
	case appsync.IntervalChanged:
		minutes := int(ev.Interval / time.Minute)
		if ev.ServerSuggested {
			m.setStatus(fmt.Sprintf("GitHub asked to slow down: polling every %d min", minutes))
		} else {
			m.setStatus(fmt.Sprintf("Polling every %d min", minutes))
		}
	}

	return m, tea.Batch(wait, m.syncInbox())
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.pollStatus())
	tabs := m.layout.RenderTabs(m.inbox.Category(), m.inbox.Counts())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.errorText())

	return m.layout.RenderWithFrame(header, tabs, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewLogin:
		return m.loginView.View()
	case ViewSettings:
		return m.settingsView.View()
	default:
		return ""
	}
}

// title returns the header title with the unread badge when enabled.
func (m Model) title() string {
	t := "Octobar"
	if m.prefs.ShowBadge && m.unread > 0 {
		t += " " + theme.BadgeStyle(m.prefs.IconStyle).Render(badgeCount(m.unread))
	}
	return t
}

// pollStatus describes the last and next poll for the header.
func (m Model) pollStatus() string {
	st := m.engine.Status()
	if m.polling || st.State != appsync.Idle {
		return "checking..."
	}

	now := m.now()
	var out string
	if !st.LastPassAt.IsZero() {
		out = "updated " + shortDuration(now.Sub(st.LastPassAt)) + " ago"
	}
	if !st.NextPoll.IsZero() {
		if out != "" {
			out += " | "
		}
		out += "next in " + shortDuration(st.NextPoll.Sub(now))
	}
	if out == "" {
		return "idle"
	}
	return out
}

// errorText returns the error shown in the status bar, if any.
func (m Model) errorText() string {
	if m.currentView != ViewInbox || m.lastErr == nil {
		return ""
	}
	return describeError(m.lastErr) + " (esc to dismiss)"
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewLogin:
		return "enter submit | esc cancel"
	case ViewSettings:
		return "enter save | esc cancel"
	}

	if m.status != "" && m.now().Before(m.statusUntil) {
		return m.status
	}
	return "q quit | ? help | r refresh | m read | A read all | tab category | s settings"
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusUntil = m.now().Add(statusTTL)
}

// syncInbox copies the engine projection into the list.
func (m *Model) syncInbox() tea.Cmd {
	m.unread = m.engine.UnreadCount()
	return m.inbox.SetRecords(m.engine.Notifications(model.CategoryAll))
}

func (m *Model) openLogin() tea.Cmd {
	m.previousView = ViewInbox
	m.currentView = ViewLogin
	return m.loginView.Start()
}

func (m *Model) pollNow() tea.Cmd {
	m.polling = true
	return m.runPoll()
}

func (m Model) intervalMinutes() int {
	return int(m.engine.Interval() / time.Minute)
}

func (m Model) quit() tea.Cmd {
	m.engine.Stop()
	m.cancelEvents()
	return tea.Quit
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func badgeCount(n int) string {
	if n > 99 {
		return "99+"
	}
	return fmt.Sprint(n)
}

// shortDuration renders d rounded to the largest whole unit.
func shortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
