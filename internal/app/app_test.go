package app

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/octobar/internal/credential"
	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/source"
	"github.com/nhle/octobar/internal/store"
	appsync "github.com/nhle/octobar/internal/sync"
	"github.com/nhle/octobar/tests/testutil"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	remote *testutil.FakeRemote
	store  store.Store
	creds  *credential.MemoryStore
	engine *appsync.Engine
	model  Model
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	f := &fixture{
		remote: &testutil.FakeRemote{Login: "octocat"},
		store:  testutil.NewTestStore(t),
		creds:  credential.NewMemoryStore(token),
	}
	f.remote.Results = []*source.FetchResult{{Notifications: []model.NotificationRecord{
		testutil.Record("1", model.ReasonMention, base),
		testutil.Record("2", model.ReasonComment, base.Add(time.Minute)),
	}}}
	f.engine = appsync.New(appsync.Deps{
		Remote:      f.remote,
		Store:       f.store,
		Credentials: f.creds,
		Sink:        &testutil.RecordingSink{},
		Log:         zerolog.Nop(),
	})
	t.Cleanup(f.engine.Stop)
	f.model = New(f.engine, f.store)
	return f
}

// send applies msg and returns the updated root model.
func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

// start runs the engine start command and feeds its result back.
func (f *fixture) start(t *testing.T) tea.Cmd {
	t.Helper()
	m, cmd := send(t, f.model, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, cmd = send(t, m, m.startEngine()())
	f.model = m
	return cmd
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStartWithoutCredentialOpensLogin(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.creds.Delete())

	f.start(t)
	assert.Equal(t, ViewLogin, f.model.currentView)
	assert.Contains(t, f.model.View(), "Sign in to GitHub")
}

func TestStartWithCredentialPolls(t *testing.T) {
	f := newFixture(t, "ghp_test")
	f.start(t)
	assert.Equal(t, ViewInbox, f.model.currentView)
	assert.True(t, f.model.polling)

	m, _ := send(t, f.model, f.model.runPoll()())
	assert.False(t, m.polling)
	assert.Len(t, f.remote.Fetches(), 1)

	m, _ = send(t, m, appsync.EventMsg{Event: appsync.Event{Type: appsync.PassCompleted, NewCount: 2}})
	assert.Equal(t, 2, m.unread)
	assert.Len(t, m.inbox.Visible(), 2)
	assert.Contains(t, m.keyHints(), "2 new notifications")
	assert.Contains(t, m.View(), "Octobar")
}

func TestMarkReadKey(t *testing.T) {
	f := newFixture(t, "ghp_test")
	f.start(t)
	_, err := f.engine.Poll(context.Background())
	require.NoError(t, err)
	m, _ := send(t, f.model, appsync.EventMsg{Event: appsync.Event{Type: appsync.PassCompleted}})

	selected, ok := m.inbox.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", selected.ID)

	m, cmd := send(t, m, keyPress("m"))
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())
	assert.Equal(t, []string{"2"}, f.remote.Marked())

	m, _ = send(t, m, appsync.EventMsg{Event: appsync.Event{Type: appsync.ReadStateChanged}})
	assert.Equal(t, 1, m.unread)

	// Read threads are skipped.
	_, cmd = send(t, m, keyPress("m"))
	assert.Nil(t, cmd)
}

func TestCategoryTabs(t *testing.T) {
	f := newFixture(t, "ghp_test")
	f.start(t)
	_, err := f.engine.Poll(context.Background())
	require.NoError(t, err)
	m, _ := send(t, f.model, appsync.EventMsg{Event: appsync.Event{Type: appsync.PassCompleted}})

	m, _ = send(t, m, keyPress("tab"))
	assert.Equal(t, model.CategoryMentioned, m.inbox.Category())
	require.Len(t, m.inbox.Visible(), 1)
	assert.Equal(t, "1", m.inbox.Visible()[0].ID)
}

func TestIntervalKeys(t *testing.T) {
	f := newFixture(t, "ghp_test")
	f.start(t)

	m, cmd := send(t, f.model, keyPress("+"))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, 10*time.Minute, f.engine.Interval())

	_, cmd = send(t, m, keyPress("-"))
	cmd()
	assert.Equal(t, 5*time.Minute, f.engine.Interval())
}

func TestErrorsShowInStatusBar(t *testing.T) {
	f := newFixture(t, "ghp_test")
	f.start(t)

	m, _ := send(t, f.model, appsync.EventMsg{Event: appsync.Event{
		Type: appsync.PassCompleted,
		Err:  &source.NetworkError{Op: "GET /notifications", Err: errors.New("dial tcp: timeout")},
	}})
	assert.Contains(t, m.errorText(), "unreachable")

	m, _ = send(t, m, keyPress("esc"))
	assert.Empty(t, m.errorText())
}

func TestSignOutReturnsToLogin(t *testing.T) {
	f := newFixture(t, "ghp_test")
	f.start(t)

	m, cmd := send(t, f.model, keyPress("L"))
	require.NotNil(t, cmd)
	m, _ = send(t, m, cmd())
	assert.False(t, f.engine.Authenticated())

	m, _ = send(t, m, appsync.EventMsg{Event: appsync.Event{Type: appsync.SignedOut}})
	assert.Equal(t, ViewLogin, m.currentView)
	assert.Empty(t, m.inbox.Visible())
}

func TestHelpToggle(t *testing.T) {
	f := newFixture(t, "ghp_test")
	f.start(t)

	m, _ := send(t, f.model, keyPress("?"))
	assert.Equal(t, ViewHelp, m.currentView)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m, _ = send(t, m, keyPress("?"))
	assert.Equal(t, ViewInbox, m.currentView)
}

func TestTitleBadge(t *testing.T) {
	f := newFixture(t, "ghp_test")
	m := f.model
	m.unread = 3
	assert.Contains(t, m.title(), "3")

	m.prefs.ShowBadge = false
	assert.Equal(t, "Octobar", m.title())

	m.prefs.ShowBadge = true
	m.unread = 120
	assert.Contains(t, m.title(), "99+")
}

func TestDescribeError(t *testing.T) {
	assert.Empty(t, describeError(nil))
	assert.Contains(t, describeError(appsync.ErrNoCredential), "Not signed in")
	assert.Contains(t, describeError(&source.AuthError{Message: "Bad credentials"}), "rejected")
	assert.Contains(t, describeError(source.ErrRateLimited), "rate limit")
	assert.Contains(t, describeError(&store.StoreError{Op: "upsert", Err: errors.New("disk full")}), "disk full")
}

func TestShortDuration(t *testing.T) {
	assert.Equal(t, "0s", shortDuration(-time.Second))
	assert.Equal(t, "42s", shortDuration(42*time.Second))
	assert.Equal(t, "5m", shortDuration(5*time.Minute+10*time.Second))
	assert.Equal(t, "2h", shortDuration(2*time.Hour))
}
