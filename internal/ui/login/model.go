package login

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/octobar/internal/source"
	"github.com/nhle/octobar/internal/theme"
)

// SignInFunc validates a token against the remote and stores it,
// returning the account login.
type SignInFunc func(ctx context.Context, token string) (string, error)

// SignedInMsg is sent once a token has been validated and stored.
type SignedInMsg struct {
	Login string
}

// CancelMsg signals the parent to close the sign-in view.
type CancelMsg struct{}

// resultMsg carries the outcome of a sign-in attempt.
type resultMsg struct {
	login string
	err   error
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	token string
}

// Model is the Bubble Tea model for the access token prompt.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	signIn     SignInFunc
	validating bool
	err        error
	spinner    spinner.Model
	width      int
	height     int
}

// New creates a sign-in view that submits tokens through signIn.
func New(signIn SignInFunc, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		fb:      &formBindings{},
		signIn:  signIn,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Start resets the form for a fresh attempt.
func (m *Model) Start() tea.Cmd {
	m.fb.token = ""
	m.err = nil
	m.validating = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Validating reports whether a sign-in attempt is in flight.
func (m Model) Validating() bool {
	return m.validating
}

// Err returns the error from the last failed attempt, if any.
func (m Model) Err() error {
	return m.err
}

// Update handles messages for the sign-in view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.validating = false
		if msg.err != nil {
			m.err = msg.err
			m.fb.token = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		login := msg.login
		return m, func() tea.Msg { return SignedInMsg{Login: login} }

	case spinner.TickMsg:
		if !m.validating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.validating {
			// Attempts cannot be cancelled halfway; the keyring write is
			// not undone.
			return m, nil
		}
	}

	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m.submit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	token := strings.TrimSpace(m.fb.token)
	signIn := m.signIn
	m.validating = true
	m.err = nil
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			login, err := signIn(context.Background(), token)
			return resultMsg{login: login, err: err}
		},
	)
}

// View renders the sign-in view.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Sign in to GitHub")}

	switch {
	case m.validating:
		parts = append(parts, m.spinner.View()+" Checking token...")
	case m.form != nil:
		if m.err != nil {
			parts = append(parts, lipgloss.NewStyle().
				Foreground(theme.ColorRed).
				Render(describe(m.err)))
		}
		parts = append(parts, m.form.View())
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Personal Access Token").
				Description("Needs the notifications scope (repo for private repositories)").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.token).
				Validate(validateRequired("Token")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func describe(err error) string {
	switch source.KindOf(err) {
	case source.KindUnauthorized:
		return "The token was rejected. Check that it is valid and not expired."
	case source.KindForbidden:
		return "The token lacks the notifications scope."
	case source.KindNetwork:
		return "Could not reach GitHub. Check your connection."
	default:
		return fmt.Sprintf("Sign-in failed: %v", err)
	}
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
