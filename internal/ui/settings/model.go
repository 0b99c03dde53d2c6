package settings

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/theme"
)

// SavedMsg carries the edited settings back to the parent.
type SavedMsg struct {
	Settings model.Settings
}

// CancelMsg signals the parent to discard the edit.
type CancelMsg struct{}

// intervalChoices are offered in the interval select, in minutes.
var intervalChoices = []int{5, 10, 15, 30, 45, 60}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	interval      int
	showBadge     bool
	notifications bool
	launchAtLogin bool
	iconStyle     model.IconStyle
}

// Model is the Bubble Tea model for the preferences form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	base   model.Settings
	width  int
	height int
}

// New creates a new settings form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// StartEdit initializes the form from the current settings.
func (m *Model) StartEdit(s model.Settings) tea.Cmd {
	m.base = s
	m.fb.interval = model.ClampPollInterval(s.PollIntervalMinutes)
	m.fb.showBadge = s.ShowBadge
	m.fb.notifications = s.NotificationsEnabled
	m.fb.launchAtLogin = s.LaunchAtLogin
	m.fb.iconStyle = s.IconStyle
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the settings form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		saved := m.Result()
		return m, func() tea.Msg { return SavedMsg{Settings: saved} }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// Result merges the form values into the settings passed to StartEdit.
// Poll bookkeeping fields are carried over untouched.
func (m Model) Result() model.Settings {
	s := m.base
	s.PollIntervalMinutes = model.ClampPollInterval(m.fb.interval)
	s.ShowBadge = m.fb.showBadge
	s.NotificationsEnabled = m.fb.notifications
	s.LaunchAtLogin = m.fb.launchAtLogin
	s.IconStyle = m.fb.iconStyle
	return s
}

// View renders the settings form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Preferences") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Check for notifications").
				Options(intervalOptions(m.fb.interval)...).
				Value(&m.fb.interval),
			huh.NewConfirm().
				Title("Show unread count").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.showBadge),
			huh.NewConfirm().
				Title("Desktop alerts").
				Description("Alert when new notifications arrive").
				Affirmative("On").
				Negative("Off").
				Value(&m.fb.notifications),
			huh.NewConfirm().
				Title("Launch at login").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.launchAtLogin),
			huh.NewSelect[model.IconStyle]().
				Title("Icon style").
				Options(
					huh.NewOption("Default", model.IconStyleDefault),
					huh.NewOption("Monochrome", model.IconStyleMonochrome),
					huh.NewOption("Filled", model.IconStyleFilled),
				).
				Value(&m.fb.iconStyle),
		),
	).WithWidth(m.formWidth())
}

// intervalOptions lists the preset intervals, plus current when it is
// not one of them.
func intervalOptions(current int) []huh.Option[int] {
	opts := make([]huh.Option[int], 0, len(intervalChoices)+1)
	found := false
	for _, n := range intervalChoices {
		if n == current {
			found = true
		}
		opts = append(opts, huh.NewOption(intervalLabel(n), n))
	}
	if !found {
		opts = append(opts, huh.NewOption(intervalLabel(current), current))
	}
	return opts
}

func intervalLabel(n int) string {
	if n == 60 {
		return "Every hour"
	}
	return fmt.Sprintf("Every %d minutes", n)
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
