package inbox

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/theme"
)

// Model is the notification list view, filtered to one category.
type Model struct {
	list     list.Model
	records  []model.NotificationRecord
	category model.Category
	icon     *model.IconStyle
	width    int
	height   int
}

// New creates a new inbox model showing every category.
func New(width, height int) Model {
	icon := model.IconStyleDefault
	delegate := ItemDelegate{icon: &icon}

	l := list.New([]list.Item{}, delegate, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Model{
		list:     l,
		category: model.CategoryAll,
		icon:     &icon,
		width:    width,
		height:   height,
	}
}

// Update delegates navigation keys to the list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SetRecords replaces the full record set and refilters it. The cursor
// stays on the previously selected thread when it is still listed.
func (m *Model) SetRecords(records []model.NotificationRecord) tea.Cmd {
	m.records = records
	return m.refresh()
}

// Category returns the active category.
func (m Model) Category() model.Category {
	return m.category
}

// SetCategory switches the active category and resets the cursor.
func (m *Model) SetCategory(c model.Category) tea.Cmd {
	m.category = c
	cmd := m.refresh()
	m.list.Select(0)
	return cmd
}

// NextCategory cycles forward through the category tabs.
func (m *Model) NextCategory() tea.Cmd {
	return m.SetCategory(stepCategory(m.category, 1))
}

// PrevCategory cycles backward through the category tabs.
func (m *Model) PrevCategory() tea.Cmd {
	return m.SetCategory(stepCategory(m.category, -1))
}

// Counts returns the unread count per category.
func (m Model) Counts() map[model.Category]int {
	counts := make(map[model.Category]int, len(model.Categories))
	for _, r := range m.records {
		if !r.Unread {
			continue
		}
		counts[model.CategoryAll]++
		if c := r.Category(); c != model.CategoryAll {
			counts[c]++
		}
	}
	return counts
}

// Selected returns the record under the cursor.
func (m Model) Selected() (model.NotificationRecord, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.NotificationRecord{}, false
	}
	return it.Record, true
}

// Visible returns the records shown for the active category.
func (m Model) Visible() []model.NotificationRecord {
	items := m.list.Items()
	out := make([]model.NotificationRecord, 0, len(items))
	for _, it := range items {
		if i, ok := it.(Item); ok {
			out = append(out, i.Record)
		}
	}
	return out
}

// SetIconStyle changes the unread marker.
func (m *Model) SetIconStyle(s model.IconStyle) {
	*m.icon = s
}

// View renders the list or an empty-state message.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.category != model.CategoryAll && len(m.records) > 0 {
		return style.Render("Nothing in " + m.category.Title() + ".\nPress tab to switch category.")
	}
	return style.Render("You're all caught up.\n\nPress r to check now.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}

func (m *Model) refresh() tea.Cmd {
	var selectedID string
	if r, ok := m.Selected(); ok {
		selectedID = r.ID
	}

	filtered := model.FilterByCategory(m.records, m.category)
	items := make([]list.Item, len(filtered))
	cursor := -1
	for i, r := range filtered {
		items[i] = Item{Record: r}
		if r.ID == selectedID {
			cursor = i
		}
	}

	cmd := m.list.SetItems(items)
	switch {
	case cursor >= 0:
		m.list.Select(cursor)
	case m.list.Index() >= len(items) && len(items) > 0:
		m.list.Select(len(items) - 1)
	}
	return cmd
}

func stepCategory(c model.Category, delta int) model.Category {
	n := len(model.Categories)
	for i, cat := range model.Categories {
		if cat == c {
			return model.Categories[((i+delta)%n+n)%n]
		}
	}
	return model.CategoryAll
}
