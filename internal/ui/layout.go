package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/theme"
)

// Layout manages the inbox frame: header, category tabs, content and
// status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	TabsHeight      int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		TabsHeight:      1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the main content area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.TabsHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top bar with a left title and right status.
func (l Layout) RenderHeader(title, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		fill(theme.HeaderStyle, l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered)),
		statusRendered,
	)
}

// RenderTabs renders the category tabs with active highlighted. counts
// holds the unread count per category; zero counts are omitted.
func (l Layout) RenderTabs(active model.Category, counts map[model.Category]int) string {
	tabs := make([]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		label := c.Title()
		if n := counts[c]; n > 0 {
			label += " " + itoa(n)
		}
		if c == active {
			tabs = append(tabs, theme.ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, theme.TabStyle.Render(label))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if w := lipgloss.Width(row); w < l.Width {
		row += strings.Repeat(" ", l.Width-w)
	}
	return row
}

// RenderStatusBar renders the bottom bar. A non-empty errText takes the
// bar over in the error style.
func (l Layout) RenderStatusBar(hints, errText string) string {
	style := theme.StatusBarStyle
	text := hints
	if errText != "" {
		style = theme.ErrorBarStyle
		text = errText
	}
	rendered := style.Render(text)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, fill(style, l.Width-lipgloss.Width(rendered)))
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, tabs, content area, and status bar.
func (l Layout) RenderWithFrame(header, tabs, content, statusBar string) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		tabs,
		lipgloss.NewStyle().Height(l.ContentHeight()).Render(content),
		statusBar,
	)
}

// fill renders width blank cells in style's background.
func fill(style lipgloss.Style, width int) string {
	if width < 0 {
		width = 0
	}
	return lipgloss.NewStyle().
		Width(width).
		Background(style.GetBackground()).
		Render("")
}

func itoa(n int) string {
	if n > 99 {
		return "99+"
	}
	var b [3]byte
	i := len(b)
	for {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(b[i:])
}
