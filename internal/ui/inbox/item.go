package inbox

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/octobar/internal/model"
	"github.com/nhle/octobar/internal/theme"
)

// Item wraps a model.NotificationRecord so it can be used in a bubbles/list.
type Item struct {
	Record model.NotificationRecord
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Record.SubjectTitle }

// Title returns the subject title for the list.
func (i Item) Title() string { return i.Record.SubjectTitle }

// Description returns the repository and reason.
func (i Item) Description() string {
	return i.Record.ContainerName + " | " + i.Record.Reason.Label()
}

// ItemDelegate implements list.ItemDelegate for notification rows.
type ItemDelegate struct {
	// icon is shared by reference with the inbox Model so style changes
	// apply without rebuilding the list.
	icon *model.IconStyle
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	r := it.Record

	style := model.IconStyleDefault
	if d.icon != nil {
		style = *d.icon
	}

	marker := " "
	if r.Unread {
		marker = lipgloss.NewStyle().
			Foreground(theme.ColorBlue).
			Render(theme.UnreadGlyph(style))
	}

	repo := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(r.ContainerName)

	reason := theme.CategoryStyle(r.Category()).Render(r.Reason.Label())

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(r.UpdatedAt))

	line := fmt.Sprintf("%s %s %s  %s  %s",
		marker, subjectIcon(r.SubjectType), r.SubjectTitle, repo, reason)
	line += "  " + timeStr

	switch {
	case index == m.Index():
		line = theme.SelectedItemStyle.Render(line)
	case !r.Unread:
		line = theme.ReadItemStyle.Render(line)
	default:
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// subjectIcon returns a two-letter marker for the subject type.
func subjectIcon(t model.SubjectType) string {
	switch t {
	case model.SubjectPullRequest:
		return "PR"
	case model.SubjectIssue:
		return "IS"
	case model.SubjectCommit:
		return "CM"
	case model.SubjectRelease:
		return "RL"
	case model.SubjectDiscussion:
		return "DS"
	case model.SubjectSecurityAlert:
		return "SA"
	case model.SubjectCheckSuite:
		return "CI"
	default:
		return "--"
	}
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
