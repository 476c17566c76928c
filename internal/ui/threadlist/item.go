package threadlist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/gmail-notifier/internal/model"
	"github.com/nhle/gmail-notifier/internal/theme"
)

// ThreadItem wraps a model.EmailThread so it can be used in a bubbles/list.
type ThreadItem struct {
	Thread model.EmailThread
	Viewed bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i ThreadItem) FilterValue() string { return i.Thread.Title }

// Title returns the thread title for the list.
func (i ThreadItem) Title() string { return i.Thread.Title }

// Description returns the sender and summary.
func (i ThreadItem) Description() string {
	return senderLabel(i.Thread.Author) + " | " + i.Thread.Summary
}

// ItemDelegate implements list.ItemDelegate for rendering thread rows.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a thread as a header line (marker, sender, time) and the
// subject with its summary below.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(ThreadItem)
	if !ok {
		return
	}
	now := time.Now
	if d.now != nil {
		now = d.now
	}

	marker := " "
	if !ti.Viewed {
		marker = theme.UnreadMarkerStyle.Render("●")
	}

	count := ""
	if n := ti.Thread.MessageCount; n > 1 {
		count = theme.TimeStyle.Render(fmt.Sprintf(" (%d)", n))
	}

	header := fmt.Sprintf("%s %s%s  %s",
		marker,
		theme.SenderStyle.Render(senderLabel(ti.Thread.Author)),
		count,
		theme.TimeStyle.Render(relativeTime(ti.Thread.ModifiedAt, now())),
	)

	width := m.Width() - 4
	body := "  " + truncate(subjectLine(ti.Thread), width)
	if ti.Viewed {
		body = theme.DimmedStyle.Render(body)
	}

	line := lipgloss.JoinVertical(lipgloss.Left, header, body)
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

func senderLabel(a model.Author) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

func subjectLine(t model.EmailThread) string {
	title := t.Title
	if title == "" {
		title = t.Subject
	}
	if title == "" {
		title = "(no subject)"
	}
	if t.Summary == "" {
		return title
	}
	return title + " - " + t.Summary
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-1 {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimRight(string(runes), " ") + "…"
}

// relativeTime returns a human-friendly relative time for an ISO-8601
// timestamp.
func relativeTime(iso string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return ""
	}

	d := now.Sub(t)
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
		return t.Local().Format("Jan 02")
	}
}
