package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/gmail-notifier/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the height available for the main content area,
// accounting for the header, status bar and an optional banner line.
func (l Layout) ContentHeight(banner bool) int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if banner {
		h--
	}
	return max(h, 1)
}

// RenderHeader renders the top bar: title, account and unread badge on the
// left, sync status on the right.
func (l Layout) RenderHeader(title, account, badge, syncStatus string) string {
	left := theme.HeaderStyle.Render(title)
	if account != "" {
		left += theme.HeaderStyle.Render("· " + account)
	}
	if badge != "" {
		left += " " + theme.BadgeStyle.Render(badge)
	}

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		l.filler(theme.HeaderStyle, lipgloss.Width(left)+lipgloss.Width(statusRendered)),
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		l.filler(theme.StatusBarStyle, lipgloss.Width(rendered)),
	)
}

// RenderBanner renders a one-line notification banner across the width.
func (l Layout) RenderBanner(text string) string {
	return theme.BannerStyle.Width(l.Width).Render(text)
}

// RenderError renders a one-line error banner across the width.
func (l Layout) RenderError(text string) string {
	return theme.ErrorStyle.Width(l.Width).Render(text)
}

func (l Layout) filler(style lipgloss.Style, used int) string {
	gap := max(l.Width-used, 0)
	return style.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(style.GetBackground()).
			Render(""),
	)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, an optional banner, the content area and the status bar.
func (l Layout) RenderWithFrame(header, banner, content, statusBar string) string {
	parts := []string{header}
	if banner != "" {
		parts = append(parts, banner)
	}
	parts = append(parts, content, statusBar)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
