package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Logo is the dashboard banner.
const Logo = `
 ┌─┐┌─┐┌─┐┌┬┐┌─┐┌─┐┬─┐┌─┐┌─┐┌─┐┬─┐
 ├─┘│ │└─┐ │ └─┐│  ├┬┘├─┤├─┘├┤ ├┬┘
 ┴  └─┘└─┘ ┴ └─┘└─┘┴└─┴ ┴┴  └─┘┴└─
    FEED EXTRACTION DASHBOARD`

// palette holds the dashboard colors.
type palette struct {
	accent, frame, good, caution, alert lipgloss.Color
	text, faint, ground, card           lipgloss.Color
}

var colors = palette{
	accent:  lipgloss.Color("#5FD7FF"),
	frame:   lipgloss.Color("#AF87FF"),
	good:    lipgloss.Color("#87D75F"),
	caution: lipgloss.Color("#FFAF5F"),
	alert:   lipgloss.Color("#FF5F5F"),
	text:    lipgloss.Color("#C6C6C6"),
	faint:   lipgloss.Color("#6C6C6C"),
	ground:  lipgloss.Color("#121212"),
	card:    lipgloss.Color("#1C1C1C"),
}

// theme is the set of styles the view draws with.
type theme struct {
	screen, banner, panel, title lipgloss.Style
	label, value, muted, hint    lipgloss.Style
	ok, warn, bad                lipgloss.Style
	pending, active, done, part  lipgloss.Style
	logTime, logText             lipgloss.Style
}

func newTheme(p palette) theme {
	plain := lipgloss.NewStyle()
	return theme{
		screen: plain.Background(p.ground).Foreground(p.text),
		banner: plain.Foreground(p.accent).Bold(true).Padding(1, 0).Align(lipgloss.Center),
		panel:  plain.Border(lipgloss.RoundedBorder()).BorderForeground(p.frame).Background(p.card).Padding(1, 2),
		title:  plain.Background(p.frame).Foreground(p.ground).Bold(true).Padding(0, 1),

		label: plain.Foreground(p.accent).Bold(true),
		value: plain.Foreground(p.text).Bold(true),
		muted: plain.Foreground(p.faint),
		hint:  plain.Foreground(p.faint).Padding(1, 0, 0, 2),

		ok:   plain.Foreground(p.good).Bold(true),
		warn: plain.Foreground(p.caution).Bold(true),
		bad:  plain.Foreground(p.alert).Bold(true),

		pending: plain.PaddingLeft(2),
		active:  plain.Foreground(p.good).Bold(true),
		done:    plain.Foreground(p.faint).PaddingLeft(2),
		part:    plain.Foreground(p.caution).PaddingLeft(2),

		logTime: plain.Foreground(p.faint),
		logText: plain.Foreground(p.text),
	}
}

var styles = newTheme(colors)

// levelColor picks the log panel color for a level label.
func levelColor(level string) lipgloss.Color {
	switch level {
	case "ERROR":
		return colors.alert
	case "WARN":
		return colors.caution
	case "SUCCESS":
		return colors.good
	case "INFO":
		return colors.accent
	default:
		return colors.text
	}
}
