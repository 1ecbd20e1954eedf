package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	errs "postscraper/pkg/errors"
)

// View renders the entire TUI
func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderLogo())

	leftColumn := m.renderLeftColumn()
	rightColumn := m.renderRightColumn()

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftColumn,
		"  ",
		rightColumn,
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, styles.hint.Render("Press ? for help, q to stop the run"))
	}

	return styles.screen.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	return styles.banner.Width(m.width).Render(Logo)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderWorkersPanel(width),
		m.renderQueuePanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderFailuresPanel(width),
		m.renderLogsPanel(width),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := styles.title.Render(" RUN STATS ")
	s := m.stats()

	ratio := 0.0
	if s.Planned > 0 {
		ratio = float64(s.Finished) / float64(s.Planned)
	}
	bar := m.bar
	bar.Width = max(width-8, 10)

	eta := "calculating..."
	if s.ETA > 0 {
		eta = formatDuration(s.ETA)
	}
	if m.finished {
		eta = styles.ok.Render("done")
	}

	stats := []string{
		fmt.Sprintf("%s %s", styles.label.Render("Elapsed:"), styles.value.Render(formatDuration(time.Since(m.sessionStartTime)))),
		fmt.Sprintf("%s %s", styles.label.Render("Targets:"), styles.value.Render(fmt.Sprintf("%d/%d", s.Finished, s.Planned))),
		fmt.Sprintf("%s %s", styles.label.Render("Partial:"), styles.value.Render(fmt.Sprintf("%d", s.Partial))),
		fmt.Sprintf("%s %s", styles.label.Render("Units seen:"), styles.value.Render(fmt.Sprintf("%d", s.Units))),
		fmt.Sprintf("%s %s", styles.label.Render("Records:"), styles.value.Render(fmt.Sprintf("%d", s.Records))),
		fmt.Sprintf("%s %s", styles.label.Render("ETA:"), styles.value.Render(eta)),
		bar.ViewAs(ratio),
	}

	return styles.panel.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderWorkersPanel(width int) string {
	title := styles.title.Render(" WORKERS ")

	active := m.targetsIn(TargetActive)
	if len(active) == 0 {
		content := styles.muted.Render("No active targets")
		return styles.panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var rows []string
	for _, item := range active {
		rows = append(rows, fmt.Sprintf("%s %s %s %s",
			m.spinner.View(),
			styles.label.Render(fmt.Sprintf("#%d", item.WorkerID)),
			styles.active.Render(truncate(item.Label(), width-30)),
			styles.muted.Render(formatDuration(time.Since(item.StartTime))),
		))
	}
	return styles.panel.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

func (m *Model) renderQueuePanel(width int) string {
	title := styles.title.Render(" TARGET QUEUE ")

	pending := m.targetsIn(TargetPending)
	finished := m.targetsIn(TargetDone, TargetPartial)

	var items []string
	if n := len(pending); n > 0 {
		items = append(items, styles.warn.Render(fmt.Sprintf("⏳ %d pending", n)))
		for i := 0; i < 3 && i < n; i++ {
			items = append(items, styles.pending.Render("• "+truncate(pending[i].Label(), width-10)))
		}
		if n > 3 {
			items = append(items, styles.muted.Render(fmt.Sprintf("  ... and %d more", n-3)))
		}
	}

	if n := len(finished); n > 0 {
		items = append(items, "", styles.ok.Render(fmt.Sprintf("✓ %d finished", n)))
		for _, item := range finished[max(n-3, 0):] {
			mark := "✓ "
			style := styles.done
			if item.State == TargetPartial {
				mark = "◐ "
				style = styles.part
			}
			items = append(items, style.Render(mark+truncate(item.Label(), width-20)+fmt.Sprintf(" (%d)", item.Records)))
		}
	}

	return styles.panel.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

func (m *Model) renderFailuresPanel(width int) string {
	title := styles.title.Render(" FAILURES ")

	if len(m.failures) == 0 {
		content := styles.ok.Render("None")
		return styles.panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	kinds := make([]string, 0, len(m.failures))
	for k := range m.failures {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	var rows []string
	for _, k := range kinds {
		style := styles.warn
		if errs.IsSessionLevel(errs.New(errs.Kind(k), "")) {
			style = styles.bad
		}
		rows = append(rows, fmt.Sprintf("%s %s", styles.label.Render(k+":"), style.Render(fmt.Sprintf("%d", m.failures[errs.Kind(k)]))))
	}
	return styles.panel.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := styles.title.Render(" LOG ")

	start := max(len(m.logMessages)-10, 0)

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := styles.logTime.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		message := styles.logText.Render(truncate(log.Message, width-25))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, message))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = styles.muted.Render("No logs yet...")
	}

	logsHeight := max(m.height-30, 5)
	return styles.panel.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	var b strings.Builder
	b.WriteString("Keys:\n")
	for _, k := range keys.bindings() {
		h := k.Help()
		fmt.Fprintf(&b, "  %-8s %s\n", h.Key, h.Desc)
	}
	b.WriteString("\nTargets:\n  ⏳ pending   ✓ finished   ◐ partial (see failures)")
	return styles.panel.Width(m.width).Render(b.String())
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if n < 4 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
