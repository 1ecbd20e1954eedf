package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	errs "postscraper/pkg/errors"
	"postscraper/pkg/models"
)

func targets(n int) []models.Target {
	var out []models.Target
	for i := 0; i < n; i++ {
		out = append(out, models.Target{
			ID:   string(rune('a' + i)),
			Mode: models.ModeURL,
			URL:  "https://www.linkedin.com/feed/update/urn:li:activity:" + string(rune('1'+i)) + "/",
		})
	}
	return out
}

func TestModel(t *testing.T) {
	model := NewModel(nil)
	ts := targets(3)

	model.Update(PlanMsg{Targets: ts})
	if s := model.Stats(); s.Planned != 3 {
		t.Errorf("Expected 3 planned targets, got %d", s.Planned)
	}

	model.Update(TargetStartMsg{WorkerID: 0, Target: ts[0]})
	model.Update(TargetStartMsg{WorkerID: 1, Target: ts[1]})
	if s := model.Stats(); s.Active != 2 {
		t.Errorf("Expected 2 active targets, got %d", s.Active)
	}

	model.Update(TargetFinishMsg{Result: models.TargetResult{Target: ts[0], WorkerID: 0, Units: 5, Records: 4}})
	model.Update(TargetFinishMsg{Result: models.TargetResult{
		Target: ts[1], WorkerID: 1, Units: 1, Partial: true,
		Kind: errs.KindTerminalBlock, Error: "restricted",
	}})

	s := model.Stats()
	if s.Active != 0 {
		t.Errorf("Expected 0 active targets, got %d", s.Active)
	}
	if s.Finished != 2 || s.Partial != 1 {
		t.Errorf("Expected 2 finished and 1 partial, got %d and %d", s.Finished, s.Partial)
	}
	if s.Units != 6 || s.Records != 4 {
		t.Errorf("Expected 6 units and 4 records, got %d and %d", s.Units, s.Records)
	}
	if model.failures[errs.KindTerminalBlock] != 1 {
		t.Errorf("Expected one terminal block failure")
	}
	if len(model.logMessages) != 5 {
		t.Errorf("Expected 5 log messages, got %d", len(model.logMessages))
	}
}

func TestQuitCallsOnQuit(t *testing.T) {
	called := false
	model := NewModel(func() { called = true })

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !called {
		t.Error("Expected onQuit to be called")
	}
	if cmd == nil {
		t.Error("Expected a quit command")
	}
}

func TestViewRendersPanels(t *testing.T) {
	model := NewModel(nil)
	model.Update(tea.WindowSizeMsg{Width: 160, Height: 60})
	ts := targets(2)
	model.Update(PlanMsg{Targets: ts})
	model.Update(TargetStartMsg{WorkerID: 0, Target: ts[0]})

	view := model.View()
	for _, want := range []string{"RUN STATS", "WORKERS", "TARGET QUEUE", "FAILURES", "LOG"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestLogMessagesAreCapped(t *testing.T) {
	model := NewModel(nil)
	for i := 0; i < 80; i++ {
		model.AddLogMessage("INFO", "message")
	}
	if len(model.logMessages) != model.maxLogMessages {
		t.Errorf("Expected %d log messages, got %d", model.maxLogMessages, len(model.logMessages))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{45 * time.Second, "00:45"},
		{3*time.Minute + 5*time.Second, "03:05"},
		{2*time.Hour + 1*time.Minute, "02:01:00"},
		{-time.Second, "00:00"},
	}

	for _, test := range tests {
		if got := formatDuration(test.d); got != test.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", test.d, got, test.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}
