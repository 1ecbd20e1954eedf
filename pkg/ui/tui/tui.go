package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"postscraper/pkg/models"
)

// TUI is a live run dashboard. It satisfies the scraper's progress reporter.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a dashboard. onQuit is called when the user presses q.
func NewTUI(onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(onQuit)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the dashboard until Stop or the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Plan shows the planned targets
func (t *TUI) Plan(targets []models.Target) {
	t.Send(PlanMsg{Targets: targets})
}

func (t *TUI) TargetStarted(workerID int, target models.Target) {
	t.Send(TargetStartMsg{WorkerID: workerID, Target: target})
}

func (t *TUI) TargetFinished(result models.TargetResult) {
	t.Send(TargetFinishMsg{Result: result})
}

// Finish shows the run's final state
func (t *TUI) Finish(summary *models.Summary) {
	t.Send(RunFinishMsg{Summary: summary})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}

// Stats returns current progress.
func (t *TUI) Stats() Stats {
	return t.model.Stats()
}
