package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"postscraper/pkg/models"
)

// PlanMsg registers the planned targets
type PlanMsg struct {
	Targets []models.Target
}

// TargetStartMsg is sent when a worker picks up a target
type TargetStartMsg struct {
	WorkerID int
	Target   models.Target
}

// TargetFinishMsg is sent when a target is done
type TargetFinishMsg struct {
	Result models.TargetResult
}

// RunFinishMsg is sent once the run has a summary
type RunFinishMsg struct {
	Summary *models.Summary
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case PlanMsg:
		m.Plan(msg.Targets)
		m.AddLogMessage("INFO", fmt.Sprintf("Planned %d targets", len(msg.Targets)))
		return m, nil

	case TargetStartMsg:
		m.StartTarget(msg.WorkerID, msg.Target)
		m.AddLogMessage("INFO", fmt.Sprintf("Worker %d: %s", msg.WorkerID, msg.Target.ID))
		return m, nil

	case TargetFinishMsg:
		m.FinishTarget(msg.Result)
		res := msg.Result
		if res.Error != "" {
			m.AddLogMessage("WARN", fmt.Sprintf("%s partial: %s", res.Target.ID, res.Error))
		} else {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("%s: %d records", res.Target.ID, res.Records))
		}
		return m, nil

	case RunFinishMsg:
		m.mu.Lock()
		m.finished = true
		m.mu.Unlock()
		if msg.Summary != nil {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("Run finished: %d records exported", msg.Summary.RecordsCollected))
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// keyMap is the dashboard's key bindings.
type keyMap struct {
	Quit     key.Binding
	Help     key.Binding
	ClearLog key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "Q", "ctrl+c"), key.WithHelp("q", "stop the run and quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	ClearLog: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear the log")),
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.Quit, k.ClearLog, k.Help}
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()

	case key.Matches(msg, keys.ClearLog):
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
	}
	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
