package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	errs "postscraper/pkg/errors"
	"postscraper/pkg/models"
)

// TargetState is the display state of a target
type TargetState int

const (
	TargetPending TargetState = iota
	TargetActive
	TargetDone
	TargetPartial
)

// TargetItem is one planned target
type TargetItem struct {
	Target    models.Target
	WorkerID  int
	State     TargetState
	Units     int
	Records   int
	StartTime time.Time
	Duration  time.Duration
	Error     string
}

// Label is the short name shown for the target.
func (t *TargetItem) Label() string {
	if t.Target.Query != "" {
		return t.Target.Query
	}
	return t.Target.URL
}

// Model is the dashboard state. It is only mutated from Update.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	targets map[string]*TargetItem
	order   []string
	workers map[int]string

	records  int
	units    int
	partial  int
	failures map[errs.Kind]int

	sessionStartTime time.Time
	finished         bool

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// onQuit is called when the user quits, so the run can be cancelled.
	onQuit func()

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a model; onQuit may be nil.
func NewModel(onQuit func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colors.accent)

	return &Model{
		spinner:          s,
		bar:              progress.New(progress.WithDefaultGradient()),
		targets:          make(map[string]*TargetItem),
		workers:          make(map[int]string),
		failures:         make(map[errs.Kind]int),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
		onQuit:           onQuit,
	}
}

// Init starts the spinner
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Plan registers the planned targets
func (m *Model) Plan(targets []models.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range targets {
		if _, ok := m.targets[t.ID]; ok {
			continue
		}
		m.targets[t.ID] = &TargetItem{Target: t, State: TargetPending}
		m.order = append(m.order, t.ID)
	}
}

// StartTarget marks a target as active on a worker
func (m *Model) StartTarget(workerID int, t models.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.targets[t.ID]
	if !ok {
		item = &TargetItem{Target: t}
		m.targets[t.ID] = item
		m.order = append(m.order, t.ID)
	}
	item.State = TargetActive
	item.WorkerID = workerID
	item.StartTime = time.Now()
	m.workers[workerID] = t.ID
}

// FinishTarget records a target's outcome
func (m *Model) FinishTarget(res models.TargetResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.targets[res.Target.ID]
	if !ok {
		item = &TargetItem{Target: res.Target}
		m.targets[res.Target.ID] = item
		m.order = append(m.order, res.Target.ID)
	}
	item.State = TargetDone
	if res.Partial {
		item.State = TargetPartial
		m.partial++
	}
	item.Units = res.Units
	item.Records = res.Records
	item.Duration = res.Duration
	item.Error = res.Error

	m.units += res.Units
	m.records += res.Records
	if res.Kind != "" {
		m.failures[res.Kind]++
	}
	if m.workers[res.WorkerID] == res.Target.ID {
		delete(m.workers, res.WorkerID)
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// targetsIn returns the targets in state, in plan order. Callers hold mu.
func (m *Model) targetsIn(states ...TargetState) []*TargetItem {
	var out []*TargetItem
	for _, id := range m.order {
		item := m.targets[id]
		for _, s := range states {
			if item.State == s {
				out = append(out, item)
				break
			}
		}
	}
	return out
}

// Stats is a point-in-time view of run progress.
type Stats struct {
	Planned  int
	Finished int
	Partial  int
	Active   int
	Units    int
	Records  int
	ETA      time.Duration
}

// Stats returns current progress.
func (m *Model) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats()
}

func (m *Model) stats() Stats {
	s := Stats{
		Planned: len(m.order),
		Partial: m.partial,
		Active:  len(m.workers),
		Units:   m.units,
		Records: m.records,
	}
	s.Finished = len(m.targetsIn(TargetDone, TargetPartial))
	if s.Finished > 0 && s.Finished < s.Planned {
		perTarget := time.Since(m.sessionStartTime) / time.Duration(s.Finished)
		s.ETA = perTarget * time.Duration(s.Planned-s.Finished)
	}
	return s
}
