package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"postscraper/pkg/models"
)

// RunStatus is the lifecycle state of a triggered run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is a triggered scrape run and, once finished, its summary.
type Run struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	Status     RunStatus       `json:"status"`
	Request    models.Request  `json:"request"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Summary    *models.Summary `json:"summary,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// RunStore keeps the most recent runs in memory.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	limit int
}

// NewRunStore creates a store holding at most limit runs.
func NewRunStore(limit int) *RunStore {
	if limit < 1 {
		limit = 1
	}
	return &RunStore{runs: make(map[string]*Run), limit: limit}
}

// Create records a queued run.
func (s *RunStore) Create(req models.Request, source string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &Run{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    RunQueued,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	s.runs[run.ID] = run
	s.evict()
	cp := *run
	return &cp
}

// Start marks a run as running.
func (s *RunStore) Start(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		now := time.Now().UTC()
		run.Status = RunRunning
		run.StartedAt = &now
	}
}

// Finish records a run's outcome.
func (s *RunStore) Finish(id string, summary *models.Summary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Summary = summary
	run.Status = RunSucceeded
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
	}
}

// Get returns a copy of the run with id.
func (s *RunStore) Get(id string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, false
	}
	cp := *run
	return &cp, true
}

// List returns the stored runs, newest first.
func (s *RunStore) List() []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// evict drops the oldest finished runs beyond the limit.
func (s *RunStore) evict() {
	for len(s.runs) > s.limit {
		var oldest *Run
		for _, run := range s.runs {
			if run.FinishedAt == nil {
				continue
			}
			if oldest == nil || run.CreatedAt.Before(oldest.CreatedAt) {
				oldest = run
			}
		}
		if oldest == nil {
			return
		}
		delete(s.runs, oldest.ID)
	}
}
