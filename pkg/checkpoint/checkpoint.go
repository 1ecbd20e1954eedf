package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"postscraper/pkg/logger"
	"postscraper/pkg/models"
	"postscraper/pkg/storage"
)

// Version is the current checkpoint file format.
const Version = 1

// TargetResult is the outcome recorded for a completed target.
type TargetResult struct {
	URL         string    `json:"url"`
	State       string    `json:"state"`
	Units       int       `json:"units"`
	CompletedAt time.Time `json:"completed_at"`
}

// Checkpoint represents the resume state of one run
type Checkpoint struct {
	RunKey           string                  `json:"run_key"`
	Mode             models.Mode             `json:"mode"`
	TargetsPlanned   int                     `json:"targets_planned"`
	CompletedTargets map[string]TargetResult `json:"completed_targets"` // target ID -> result
	TotalUnits       int                     `json:"total_units"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
	Version          int                     `json:"version"`
}

// IsCompleted checks if a target has already been completed
func (c *Checkpoint) IsCompleted(targetID string) bool {
	_, ok := c.CompletedTargets[targetID]
	return ok
}

// Remaining returns the targets not yet completed, in order.
func (c *Checkpoint) Remaining(targets []models.Target) []models.Target {
	var out []models.Target
	for _, t := range targets {
		if !c.IsCompleted(t.ID) {
			out = append(out, t)
		}
	}
	return out
}

// RunKey identifies a run by its mode and planned targets.
func RunKey(mode models.Mode, targets []models.Target) string {
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	h := sha256.New()
	h.Write([]byte(mode))
	for _, id := range ids {
		h.Write([]byte{0})
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Manager handles checkpoint operations. It is safe for concurrent use.
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	mu             sync.Mutex
}

// NewManager creates a checkpoint manager for runKey in the user data directory.
func NewManager(runKey string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerIn(filepath.Join(dataDir, "checkpoints"), runKey)
}

// NewManagerIn creates a checkpoint manager storing its file in dir.
func NewManagerIn(dir, runKey string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", runKey)),
		logger:         logger.GetLogger(),
	}, nil
}

// WithLogger makes m log to l instead of the global logger.
func (m *Manager) WithLogger(l logger.Logger) *Manager {
	if l != nil {
		m.logger = l
	}
	return m
}

// Path returns the checkpoint file path.
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates a new checkpoint
func (m *Manager) Create(runKey string, mode models.Mode, planned int) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		RunKey:           runKey,
		Mode:             mode,
		TargetsPlanned:   planned,
		CompletedTargets: make(map[string]TargetResult),
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          Version,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_key": runKey,
		"path":    m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No checkpoint exists
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version > Version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", checkpoint.Version, Version)
	}
	if checkpoint.CompletedTargets == nil {
		checkpoint.CompletedTargets = make(map[string]TargetResult)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_key":   checkpoint.RunKey,
		"completed": len(checkpoint.CompletedTargets),
		"planned":   checkpoint.TargetsPlanned,
		"updated":   checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(checkpoint)
}

func (m *Manager) save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	_, err := storage.WriteAtomic(m.checkpointPath, 0644, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(checkpoint)
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_key":   checkpoint.RunKey,
		"completed": len(checkpoint.CompletedTargets),
	})
	return nil
}

// RecordTarget marks a target completed and saves the checkpoint.
func (m *Manager) RecordTarget(checkpoint *Checkpoint, target models.Target, state string, units int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	checkpoint.CompletedTargets[target.ID] = TargetResult{
		URL:         target.URL,
		State:       state,
		Units:       units,
		CompletedAt: time.Now(),
	}
	checkpoint.TotalUnits += units
	return m.save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Info returns a summary of the checkpoint, or nil when none exists.
func (m *Manager) Info() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"run_key":     checkpoint.RunKey,
		"mode":        string(checkpoint.Mode),
		"planned":     checkpoint.TargetsPlanned,
		"completed":   len(checkpoint.CompletedTargets),
		"total_units": checkpoint.TotalUnits,
		"created_at":  checkpoint.CreatedAt,
		"updated_at":  checkpoint.UpdatedAt,
		"age":         time.Since(checkpoint.UpdatedAt),
	}, nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		// Use XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "postscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "postscraper")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "postscraper")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "postscraper")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
