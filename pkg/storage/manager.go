package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Manager owns an output directory and writes files into it atomically:
// data goes to a temp file that is synced and renamed over the target.
type Manager struct {
	outputDir string
	written   map[string]int64
	mu        sync.Mutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{
		outputDir: outputDir,
		written:   make(map[string]int64),
	}, nil
}

// Path resolves name inside the output directory.
func (m *Manager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.outputDir, name)
}

// Write streams the output of fn into name. The previous file, if any, is
// left untouched unless fn and the rename both succeed.
func (m *Manager) Write(name string, fn func(w io.Writer) error) (string, error) {
	path := m.Path(name)
	n, err := WriteAtomic(path, 0644, fn)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.written[path] = n
	m.mu.Unlock()
	return path, nil
}

// Written returns the files written so far with their sizes.
func (m *Manager) Written() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.written))
	for k, v := range m.written {
		out[k] = v
	}
	return out
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteAtomic writes path through a temp file in the same directory.
func WriteAtomic(path string, perm os.FileMode, fn func(w io.Writer) error) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	out, err := os.OpenFile(tempFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	cw := &countingWriter{w: out}
	if err := fn(cw); err != nil {
		out.Close()
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to write data: %w", err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to sync file: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return cw.n, nil
}

// WriteFileAtomic is WriteAtomic for an in-memory payload.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	_, err := WriteAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	return err
}
