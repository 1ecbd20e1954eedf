package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestManagerWrite(t *testing.T) {
	tempDir := t.TempDir()
	outDir := filepath.Join(tempDir, "out")

	manager, err := NewManager(outDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if _, err := os.Stat(outDir); err != nil {
		t.Fatalf("Expected output directory to be created: %v", err)
	}

	path, err := manager.Write("posts.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "id,content_text\n1,hello\n")
		return err
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if path != filepath.Join(outDir, "posts.csv") {
		t.Errorf("unexpected path %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(content) != "id,content_text\n1,hello\n" {
		t.Errorf("unexpected content %q", content)
	}
	if size := manager.Written()[path]; size != int64(len(content)) {
		t.Errorf("recorded size %d, want %d", size, len(content))
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temporary file to be cleaned up")
	}
}

func TestManagerWriteFailureKeepsPrevious(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	path := manager.Path("posts.json")
	if err := WriteFileAtomic(path, []byte("[]"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}

	_, err = manager.Write("posts.json", func(w io.Writer) error {
		io.WriteString(w, "[{")
		return errors.New("encoder failed")
	})
	if err == nil {
		t.Fatal("Expected write error")
	}

	content, _ := os.ReadFile(path)
	if string(content) != "[]" {
		t.Errorf("previous file was clobbered: %q", content)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temporary file to be removed after failure")
	}
}

func TestPathAbsolute(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	abs := filepath.Join(t.TempDir(), "elsewhere.csv")
	if got := manager.Path(abs); got != abs {
		t.Errorf("Path(%s) = %s", abs, got)
	}
}
