package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"postscraper/pkg/logger"
	"postscraper/pkg/models"
)

func testTargets() []models.Target {
	return []models.Target{
		{ID: "search-aaaaaaaaaaaa", Mode: models.ModeSearch, URL: "https://www.linkedin.com/search/results/content/?keywords=ai"},
		{ID: "search-bbbbbbbbbbbb", Mode: models.ModeSearch, URL: "https://www.linkedin.com/search/results/content/?keywords=ml"},
		{ID: "search-cccccccccccc", Mode: models.ModeSearch, URL: "https://www.linkedin.com/search/results/content/?keywords=go"},
	}
}

func TestCheckpointManager(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	targets := testTargets()
	runKey := RunKey(models.ModeSearch, targets)

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager(runKey)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if !strings.Contains(mgr.Path(), filepath.Join("postscraper", "checkpoints")) {
			t.Errorf("Unexpected checkpoint path %s", mgr.Path())
		}

		cp, err := mgr.Create(runKey, models.ModeSearch, len(targets))
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.RunKey != runKey {
			t.Errorf("Expected run key %s, got %s", runKey, cp.RunKey)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.TargetsPlanned != 3 || loaded.Mode != models.ModeSearch {
			t.Errorf("Unexpected loaded checkpoint %+v", loaded)
		}
	})

	t.Run("RecordTarget", func(t *testing.T) {
		mgr, err := NewManager(runKey)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		cp, err := mgr.Create(runKey, models.ModeSearch, len(targets))
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		if err := mgr.RecordTarget(cp, targets[0], "stagnant", 6); err != nil {
			t.Fatalf("Failed to record target: %v", err)
		}
		if err := mgr.RecordTarget(cp, targets[2], "satisfied", 10); err != nil {
			t.Fatalf("Failed to record target: %v", err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if !loaded.IsCompleted(targets[0].ID) || !loaded.IsCompleted(targets[2].ID) {
			t.Error("Expected recorded targets to be completed")
		}
		if loaded.IsCompleted(targets[1].ID) {
			t.Error("Expected second target to be pending")
		}
		if loaded.TotalUnits != 16 {
			t.Errorf("Expected 16 units, got %d", loaded.TotalUnits)
		}

		remaining := loaded.Remaining(targets)
		if len(remaining) != 1 || remaining[0].ID != targets[1].ID {
			t.Errorf("Expected only the second target to remain, got %v", remaining)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManager(runKey)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if _, err := mgr.Create(runKey, models.ModeSearch, 1); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if !mgr.Exists() {
			t.Error("Expected checkpoint to exist")
		}
		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to not exist after deletion")
		}

		cp, err := mgr.Load()
		if err != nil || cp != nil {
			t.Errorf("Expected no checkpoint and no error, got %v, %v", cp, err)
		}
	})
}

func TestConcurrentRecordTarget(t *testing.T) {
	mgr, err := NewManagerIn(t.TempDir(), "concurrent")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	cp, err := mgr.Create("concurrent", models.ModeProfile, 20)
	if err != nil {
		t.Fatalf("Failed to create checkpoint: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := models.Target{ID: "profile-" + string(rune('a'+i)), URL: "https://www.linkedin.com/in/x"}
			if err := mgr.RecordTarget(cp, target, "exhausted", 1); err != nil {
				t.Errorf("record %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	if len(loaded.CompletedTargets) != 20 || loaded.TotalUnits != 20 {
		t.Errorf("Expected 20 completed targets, got %d (%d units)", len(loaded.CompletedTargets), loaded.TotalUnits)
	}
	if _, err := os.Stat(mgr.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file should not exist after save")
	}
}

func TestRunKey(t *testing.T) {
	targets := testTargets()
	reversed := []models.Target{targets[2], targets[1], targets[0]}

	if RunKey(models.ModeSearch, targets) != RunKey(models.ModeSearch, reversed) {
		t.Error("Run key should not depend on target order")
	}
	if RunKey(models.ModeSearch, targets) == RunKey(models.ModeSearch, targets[:2]) {
		t.Error("Run key should depend on the target set")
	}
	if len(RunKey(models.ModeURL, nil)) != 16 {
		t.Error("Run key should be 16 hex characters")
	}
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManagerIn(dir, "future")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if err := os.WriteFile(mgr.Path(), []byte(`{"run_key":"future","version":99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Load(); err == nil {
		t.Error("Expected an error for a newer checkpoint version")
	}
}

func TestManagerLogsToGivenLogger(t *testing.T) {
	log := logger.NewTestLogger()
	mgr, err := NewManagerIn(t.TempDir(), "logged")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	mgr.WithLogger(log)

	if _, err := mgr.Create("logged", models.ModeURL, 1); err != nil {
		t.Fatalf("Failed to create checkpoint: %v", err)
	}
	if err := mgr.Delete(); err != nil {
		t.Fatalf("Failed to delete checkpoint: %v", err)
	}
	if !log.HasMessage("Checkpoint created") || !log.HasMessage("Checkpoint deleted") {
		t.Errorf("Expected checkpoint messages on the given logger, got %+v", log.GetMessages())
	}
}
