package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"postscraper/pkg/config"
	errs "postscraper/pkg/errors"
)

// jsonLogger returns a JSON logger writing into a buffer.
func jsonLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: level, Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	return l, &buf
}

// entries decodes every JSON line written to buf.
func entries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "disabled"} {
		if _, err := NewWithWriter(&config.LoggingConfig{Level: level}, &bytes.Buffer{}); err != nil {
			t.Errorf("level %q: unexpected error %v", level, err)
		}
	}
	for _, level := range []string{"", "verbose", "trace"} {
		if _, err := NewWithWriter(&config.LoggingConfig{Level: level}, &bytes.Buffer{}); err == nil {
			t.Errorf("level %q: expected error", level)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"Warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.level)
		if err != nil {
			t.Errorf("parseLogLevel(%q) error = %v", tt.level, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := jsonLogger(t, "warn")

	l.Debug("scroll 1")
	l.Info("target started")
	l.Warn("stagnant feed")
	l.ErrorWithFields("target failed", map[string]interface{}{"target": "search-1"})

	got := entries(t, buf)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries at warn level, got %d: %s", len(got), buf.String())
	}
	if got[0]["message"] != "stagnant feed" || got[0]["level"] != "warn" {
		t.Errorf("unexpected first entry: %v", got[0])
	}
	if got[1]["target"] != "search-1" {
		t.Errorf("missing target field: %v", got[1])
	}
	if got[1]["app"] != "postscraper" {
		t.Errorf("missing app field: %v", got[1])
	}
}

func TestDerivedLoggersDoNotLeakFields(t *testing.T) {
	l, buf := jsonLogger(t, "debug")

	run := l.WithField("run_id", "r1")
	worker := run.WithFields(map[string]interface{}{"worker": 2, "target": "profile-abc"})
	worker.Info("target started")
	run.Info("run finished")

	got := entries(t, buf)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0]["run_id"] != "r1" || got[0]["worker"] != float64(2) || got[0]["target"] != "profile-abc" {
		t.Errorf("worker entry missing fields: %v", got[0])
	}
	if _, ok := got[1]["worker"]; ok {
		t.Errorf("parent logger picked up child field: %v", got[1])
	}
}

func TestWithErrorAddsKind(t *testing.T) {
	l, buf := jsonLogger(t, "info")

	l.WithError(errs.New(errs.KindTerminalBlock, "account restricted")).Warn("target failed")
	l.WithError(os.ErrNotExist).Warn("cookie file missing")
	l.WithError(nil).Info("no error")

	got := entries(t, buf)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0]["kind"] != string(errs.KindTerminalBlock) {
		t.Errorf("expected kind on classified error: %v", got[0])
	}
	if !strings.Contains(got[0]["error"].(string), "account restricted") {
		t.Errorf("expected error text: %v", got[0])
	}
	if _, ok := got[1]["kind"]; ok {
		t.Errorf("plain error should carry no kind: %v", got[1])
	}
	if _, ok := got[2]["error"]; ok {
		t.Errorf("nil error should add nothing: %v", got[2])
	}
}

func TestFieldTypes(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	ts := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	l.InfoWithFields("types", map[string]interface{}{
		"kind":    errs.KindExtractionGap,
		"fields":  []string{"likes", "shares"},
		"units":   12,
		"partial": true,
		"at":      ts,
	})

	got := entries(t, buf)[0]
	if got["kind"] != "extraction_gap" {
		t.Errorf("kind = %v", got["kind"])
	}
	if fields, ok := got["fields"].([]interface{}); !ok || len(fields) != 2 {
		t.Errorf("fields = %v", got["fields"])
	}
	if got["units"] != float64(12) || got["partial"] != true {
		t.Errorf("unexpected scalars: %v", got)
	}
	if got["at"] != ts.Format(time.RFC3339) {
		t.Errorf("at = %v", got["at"])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&config.LoggingConfig{Level: "info", Format: "console"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	l.WithField("target", "url-1").Warn("Extraction gap")

	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "| Extraction gap") {
		t.Errorf("unexpected console line: %q", out)
	}
	if !strings.Contains(out, "url-1") {
		t.Errorf("target field missing: %q", out)
	}
}

func TestLogFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "postscraper.log")
	l, err := NewWithWriter(&config.LoggingConfig{Level: "info", Format: "json", File: path}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	l.Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestGlobalLogger(t *testing.T) {
	old := Console
	defer func() {
		Console = old
		globalLogger = nil
	}()

	var buf bytes.Buffer
	Console = &buf
	if err := Initialize(&config.LoggingConfig{Level: "info", Format: "json"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	WithField("run_id", "r2").Info("global")
	if !strings.Contains(buf.String(), `"run_id":"r2"`) {
		t.Errorf("global logger did not write: %s", buf.String())
	}
	if err := Initialize(&config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogTargetStart(tl, 1, "search-1", "search", "https://www.linkedin.com/search/results/content/?keywords=go")
	LogPacing(tl, "navigate", 10*time.Millisecond)
	LogPacing(tl, "navigate", 2*time.Second)
	LogExtractionGap(tl, "urn:li:activity:1", nil)
	LogExtractionGap(tl, "urn:li:activity:1", []string{"likes"})
	LogRetry(tl, "navigate", 1, 3, time.Second, errs.New(errs.KindTransientNetwork, "timeout"))

	if !tl.HasMessage("Target started") {
		t.Error("expected target start")
	}
	if n := len(tl.GetMessagesByLevel("DEBUG")); n != 2 {
		t.Errorf("expected one pacing and one gap entry, got %d debug entries", n)
	}
	warns := tl.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["kind"] != string(errs.KindTransientNetwork) {
		t.Errorf("unexpected retry entry: %+v", warns)
	}
}

func TestTestLoggerCapturesDerivedFields(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("target", "t1").WithError(os.ErrDeadlineExceeded).WarnWithFields("retry", map[string]interface{}{"attempt": 2})

	msgs := tl.GetMessagesByLevel("WARN")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(msgs))
	}
	if msgs[0].Fields["target"] != "t1" || msgs[0].Fields["attempt"] != 2 {
		t.Errorf("unexpected fields: %v", msgs[0].Fields)
	}
	if msgs[0].Error != os.ErrDeadlineExceeded {
		t.Errorf("expected captured error, got %v", msgs[0].Error)
	}
	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear should drop messages")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(os.ErrClosed).Info("ignored")
	if l.GetZerolog() == nil {
		t.Error("nop logger should expose a zerolog instance")
	}
}
