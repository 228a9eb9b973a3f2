package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cellar/internal/logging"
)

func TestConsoleOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellar.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	scoped := logging.NewComponentLogger(logger, "engine")
	scoped.Info("store opened", logging.String("store_path", "/tmp/cellar store"))
	scoped.Debug("should be filtered")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(out, " INFO engine: store opened") {
		t.Fatalf("unexpected console line: %q", out)
	}
	if !strings.Contains(out, `store_path="/tmp/cellar store"`) {
		t.Fatalf("spaced attribute value not quoted: %q", out)
	}
}

func TestJSONOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cellar.json")

	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("suppressed below warn")
	logger.Warn("checkpoint slow", logging.Int64("pending_bytes", 4096))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d:\n%s", len(lines), data)
	}

	var event map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if event["msg"] != "checkpoint slow" {
		t.Fatalf("msg = %v", event["msg"])
	}
	if event["level"] != "warn" {
		t.Fatalf("level = %v", event["level"])
	}
	if _, ok := event["ts"]; !ok {
		t.Fatal("ts field missing")
	}
	if event["pending_bytes"] != float64(4096) {
		t.Fatalf("pending_bytes = %v", event["pending_bytes"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("New accepted an unknown format")
	}
}

func TestNopLoggerStaysSilent(t *testing.T) {
	logger := logging.NewNop()
	// Must not panic and must report every level disabled.
	logger.Error("ignored", logging.Error(os.ErrClosed))
	if logger.Enabled(nil, 0) {
		t.Fatal("nop logger reports itself enabled")
	}
}
