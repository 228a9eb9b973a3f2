package testsupport

import (
	"context"
	"log/slog"
	"sync"
)

// LogRecord captures one emitted log event for assertions.
type LogRecord struct {
	Level   slog.Level
	Message string
}

// LogRecorder is a slog handler that stores every record it receives.
type LogRecorder struct {
	mu      sync.Mutex
	records []LogRecord
}

// NewLogRecorder returns an empty recorder.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Logger returns a logger whose output lands in the recorder.
func (r *LogRecorder) Logger() *slog.Logger {
	return slog.New(recorderHandler{recorder: r})
}

// Records returns a copy of everything logged so far.
func (r *LogRecorder) Records() []LogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogRecord, len(r.records))
	copy(out, r.records)
	return out
}

type recorderHandler struct {
	recorder *LogRecorder
}

func (recorderHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h recorderHandler) Handle(_ context.Context, record slog.Record) error {
	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	h.recorder.records = append(h.recorder.records, LogRecord{
		Level:   record.Level,
		Message: record.Message,
	})
	return nil
}

func (h recorderHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h recorderHandler) WithGroup(string) slog.Handler { return h }
