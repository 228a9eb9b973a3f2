package store

import "time"

// Record is one key-value entry in the store.
type Record struct {
	Key       string
	Value     []byte
	Revision  string
	UpdatedAt time.Time
}

// Stats summarizes store state for status output.
type Stats struct {
	Records          int
	ActiveSegment    int64
	PendingLogBytes  int64
	LastCheckpointAt time.Time
}

// Health reports diagnostic information about the store files.
type Health struct {
	Path           string
	DatabaseExists bool
	IntegrityOK    bool
	Records        int
	Error          string
}
