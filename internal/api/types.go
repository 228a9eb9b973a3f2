package api

// StatusPayload reports daemon and store state.
type StatusPayload struct {
	Running          bool   `json:"running"`
	StoreLocation    string `json:"store_location"`
	Records          int    `json:"records"`
	ActiveSegment    int64  `json:"active_segment"`
	PendingLogBytes  int64  `json:"pending_log_bytes"`
	LastCheckpointAt string `json:"last_checkpoint_at,omitempty"`
}

// RecordPayload is the wire form of one store record. Values are opaque
// bytes, base64-encoded by encoding/json.
type RecordPayload struct {
	Key       string `json:"key"`
	Value     []byte `json:"value"`
	Revision  string `json:"revision"`
	UpdatedAt string `json:"updated_at"`
}

// ListPayload wraps a record listing.
type ListPayload struct {
	Records []RecordPayload `json:"records"`
}

// ErrorPayload carries an API error message.
type ErrorPayload struct {
	Error string `json:"error"`
}
