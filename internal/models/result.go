package models

import (
	"encoding/json"
	"sort"
	"time"
)

// ErrorKey is the only key of an isolated plugin failure record.
const ErrorKey = "error"

// Values is one plugin's result mapping.
type Values map[string]any

// ErrorValues builds the record stored for a plugin that failed on a chunk.
func ErrorValues(msg string) Values {
	return Values{ErrorKey: msg}
}

// IsError reports whether v is a failure record, i.e. exactly {"error": message}.
func (v Values) IsError() bool {
	if len(v) != 1 {
		return false
	}
	_, ok := v[ErrorKey].(string)
	return ok
}

// Error returns the failure message, or "" when v is not a failure record.
func (v Values) Error() string {
	if !v.IsError() {
		return ""
	}
	return v[ErrorKey].(string)
}

// ChunkResult maps plugin name to outcome for one chunk.
type ChunkResult map[string]Values

// Plugins returns the plugin names present, sorted.
func (r ChunkResult) Plugins() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failed counts the failure records in r.
func (r ChunkResult) Failed() int {
	n := 0
	for _, v := range r {
		if v.IsError() {
			n++
		}
	}
	return n
}

// Update is delivered to observers: incremental when Results is set, terminal when Status is terminal.
type Update struct {
	TaskID  string      `json:"task_id"`
	Chunk   int         `json:"chunk"`
	Offset  int         `json:"offset"`
	Total   int         `json:"total"`
	Results ChunkResult `json:"results"`
	Status  Status      `json:"status"`
	Error   string      `json:"error,omitempty"`
}

// Terminal reports whether u announces the end of a task.
func (u Update) Terminal() bool {
	return u.Results == nil && u.Status.Terminal()
}

type chunkUpdate struct {
	TaskID  string      `json:"task_id"`
	Chunk   int         `json:"chunk"`
	Offset  int         `json:"offset"`
	Total   int         `json:"total"`
	Results ChunkResult `json:"results"`
}

type statusUpdate struct {
	TaskID string `json:"task_id"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// MarshalJSON writes one of two shapes. Incremental updates always carry results, even when empty.
// Status updates carry no chunk position.
func (u Update) MarshalJSON() ([]byte, error) {
	if u.Results != nil {
		return json.Marshal(chunkUpdate{TaskID: u.TaskID, Chunk: u.Chunk, Offset: u.Offset, Total: u.Total, Results: u.Results})
	}
	return json.Marshal(statusUpdate{TaskID: u.TaskID, Status: u.Status, Error: u.Error})
}

// Report is the outward shape of a task: config, status and results so far.
type Report struct {
	TaskID      string         `json:"task_id"`
	Status      Status         `json:"status"`
	Config      AnalysisConfig `json:"config"`
	Results     []ChunkResult  `json:"results"`
	Error       string         `json:"error,omitempty"`
	TotalChunks int            `json:"total_chunks,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

// Duration is the wall time between start and finish, or zero when either is missing.
func (r Report) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// Summary is a compact listing entry for a task.
type Summary struct {
	TaskID    string    `json:"task_id"`
	Status    Status    `json:"status"`
	Resource  string    `json:"resource"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}
