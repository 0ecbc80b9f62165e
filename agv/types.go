package agv

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// TaskState is the device-reported lifecycle state of a task.
type TaskState string

const (
	TaskNone      TaskState = ""
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskCancelled TaskState = "CANCELLED"
)

func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// ParseTaskState normalizes a device task status. Vendor aliases for the
// terminal states are folded in.
func ParseTaskState(raw string) (TaskState, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING", "CREATED", "WAITING", "QUEUED":
		return TaskPending, true
	case "RUNNING", "MOVING", "EXECUTING":
		return TaskRunning, true
	case "COMPLETED", "FINISHED", "DONE":
		return TaskCompleted, true
	case "FAILED", "ERROR":
		return TaskFailed, true
	case "CANCELLED", "CANCELED", "STOPPED":
		return TaskCancelled, true
	}
	return TaskNone, false
}

// Snapshot is one normalized status reading. Snapshots are replaced, never
// mutated.
type Snapshot struct {
	Busy        bool      `json:"busy"`
	Message     string    `json:"message"`
	TaskID      string    `json:"task_id,omitempty"`
	TaskState   TaskState `json:"task_state,omitempty"`
	TargetTag   string    `json:"target_tag,omitempty"`
	LocationTag string    `json:"location_tag,omitempty"`
	At          time.Time `json:"at"`
	// Err is set when the snapshot stands in for a failed fetch.
	Err error `json:"-"`
}

// --- Wire types ---

type statusSummaryResponse struct {
	SystemBusy *bool          `json:"system_busy"`
	Details    *statusDetails `json:"details"`
	RawStatus  *rawStatus     `json:"agv_raw_status"`
}

type statusDetails struct {
	Message string `json:"message"`
}

type rawStatus struct {
	Location json.RawMessage `json:"location"`
	Task     *rawTask        `json:"task"`
}

type rawTask struct {
	TaskNumber json.RawMessage `json:"taskNumber"`
	Status     string          `json:"status"`
	TargetTag  json.RawMessage `json:"targetTag"`
}

type clickRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ClickAck is the device's reply to a move command.
type ClickAck struct {
	OK    bool   `json:"ok"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Busy  bool   `json:"busy,omitempty"`
	Error string `json:"error,omitempty"`
}

// Ack is the device's reply to a home command.
type Ack struct {
	OK    bool   `json:"ok"`
	Busy  bool   `json:"busy,omitempty"`
	Error string `json:"error,omitempty"`
}

// CaptureResult is the device's reply to an image capture.
type CaptureResult struct {
	OK       bool   `json:"ok"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
}

// rawString reads a JSON string or number as a string; null and absent
// values read as "".
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}
