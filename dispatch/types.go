package dispatch

import (
	"context"
	"time"

	"gridpatrol/agv"
	"gridpatrol/grid"
	"gridpatrol/poll"
)

// Kind of command sent to the device.
type Kind string

const (
	KindMove  Kind = "move"
	KindHome  Kind = "home"
	KindWatch Kind = "watch" // observe a command issued before startup
)

// Command statuses.
const (
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Command is one accepted dispatch.
type Command struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Target     grid.Coordinate `json:"target"`
	Source     string          `json:"source"`
	Session    uint64          `json:"session"`
	AcceptedAt time.Time       `json:"accepted_at"`
}

// Result is the terminal outcome of a command, delivered to the completion
// sink once the poll session ends.
type Result struct {
	CommandID string          `json:"command_id"`
	Kind      Kind            `json:"kind"`
	Target    grid.Coordinate `json:"target"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Edge      bool            `json:"edge"`
	Captured  bool            `json:"captured"`
	Filename  string          `json:"filename,omitempty"`
	Message   string          `json:"message,omitempty"`
	Ticks     int             `json:"ticks"`
	Elapsed   time.Duration   `json:"elapsed"`
}

// OK reports whether the command reached the completion edge.
func (r Result) OK() bool { return r.Status == StatusCompleted }

// Device is the remote endpoint a dispatcher drives.
type Device interface {
	Click(ctx context.Context, x, y int) (*agv.ClickAck, error)
	Home(ctx context.Context) (*agv.Ack, error)
	Capture(ctx context.Context, target grid.Coordinate) (*agv.CaptureResult, error)
}

// Poller is the single status poll session owner.
type Poller interface {
	Start(pred poll.Predicate, onTerminate func(poll.Outcome)) bool
	Stop() bool
	Active() bool
}
