package messaging

import (
	"time"

	"gridpatrol/grid"
)

// Outbound message types.
const (
	TypeCommandAccepted = "command.accepted"
	TypeCommandResolved = "command.resolved"
	TypeCaptureTaken    = "capture.taken"
	TypePatrolStarted   = "patrol.started"
	TypePatrolStep      = "patrol.step"
	TypePatrolFinished  = "patrol.finished"
)

// Inbound request types.
const (
	TypeMoveRequest       = "move.request"
	TypeHomeRequest       = "home.request"
	TypePatrolRequest     = "patrol.request"
	TypePatrolStopRequest = "patrol.stop"
)

type CommandAccepted struct {
	CommandID string          `json:"command_id"`
	Kind      string          `json:"kind"`
	Target    grid.Coordinate `json:"target"`
	Source    string          `json:"source"`
}

type CommandResolved struct {
	CommandID string          `json:"command_id"`
	Kind      string          `json:"kind"`
	Target    grid.Coordinate `json:"target"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Edge      bool            `json:"edge"`
	Message   string          `json:"message,omitempty"`
}

type CaptureTaken struct {
	CommandID string          `json:"command_id"`
	Target    grid.Coordinate `json:"target"`
	Filename  string          `json:"filename,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type PatrolStarted struct {
	PatrolID string `json:"patrol_id"`
	Rounds   int    `json:"rounds"`
	Steps    int    `json:"steps"`
}

type PatrolStep struct {
	PatrolID  string          `json:"patrol_id"`
	Index     int             `json:"index"`
	Round     int             `json:"round"`
	Target    grid.Coordinate `json:"target"`
	CommandID string          `json:"command_id,omitempty"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
}

type PatrolFinished struct {
	PatrolID   string    `json:"patrol_id"`
	Status     string    `json:"status"`
	Planned    int       `json:"planned"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	FinishedAt time.Time `json:"finished_at"`
}

type MoveRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type PatrolRequest struct {
	Rounds int `json:"rounds"`
}
