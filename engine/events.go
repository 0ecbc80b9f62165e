package engine

import (
	"time"

	"gridpatrol/agv"
	"gridpatrol/dispatch"
	"gridpatrol/grid"
	"gridpatrol/indicator"
	"gridpatrol/patrol"
)

const (
	EventBusyChanged EventType = iota + 1
	EventCompletionEdge
	EventStatusPolled
	EventCommandAccepted
	EventCommandRejected
	EventCommandResolved
	EventCaptureTaken
	EventPatrolStarted
	EventPatrolStep
	EventPatrolFinished
	EventIndicatorMoved
	EventDeviceConnected
	EventDeviceDisconnected
	EventMessagingConnected
	EventMessagingDisconnected
)

var eventNames = map[EventType]string{
	EventBusyChanged:           "busy",
	EventCompletionEdge:        "completion",
	EventStatusPolled:          "status",
	EventCommandAccepted:       "command-accepted",
	EventCommandRejected:       "command-rejected",
	EventCommandResolved:       "command-resolved",
	EventCaptureTaken:          "capture",
	EventPatrolStarted:         "patrol-started",
	EventPatrolStep:            "patrol-step",
	EventPatrolFinished:        "patrol-finished",
	EventIndicatorMoved:        "indicator",
	EventDeviceConnected:       "device-connected",
	EventDeviceDisconnected:    "device-disconnected",
	EventMessagingConnected:    "messaging-connected",
	EventMessagingDisconnected: "messaging-disconnected",
}

// String is the SSE event name.
func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// --- Event payloads ---

type BusyChangedEvent struct {
	Session            uint64 `json:"session"`
	Previous           bool   `json:"previous"`
	Busy               bool   `json:"busy"`
	Cause              string `json:"cause"`
	AffordancesEnabled bool   `json:"affordances_enabled"`
}

type CompletionEdgeEvent struct {
	Session uint64 `json:"session"`
}

type StatusPolledEvent struct {
	Snapshot agv.Snapshot `json:"snapshot"`
	Error    string       `json:"error,omitempty"`
}

type CommandAcceptedEvent struct {
	Command dispatch.Command `json:"command"`
}

type CommandRejectedEvent struct {
	CommandID string          `json:"command_id"`
	Kind      dispatch.Kind   `json:"kind"`
	Target    grid.Coordinate `json:"target"`
	Source    string          `json:"source"`
	Reason    string          `json:"reason"`
	Detail    string          `json:"detail"`
}

type CommandResolvedEvent struct {
	Result dispatch.Result `json:"result"`
}

type CaptureTakenEvent struct {
	CommandID string          `json:"command_id"`
	Target    grid.Coordinate `json:"target"`
	Filename  string          `json:"filename,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type PatrolStartedEvent struct {
	PatrolID string `json:"patrol_id"`
	Rounds   int    `json:"rounds"`
	Steps    int    `json:"steps"`
}

type PatrolStepEvent struct {
	PatrolID string      `json:"patrol_id"`
	Step     patrol.Step `json:"step"`
}

type PatrolFinishedEvent struct {
	Report patrol.Report `json:"report"`
}

type IndicatorMovedEvent struct {
	From     indicator.Position `json:"from"`
	To       indicator.Position `json:"to"`
	Target   grid.Coordinate    `json:"target"`
	Duration time.Duration      `json:"duration"`
	Trigger  string             `json:"trigger"`
}

type ConnectionEvent struct {
	Detail string `json:"detail"`
}
