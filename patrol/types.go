package patrol

import (
	"context"
	"time"

	"gridpatrol/dispatch"
	"gridpatrol/grid"
)

// Dispatcher is the part of dispatch.Dispatcher a patrol drives.
type Dispatcher interface {
	Acquire(holder string) error
	Release(holder string)
	DispatchAs(ctx context.Context, holder string, target grid.Coordinate, sink chan<- dispatch.Result) (string, error)
}

// Emitter is the interface adapters must satisfy to bridge patrol events to the engine.
type Emitter interface {
	EmitPatrolStarted(id string, rounds, steps int)
	EmitPatrolStep(id string, step Step)
	EmitPatrolFinished(report Report)
}

// StatusStopped marks a step abandoned by Stop while its command was in flight.
const StatusStopped = "stopped"

// Step is the outcome of one waypoint.
type Step struct {
	Index     int             `json:"index"` // 1-based across all rounds
	Round     int             `json:"round"` // 1-based
	Target    grid.Coordinate `json:"target"`
	CommandID string          `json:"command_id,omitempty"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Message   string          `json:"message,omitempty"`
	Filename  string          `json:"filename,omitempty"`
}

func (s Step) OK() bool { return s.Status == dispatch.StatusCompleted }

// Report summarizes a patrol run.
type Report struct {
	ID         string    `json:"id"`
	Rounds     int       `json:"rounds"`
	Planned    int       `json:"planned"`
	Dispatched int       `json:"dispatched"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Stopped    bool      `json:"stopped"`
	Aborted    bool      `json:"aborted"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Steps      []Step    `json:"steps"`
}

// Status is a one-word summary of how the run ended.
func (r Report) Status() string {
	switch {
	case r.Stopped:
		return "stopped"
	case r.Aborted:
		return "aborted"
	case r.Failed > 0:
		return "completed_with_errors"
	default:
		return "completed"
	}
}

// Progress is a live view of a running patrol.
type Progress struct {
	ID        string          `json:"id"`
	Running   bool            `json:"running"`
	Round     int             `json:"round"`
	Rounds    int             `json:"rounds"`
	Step      int             `json:"step"`
	Steps     int             `json:"steps"`
	Current   grid.Coordinate `json:"current"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}
