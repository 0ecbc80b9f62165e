package busystate

import (
	"errors"
	"sync"
)

// State is the engine-wide dispatch state.
type State string

const (
	Ready State = "READY"
	Busy  State = "BUSY"
)

// Edge classifies a transition of the busy flag.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeBusy      // false -> true
	EdgeIdle      // true -> false, the completion edge
)

func (e Edge) String() string {
	switch e {
	case EdgeBusy:
		return "busy"
	case EdgeIdle:
		return "idle"
	default:
		return "none"
	}
}

// ErrBusy is returned when a session is requested while one is open.
var ErrBusy = errors.New("busy")

// Transition is the (previous, current) pair recorded by one update.
type Transition struct {
	Session  uint64
	Previous bool
	Current  bool
	Edge     Edge
}

// Completed reports whether this transition is the completion edge.
func (t Transition) Completed() bool { return t.Edge == EdgeIdle }

// Emitter receives busy flag transitions.
type Emitter interface {
	EmitBusyChanged(session uint64, previous, current bool, cause string)
	EmitCompletionEdge(session uint64)
}

// Machine owns the busy flag. Every accepted command opens a session; poll
// observations are only applied to the open session, and the completion
// edge fires at most once per session.
type Machine struct {
	mu      sync.Mutex
	emitter Emitter
	busy    bool
	session uint64
	closed  bool
}

// NewMachine creates a machine in the READY state. emitter may be nil.
func NewMachine(emitter Emitter) *Machine {
	return &Machine{emitter: emitter, closed: true}
}

func (m *Machine) State() State {
	if m.Busy() {
		return Busy
	}
	return Ready
}

func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Session returns the most recent session ID.
func (m *Machine) Session() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// AffordancesEnabled reports whether pick/hover affordances should be live.
func (m *Machine) AffordancesEnabled() bool {
	return !m.Busy()
}

// Begin moves READY -> BUSY and opens a new session. It fails with ErrBusy
// when the machine is already busy, which makes it the dispatch guard.
func (m *Machine) Begin(cause string) (uint64, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return 0, ErrBusy
	}
	m.session++
	m.busy = true
	m.closed = false
	id := m.session
	m.mu.Unlock()

	m.emitBusyChanged(id, false, true, cause)
	return id, nil
}

// Observe applies a polled busy value to session. Observations for any
// other session, or for a session whose edge already fired, are ignored.
func (m *Machine) Observe(session uint64, busy bool) Transition {
	m.mu.Lock()
	if session != m.session || m.closed {
		t := Transition{Session: session, Previous: m.busy, Current: m.busy}
		m.mu.Unlock()
		return t
	}
	t := Transition{Session: session, Previous: m.busy, Current: busy}
	switch {
	case m.busy && !busy:
		t.Edge = EdgeIdle
		m.closed = true
	case !m.busy && busy:
		t.Edge = EdgeBusy
	}
	m.busy = busy
	m.mu.Unlock()

	switch t.Edge {
	case EdgeIdle:
		m.emitBusyChanged(session, true, false, "poll")
		if m.emitter != nil {
			m.emitter.EmitCompletionEdge(session)
		}
	case EdgeBusy:
		m.emitBusyChanged(session, false, true, "poll")
	}
	return t
}

// Abort closes session and returns to READY without a completion edge.
// It is the rollback path for rejected, timed out or abandoned commands.
func (m *Machine) Abort(session uint64, cause string) Transition {
	m.mu.Lock()
	if session != m.session || m.closed {
		t := Transition{Session: session, Previous: m.busy, Current: m.busy}
		m.mu.Unlock()
		return t
	}
	t := Transition{Session: session, Previous: m.busy, Current: false}
	m.busy = false
	m.closed = true
	m.mu.Unlock()

	if t.Previous {
		m.emitBusyChanged(session, true, false, cause)
	}
	return t
}

func (m *Machine) emitBusyChanged(session uint64, previous, current bool, cause string) {
	if m.emitter != nil {
		m.emitter.EmitBusyChanged(session, previous, current, cause)
	}
}
