package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridpatrol/agv"
	"gridpatrol/busystate"
	"gridpatrol/grid"
	"gridpatrol/poll"
)

// Dispatcher sends one command at a time, guarded by the busy machine, and
// routes the poll outcome to the capture trigger and the caller's sink.
type Dispatcher struct {
	device         Device
	machine        *busystate.Machine
	poller         Poller
	emitter        Emitter
	cols, rows     int
	captureTimeout time.Duration

	mu      sync.Mutex
	lease   string // holder of the dispatch lease, "" when free
	current *Command
}

func NewDispatcher(device Device, machine *busystate.Machine, poller Poller, emitter Emitter, cols, rows int) *Dispatcher {
	return &Dispatcher{
		device:         device,
		machine:        machine,
		poller:         poller,
		emitter:        emitter,
		cols:           cols,
		rows:           rows,
		captureTimeout: 30 * time.Second,
	}
}

// SetBounds updates the grid size used for validation.
func (d *Dispatcher) SetBounds(cols, rows int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cols, d.rows = cols, rows
}

// Acquire takes the dispatch lease for holder. While held, only dispatches
// made through DispatchAs with the same holder are accepted.
func (d *Dispatcher) Acquire(holder string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lease != "" {
		return agv.Reject(agv.ReasonPatrol, "patrol %s is running", d.lease)
	}
	if d.machine.Busy() {
		return agv.Reject(agv.ReasonBusy, "a command is in progress")
	}
	d.lease = holder
	return nil
}

// Release gives up the lease if holder owns it.
func (d *Dispatcher) Release(holder string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lease == holder {
		d.lease = ""
	}
}

// LeaseHolder returns the current lease holder.
func (d *Dispatcher) LeaseHolder() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lease
}

// Current returns the command whose poll session is open, if any.
func (d *Dispatcher) Current() (Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return Command{}, false
	}
	return *d.current, true
}

// Dispatch sends target (a cell or HOME) to the device. sink, if non-nil,
// receives the Result once; it should have room for one value.
func (d *Dispatcher) Dispatch(ctx context.Context, target grid.Coordinate, sink chan<- Result) (string, error) {
	return d.dispatch(ctx, "", "api", target, sink)
}

// DispatchFrom is Dispatch with the requester recorded as source.
func (d *Dispatcher) DispatchFrom(ctx context.Context, source string, target grid.Coordinate, sink chan<- Result) (string, error) {
	if source == "" {
		source = "api"
	}
	return d.dispatch(ctx, "", source, target, sink)
}

// DispatchAs is Dispatch on behalf of a lease holder.
func (d *Dispatcher) DispatchAs(ctx context.Context, holder string, target grid.Coordinate, sink chan<- Result) (string, error) {
	return d.dispatch(ctx, holder, holder, target, sink)
}

func (d *Dispatcher) dispatch(ctx context.Context, holder, source string, target grid.Coordinate, sink chan<- Result) (string, error) {
	kind := KindMove
	if target.IsHome() {
		kind = KindHome
	}
	id := uuid.NewString()

	d.mu.Lock()
	cols, rows, lease := d.cols, d.rows, d.lease
	d.mu.Unlock()

	if err := target.Validate(cols, rows); err != nil {
		return id, d.reject(id, kind, target, source, agv.Reject(agv.ReasonInvalid, "%v", err))
	}
	if lease != "" && lease != holder {
		return id, d.reject(id, kind, target, source, agv.Reject(agv.ReasonPatrol, "patrol %s is running", lease))
	}

	session, err := d.machine.Begin(string(kind))
	if err != nil {
		return id, d.reject(id, kind, target, source, agv.Reject(agv.ReasonBusy, "a command is in progress"))
	}
	// Acquire refuses while busy, so a lease taken between the check above
	// and Begin is caught here.
	if held := d.LeaseHolder(); held != "" && held != holder {
		d.machine.Abort(session, "rejected")
		return id, d.reject(id, kind, target, source, agv.Reject(agv.ReasonPatrol, "patrol %s is running", held))
	}

	if err := d.send(ctx, target); err != nil {
		d.machine.Abort(session, "rejected")
		return id, d.reject(id, kind, target, source, err)
	}

	cmd := &Command{
		ID:         id,
		Kind:       kind,
		Target:     target,
		Source:     source,
		Session:    session,
		AcceptedAt: time.Now(),
	}
	if err := d.open(cmd, poll.TrackTask(""), sink); err != nil {
		return id, err
	}
	log.Printf("dispatch: %s %s accepted (%s)", kind, target, id)
	return id, nil
}

// Watch opens a poll session for a command the device was already running
// at startup. Its completion edge resolves the busy flag but takes no image.
func (d *Dispatcher) Watch(sink chan<- Result) (string, error) {
	session, err := d.machine.Begin(string(KindWatch))
	if err != nil {
		return "", agv.Reject(agv.ReasonBusy, "a command is in progress")
	}
	cmd := &Command{
		ID:         uuid.NewString(),
		Kind:       KindWatch,
		Source:     "startup",
		Session:    session,
		AcceptedAt: time.Now(),
	}
	if err := d.open(cmd, poll.Idle(), sink); err != nil {
		return cmd.ID, err
	}
	log.Printf("dispatch: watching command in progress (%s)", cmd.ID)
	return cmd.ID, nil
}

// StopPolling ends local observation of the current command. The device
// keeps executing whatever it was sent.
func (d *Dispatcher) StopPolling() bool {
	return d.poller.Stop()
}

func (d *Dispatcher) send(ctx context.Context, target grid.Coordinate) error {
	if target.IsHome() {
		_, err := d.device.Home(ctx)
		return err
	}
	_, err := d.device.Click(ctx, target.X, target.Y)
	return err
}

func (d *Dispatcher) open(cmd *Command, pred poll.Predicate, sink chan<- Result) error {
	d.mu.Lock()
	d.current = cmd
	d.mu.Unlock()

	if d.emitter != nil {
		d.emitter.EmitCommandAccepted(*cmd)
	}
	started := d.poller.Start(pred, func(out poll.Outcome) {
		d.resolve(cmd, out, sink)
	})
	if started {
		return nil
	}

	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
	d.machine.Abort(cmd.Session, "poll")
	err := agv.Reject(agv.ReasonPoll, "a poll session is already active")
	res := Result{CommandID: cmd.ID, Kind: cmd.Kind, Target: cmd.Target, Status: StatusFailed, Reason: agv.ReasonPoll, Message: err.Error()}
	log.Printf("dispatch: %s %s: %v", cmd.Kind, cmd.Target, err)
	d.deliver(res, sink)
	return err
}

func (d *Dispatcher) resolve(cmd *Command, out poll.Outcome, sink chan<- Result) {
	res := Result{
		CommandID: cmd.ID,
		Kind:      cmd.Kind,
		Target:    cmd.Target,
		Message:   out.Snapshot.Message,
		Ticks:     out.Ticks,
		Elapsed:   out.Elapsed,
	}

	switch out.Reason {
	case poll.Resolved:
		tr := d.machine.Observe(cmd.Session, false)
		res.Status = StatusCompleted
		res.Edge = tr.Completed()
		if res.Edge && cmd.Kind != KindWatch {
			d.capture(cmd, &res)
		}
	default:
		d.machine.Abort(cmd.Session, string(out.Reason))
		res.Status = StatusFailed
		res.Reason = string(out.Reason)
		log.Printf("dispatch: %s %s failed: %s after %d polls", cmd.Kind, cmd.Target, out.Reason, out.Ticks)
	}

	d.mu.Lock()
	if d.current == cmd {
		d.current = nil
	}
	d.mu.Unlock()

	d.deliver(res, sink)
}

// capture runs once per completion edge, tagged with the coordinate
// recorded at dispatch time.
func (d *Dispatcher) capture(cmd *Command, res *Result) {
	ctx, cancel := context.WithTimeout(context.Background(), d.captureTimeout)
	defer cancel()

	out, err := d.device.Capture(ctx, cmd.Target)
	if err != nil {
		log.Printf("dispatch: capture at %s: %v", cmd.Target, err)
		res.Message = fmt.Sprintf("capture failed: %v", err)
	} else {
		res.Captured = true
		res.Filename = out.Filename
	}
	if d.emitter != nil {
		d.emitter.EmitCaptureTaken(cmd.ID, cmd.Target, res.Filename, err)
	}
}

func (d *Dispatcher) deliver(res Result, sink chan<- Result) {
	if d.emitter != nil {
		d.emitter.EmitCommandResolved(res)
	}
	if sink == nil {
		return
	}
	select {
	case sink <- res:
	default:
		log.Printf("dispatch: completion sink full, dropped result for %s", res.CommandID)
	}
}

func (d *Dispatcher) reject(id string, kind Kind, target grid.Coordinate, source string, err error) error {
	reason := "transport"
	if r, ok := agv.IsRejected(err); ok {
		reason = r
	}
	log.Printf("dispatch: %s %s from %s rejected (%s): %v", kind, target, source, reason, err)
	if d.emitter != nil {
		d.emitter.EmitCommandRejected(id, kind, target, source, reason, err.Error())
	}
	return err
}
