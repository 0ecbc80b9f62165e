package patrol

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridpatrol/agv"
	"gridpatrol/dispatch"
	"gridpatrol/grid"
)

// Sequencer runs patrol plans one waypoint at a time. Each step dispatches
// with its own completion channel and waits for it before the settle delay
// and the next step.
type Sequencer struct {
	dispatcher     Dispatcher
	emitter        Emitter
	settle         time.Duration
	abortOnFailure bool

	mu     sync.Mutex
	active *run
	last   *Report
}

type run struct {
	plan     grid.Plan
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	progress Progress
}

func NewSequencer(dispatcher Dispatcher, emitter Emitter, settle time.Duration, abortOnFailure bool) *Sequencer {
	return &Sequencer{
		dispatcher:     dispatcher,
		emitter:        emitter,
		settle:         settle,
		abortOnFailure: abortOnFailure,
	}
}

// Configure updates the settle delay and failure policy for future runs.
func (s *Sequencer) Configure(settle time.Duration, abortOnFailure bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle = settle
	s.abortOnFailure = abortOnFailure
}

// Start launches plan in the background and returns its ID. It is rejected
// when a patrol is already running or a command is in progress.
func (s *Sequencer) Start(plan grid.Plan) (string, error) {
	r, id, err := s.begin(plan)
	if err != nil {
		return "", err
	}
	go s.execute(id, r)
	return id, nil
}

// Run executes plan and blocks until it finishes or ctx is cancelled.
func (s *Sequencer) Run(ctx context.Context, plan grid.Plan) (Report, error) {
	r, id, err := s.begin(plan)
	if err != nil {
		return Report{}, err
	}
	go func() {
		select {
		case <-ctx.Done():
			r.cancel()
		case <-r.done:
		}
	}()
	return s.execute(id, r), nil
}

// Stop halts the running patrol before its next step. A command already
// sent keeps running on the device. Returns false if nothing is running.
func (s *Sequencer) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return false
	}
	s.active.cancel()
	return true
}

// Wait blocks until the running patrol, if any, has finished.
func (s *Sequencer) Wait() {
	s.mu.Lock()
	r := s.active
	s.mu.Unlock()
	if r != nil {
		<-r.done
	}
}

func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Progress returns the live progress of the running patrol.
func (s *Sequencer) Progress() (Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Progress{}, false
	}
	return s.active.progress, true
}

// LastReport returns the report of the most recently finished patrol.
func (s *Sequencer) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

func (s *Sequencer) begin(plan grid.Plan) (*run, string, error) {
	if plan.Steps() == 0 {
		return nil, "", agv.Reject(agv.ReasonInvalid, "patrol plan has no waypoints")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, "", agv.Reject(agv.ReasonPatrol, "patrol %s is already running", s.active.progress.ID)
	}
	id := uuid.NewString()
	if err := s.dispatcher.Acquire(id); err != nil {
		log.Printf("patrol: start rejected: %v", err)
		return nil, "", err
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		plan:   plan,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: Progress{
			ID:      id,
			Running: true,
			Rounds:  plan.Rounds,
			Steps:   plan.Steps(),
		},
	}
	s.active = r
	return r, id, nil
}

func (s *Sequencer) execute(id string, r *run) Report {
	ctx := r.ctx
	s.mu.Lock()
	settle, abortOnFailure := s.settle, s.abortOnFailure
	s.mu.Unlock()

	report := Report{
		ID:        id,
		Rounds:    r.plan.Rounds,
		Planned:   r.plan.Steps(),
		StartedAt: time.Now(),
	}
	log.Printf("patrol: %s started, %d round(s), %d steps", id, r.plan.Rounds, r.plan.Steps())
	if s.emitter != nil {
		s.emitter.EmitPatrolStarted(id, r.plan.Rounds, r.plan.Steps())
	}

	steps := r.plan.Steps()
	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			report.Stopped = true
			break
		}
		round, target := r.plan.Step(i)
		s.setProgress(r, func(p *Progress) {
			p.Round = round
			p.Step = i + 1
			p.Current = target
		})

		step := s.dispatchAndAwait(ctx, id, target)
		step.Index = i + 1
		step.Round = round
		if step.CommandID != "" {
			report.Dispatched++
		}
		if step.Status == StatusStopped {
			report.Stopped = true
			report.Steps = append(report.Steps, step)
			if s.emitter != nil {
				s.emitter.EmitPatrolStep(id, step)
			}
			break
		}
		if step.OK() {
			report.Succeeded++
		} else {
			report.Failed++
			log.Printf("patrol: %s step %d/%d at %s failed: %s", id, i+1, steps, target, step.Message)
		}
		report.Steps = append(report.Steps, step)
		s.setProgress(r, func(p *Progress) {
			p.Succeeded = report.Succeeded
			p.Failed = report.Failed
		})
		if s.emitter != nil {
			s.emitter.EmitPatrolStep(id, step)
		}

		if !step.OK() && abortOnFailure {
			report.Aborted = true
			break
		}
		if i < steps-1 && settle > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(settle):
			}
		}
	}

	report.FinishedAt = time.Now()
	s.dispatcher.Release(id)

	s.mu.Lock()
	s.active = nil
	s.last = &report
	s.mu.Unlock()
	r.cancel()
	close(r.done)

	log.Printf("patrol: %s %s: %d/%d succeeded, %d failed", id, report.Status(), report.Succeeded, report.Planned, report.Failed)
	if s.emitter != nil {
		s.emitter.EmitPatrolFinished(report)
	}
	return report
}

// dispatchAndAwait sends one waypoint and waits on that step's own
// completion channel.
func (s *Sequencer) dispatchAndAwait(ctx context.Context, id string, target grid.Coordinate) Step {
	step := Step{Target: target}
	sink := make(chan dispatch.Result, 1)

	cmdID, err := s.dispatcher.DispatchAs(ctx, id, target, sink)
	if err != nil {
		step.Status = dispatch.StatusRejected
		if reason, ok := agv.IsRejected(err); ok {
			step.Reason = reason
		} else {
			step.Reason = "transport"
		}
		step.Message = err.Error()
		return step
	}
	step.CommandID = cmdID

	select {
	case res := <-sink:
		step.Status = res.Status
		step.Reason = res.Reason
		step.Message = res.Message
		step.Filename = res.Filename
		if !res.OK() && step.Message == "" {
			step.Message = fmt.Sprintf("command %s", res.Reason)
		}
	case <-ctx.Done():
		step.Status = StatusStopped
		step.Message = "patrol stopped while command in progress"
	}
	return step
}

func (s *Sequencer) setProgress(r *run, fn func(*Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&r.progress)
}
