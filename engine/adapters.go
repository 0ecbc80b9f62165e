package engine

import (
	"time"

	"gridpatrol/agv"
	"gridpatrol/dispatch"
	"gridpatrol/grid"
	"gridpatrol/indicator"
	"gridpatrol/patrol"
)

// busyEmitter bridges the busy machine's transitions to the EventBus.
type busyEmitter struct {
	bus *EventBus
}

func (e *busyEmitter) EmitBusyChanged(session uint64, previous, current bool, cause string) {
	e.bus.Emit(Event{Type: EventBusyChanged, Payload: BusyChangedEvent{
		Session:            session,
		Previous:           previous,
		Busy:               current,
		Cause:              cause,
		AffordancesEnabled: !current,
	}})
}

func (e *busyEmitter) EmitCompletionEdge(session uint64) {
	e.bus.Emit(Event{Type: EventCompletionEdge, Payload: CompletionEdgeEvent{Session: session}})
}

// pollEmitter bridges every polled snapshot to the EventBus.
type pollEmitter struct {
	bus *EventBus
}

func (e *pollEmitter) EmitStatusPolled(snap agv.Snapshot) {
	ev := StatusPolledEvent{Snapshot: snap}
	if snap.Err != nil {
		ev.Error = snap.Err.Error()
	}
	e.bus.Emit(Event{Type: EventStatusPolled, Payload: ev})
}

// dispatchEmitter bridges the dispatch package's emitter interface to the EventBus.
type dispatchEmitter struct {
	bus *EventBus
}

func (e *dispatchEmitter) EmitCommandAccepted(cmd dispatch.Command) {
	e.bus.Emit(Event{Type: EventCommandAccepted, Payload: CommandAcceptedEvent{Command: cmd}})
}

func (e *dispatchEmitter) EmitCommandRejected(commandID string, kind dispatch.Kind, target grid.Coordinate, source, reason, detail string) {
	e.bus.Emit(Event{Type: EventCommandRejected, Payload: CommandRejectedEvent{
		CommandID: commandID,
		Kind:      kind,
		Target:    target,
		Source:    source,
		Reason:    reason,
		Detail:    detail,
	}})
}

func (e *dispatchEmitter) EmitCommandResolved(res dispatch.Result) {
	e.bus.Emit(Event{Type: EventCommandResolved, Payload: CommandResolvedEvent{Result: res}})
}

func (e *dispatchEmitter) EmitCaptureTaken(commandID string, target grid.Coordinate, filename string, err error) {
	ev := CaptureTakenEvent{CommandID: commandID, Target: target, Filename: filename}
	if err != nil {
		ev.Error = err.Error()
	}
	e.bus.Emit(Event{Type: EventCaptureTaken, Payload: ev})
}

// patrolEmitter bridges the patrol sequencer to the EventBus.
type patrolEmitter struct {
	bus *EventBus
}

func (e *patrolEmitter) EmitPatrolStarted(id string, rounds, steps int) {
	e.bus.Emit(Event{Type: EventPatrolStarted, Payload: PatrolStartedEvent{PatrolID: id, Rounds: rounds, Steps: steps}})
}

func (e *patrolEmitter) EmitPatrolStep(id string, step patrol.Step) {
	e.bus.Emit(Event{Type: EventPatrolStep, Payload: PatrolStepEvent{PatrolID: id, Step: step}})
}

func (e *patrolEmitter) EmitPatrolFinished(report patrol.Report) {
	e.bus.Emit(Event{Type: EventPatrolFinished, Payload: PatrolFinishedEvent{Report: report}})
}

// indicatorEmitter bridges indicator moves to the EventBus.
type indicatorEmitter struct {
	bus *EventBus
}

func (e *indicatorEmitter) EmitIndicatorMoved(from, to indicator.Position, target grid.Coordinate, d time.Duration, trigger string) {
	e.bus.Emit(Event{Type: EventIndicatorMoved, Payload: IndicatorMovedEvent{
		From:     from,
		To:       to,
		Target:   target,
		Duration: d,
		Trigger:  trigger,
	}})
}
