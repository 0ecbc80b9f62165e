package engine

import (
	"context"
	"fmt"
	"time"

	"gridpatrol/dispatch"
	"gridpatrol/messaging"
	"gridpatrol/store"
)

func (e *Engine) wireEventHandlers() {
	// Busy flag: mirror for dashboards
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(BusyChangedEvent)
		e.logFn("engine: busy %v -> %v (session %d, %s)", ev.Previous, ev.Busy, ev.Session, ev.Cause)
		e.withMirror(func(ctx context.Context) error { return e.mirror.SetBusy(ctx, ev.Busy, ev.Session) })
	}, EventBusyChanged)

	// Every poll: keep the last reading and follow the device's location tag
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(StatusPolledEvent)
		if ev.Error != "" {
			e.setDeviceConnected(false, ev.Error)
			return
		}
		e.setDeviceConnected(true, "device reachable")
		e.recordSnapshot(ev.Snapshot)
		e.followLocation(ev.Snapshot)
		e.withMirror(func(ctx context.Context) error { return e.mirror.SetStatus(ctx, ev.Snapshot) })
	}, EventStatusPolled)

	// Accepted commands: journal, animate the indicator, publish
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(CommandAcceptedEvent)
		cmd := ev.Command
		if cmd.Kind != dispatch.KindWatch {
			e.indicator.MoveTo(cmd.Target, e.animationFor(cmd), "command")
		}
		if err := e.db.InsertCommand(&store.Command{
			ID:     cmd.ID,
			Kind:   string(cmd.Kind),
			Target: cmd.Target,
			Source: cmd.Source,
			Status: dispatch.StatusAccepted,
			Detail: e.describeTarget(cmd.Target),
		}); err != nil {
			e.logFn("engine: journal command %s: %v", cmd.ID, err)
		}
		e.db.AppendAudit("command", cmd.ID, "accepted", "", e.describeTarget(cmd.Target), cmd.Source)
		e.withMirror(func(ctx context.Context) error { return e.mirror.SetCommand(ctx, cmd) })
		e.publish(messaging.TypeCommandAccepted, &messaging.CommandAccepted{
			CommandID: cmd.ID,
			Kind:      string(cmd.Kind),
			Target:    cmd.Target,
			Source:    cmd.Source,
		})
	}, EventCommandAccepted)

	// Rejected commands: journal as already terminal
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(CommandRejectedEvent)
		if err := e.db.InsertCommand(&store.Command{
			ID:     ev.CommandID,
			Kind:   string(ev.Kind),
			Target: ev.Target,
			Source: ev.Source,
			Status: dispatch.StatusRejected,
			Reason: ev.Reason,
			Detail: ev.Detail,
		}); err != nil {
			e.logFn("engine: journal rejected command %s: %v", ev.CommandID, err)
		}
		e.db.AppendAudit("command", ev.CommandID, "rejected", "", ev.Reason+": "+ev.Detail, "system")
	}, EventCommandRejected)

	// Resolved commands: close the journal row, publish
	e.Events.SubscribeTypes(func(evt Event) {
		res := evt.Payload.(CommandResolvedEvent).Result
		if err := e.db.ResolveCommand(&store.Command{
			ID:        res.CommandID,
			Status:    res.Status,
			Reason:    res.Reason,
			Detail:    res.Message,
			Edge:      res.Edge,
			Captured:  res.Captured,
			Filename:  res.Filename,
			Ticks:     res.Ticks,
			ElapsedMS: res.Elapsed.Milliseconds(),
		}); err != nil {
			e.logFn("engine: journal result %s: %v", res.CommandID, err)
		}
		e.db.AppendAudit("command", res.CommandID, res.Status, dispatch.StatusAccepted, res.Reason, "system")
		e.withMirror(func(ctx context.Context) error { return e.mirror.SetCommand(ctx, nil) })
		e.publish(messaging.TypeCommandResolved, &messaging.CommandResolved{
			CommandID: res.CommandID,
			Kind:      string(res.Kind),
			Target:    res.Target,
			Status:    res.Status,
			Reason:    res.Reason,
			Edge:      res.Edge,
			Message:   res.Message,
		})
	}, EventCommandResolved)

	// Captures
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(CaptureTakenEvent)
		c := &store.Capture{
			CommandID: ev.CommandID,
			Target:    ev.Target,
			Filename:  ev.Filename,
			OK:        ev.Error == "",
			Error:     ev.Error,
		}
		if err := e.db.InsertCapture(c); err != nil {
			e.logFn("engine: journal capture for %s: %v", ev.CommandID, err)
		}
		e.withMirror(func(ctx context.Context) error { return e.mirror.PushCapture(ctx, ev) })
		e.publish(messaging.TypeCaptureTaken, &messaging.CaptureTaken{
			CommandID: ev.CommandID,
			Target:    ev.Target,
			Filename:  ev.Filename,
			Error:     ev.Error,
		})
	}, EventCaptureTaken)

	// Patrols
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PatrolStartedEvent)
		if err := e.db.InsertPatrol(ev.PatrolID, ev.Rounds, ev.Steps); err != nil {
			e.logFn("engine: journal patrol %s: %v", ev.PatrolID, err)
		}
		e.db.AppendAudit("patrol", ev.PatrolID, "started", "", fmt.Sprintf("%d round(s), %d step(s)", ev.Rounds, ev.Steps), "system")
		e.mirrorPatrol()
		e.publish(messaging.TypePatrolStarted, &messaging.PatrolStarted{PatrolID: ev.PatrolID, Rounds: ev.Rounds, Steps: ev.Steps})
	}, EventPatrolStarted)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PatrolStepEvent)
		s := ev.Step
		if err := e.db.InsertPatrolStep(&store.PatrolStep{
			PatrolID:  ev.PatrolID,
			Index:     s.Index,
			Round:     s.Round,
			Target:    s.Target,
			CommandID: s.CommandID,
			Status:    s.Status,
			Reason:    s.Reason,
			Message:   s.Message,
		}); err != nil {
			e.logFn("engine: journal patrol step %s/%d: %v", ev.PatrolID, s.Index, err)
		}
		e.mirrorPatrol()
		e.publish(messaging.TypePatrolStep, &messaging.PatrolStep{
			PatrolID:  ev.PatrolID,
			Index:     s.Index,
			Round:     s.Round,
			Target:    s.Target,
			CommandID: s.CommandID,
			Status:    s.Status,
			Reason:    s.Reason,
		})
	}, EventPatrolStep)

	e.Events.SubscribeTypes(func(evt Event) {
		r := evt.Payload.(PatrolFinishedEvent).Report
		status := r.Status()
		if err := e.db.FinishPatrol(&store.Patrol{
			ID:         r.ID,
			Dispatched: r.Dispatched,
			Succeeded:  r.Succeeded,
			Failed:     r.Failed,
			Status:     status,
		}); err != nil {
			e.logFn("engine: journal patrol %s: %v", r.ID, err)
		}
		e.logFn("engine: patrol %s %s: %d/%d succeeded, %d failed", r.ID, status, r.Succeeded, r.Planned, r.Failed)
		e.db.AppendAudit("patrol", r.ID, status, "started", fmt.Sprintf("%d/%d succeeded", r.Succeeded, r.Planned), "system")
		e.withMirror(func(ctx context.Context) error { return e.mirror.SetPatrol(ctx, nil) })
		e.publish(messaging.TypePatrolFinished, &messaging.PatrolFinished{
			PatrolID:   r.ID,
			Status:     status,
			Planned:    r.Planned,
			Succeeded:  r.Succeeded,
			Failed:     r.Failed,
			FinishedAt: r.FinishedAt,
		})
	}, EventPatrolFinished)

	e.Events.SubscribeTypes(func(evt Event) {
		e.withMirror(func(ctx context.Context) error { return e.mirror.SetIndicator(ctx, e.indicator.State()) })
	}, EventIndicatorMoved)

	// Connection transitions: audit
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.logFn("engine: %s: %s", evt.Type, ev.Detail)
		e.db.AppendAudit("connection", evt.Type.String(), evt.Type.String(), "", ev.Detail, "system")
	}, EventDeviceConnected, EventDeviceDisconnected, EventMessagingConnected, EventMessagingDisconnected)
}

// animationFor picks the indicator duration: patrol steps move slower than
// direct dispatches.
func (e *Engine) animationFor(cmd dispatch.Command) time.Duration {
	if cmd.Source != "" && cmd.Source == e.dispatcher.LeaseHolder() {
		return e.cfg.Indicator.PatrolAnimation
	}
	return e.cfg.Indicator.DispatchAnimation
}

func (e *Engine) mirrorPatrol() {
	p, ok := e.sequencer.Progress()
	if !ok {
		return
	}
	e.withMirror(func(ctx context.Context) error { return e.mirror.SetPatrol(ctx, p) })
}

// withMirror runs fn against the redis mirror with a short deadline. Mirror
// failures are logged and never block the dispatch path.
func (e *Engine) withMirror(fn func(ctx context.Context) error) {
	if e.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		e.logFn("engine: redis mirror: %v", err)
	}
}

// publish queues an envelope in the outbox for the drainer.
func (e *Engine) publish(msgType string, payload any) {
	if e.msgClient == nil || !e.msgClient.Enabled() {
		return
	}
	mc := e.cfg.Messaging
	env := messaging.NewEnvelope(msgType, mc.StationID, payload)
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode %s: %v", msgType, err)
		return
	}
	if err := e.db.EnqueueOutbox(mc.EventsTopic, data, msgType, mc.StationID); err != nil {
		e.logFn("engine: enqueue %s: %v", msgType, err)
	}
}
