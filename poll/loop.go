package poll

import (
	"context"
	"log"
	"sync"
	"time"

	"gridpatrol/agv"
)

// Fetcher is the status source the loop polls.
type Fetcher interface {
	FetchStatus(ctx context.Context) (agv.Snapshot, error)
}

// Emitter receives every snapshot the loop observes.
type Emitter interface {
	EmitStatusPolled(snap agv.Snapshot)
}

// Reason says why a poll session ended.
type Reason string

const (
	Resolved Reason = "resolved"
	TimedOut Reason = "timeout"
	Stopped  Reason = "stopped"
)

// Outcome is delivered exactly once when a session ends.
type Outcome struct {
	Reason   Reason
	Snapshot agv.Snapshot // last snapshot seen; zero if no tick ran
	Ticks    int
	Elapsed  time.Duration
}

// Loop is the single status poller. At most one session runs at a time;
// Start while a session is active is a no-op.
type Loop struct {
	fetcher     Fetcher
	emitter     Emitter
	interval    time.Duration
	maxDuration time.Duration

	mu       sync.Mutex
	active   bool
	stopChan chan struct{}
	started  time.Time
}

// NewLoop creates a loop. maxDuration of zero polls until resolved or stopped.
func NewLoop(fetcher Fetcher, emitter Emitter, interval, maxDuration time.Duration) *Loop {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Loop{
		fetcher:     fetcher,
		emitter:     emitter,
		interval:    interval,
		maxDuration: maxDuration,
	}
}

func (l *Loop) Interval() time.Duration { return l.interval }

// Active reports whether a session is running.
func (l *Loop) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Since returns when the current session started, or the zero time.
func (l *Loop) Since() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return time.Time{}
	}
	return l.started
}

// Start begins a session that ends when pred holds, the max duration
// elapses, or Stop is called. onTerminate runs once, after the loop has
// marked itself inactive, so it may start the next session. Start returns
// false without side effects when a session is already active.
func (l *Loop) Start(pred Predicate, onTerminate func(Outcome)) bool {
	if pred == nil {
		pred = Idle()
	}
	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return false
	}
	l.active = true
	l.started = time.Now()
	stop := make(chan struct{})
	l.stopChan = stop
	l.mu.Unlock()

	go l.run(stop, pred, onTerminate)
	return true
}

// Stop ends local observation of the current session. It does not retract
// any command already sent to the device.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active || l.stopChan == nil {
		return false
	}
	close(l.stopChan)
	l.stopChan = nil
	return true
}

func (l *Loop) run(stop chan struct{}, pred Predicate, onTerminate func(Outcome)) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if l.maxDuration > 0 {
		timer := time.NewTimer(l.maxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	start := time.Now()
	out := Outcome{}
	for {
		select {
		case <-stop:
			out.Reason = Stopped
			l.finish(stop, start, out, onTerminate)
			return
		case <-deadline:
			log.Printf("poll: no resolution after %s", l.maxDuration)
			out.Reason = TimedOut
			l.finish(stop, start, out, onTerminate)
			return
		case <-ticker.C:
			snap := l.tick(ctx)
			if ctx.Err() != nil {
				continue
			}
			out.Snapshot = snap
			out.Ticks++
			if pred(snap) {
				out.Reason = Resolved
				l.finish(stop, start, out, onTerminate)
				return
			}
		}
	}
}

// tick fetches once. A failed fetch reads as busy so polling continues.
func (l *Loop) tick(ctx context.Context) agv.Snapshot {
	snap, err := l.fetcher.FetchStatus(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return agv.Snapshot{}
		}
		log.Printf("poll: fetch status: %v", err)
		snap = agv.Snapshot{Busy: true, Message: err.Error(), At: time.Now(), Err: err}
	}
	if l.emitter != nil {
		l.emitter.EmitStatusPolled(snap)
	}
	return snap
}

func (l *Loop) finish(stop chan struct{}, start time.Time, out Outcome, onTerminate func(Outcome)) {
	l.mu.Lock()
	if l.stopChan == stop {
		l.stopChan = nil
	}
	l.active = false
	l.mu.Unlock()

	out.Elapsed = time.Since(start)
	if onTerminate != nil {
		onTerminate(out)
	}
}
