package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridpatrol/agv"
)

// scriptFetcher replays a fixed sequence of results, repeating the last one.
type scriptFetcher struct {
	mu     sync.Mutex
	script []result
	calls  int
}

type result struct {
	snap agv.Snapshot
	err  error
}

func (f *scriptFetcher) FetchStatus(ctx context.Context) (agv.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	return f.script[i].snap, f.script[i].err
}

func (f *scriptFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordEmitter struct {
	mu    sync.Mutex
	snaps []agv.Snapshot
}

func (e *recordEmitter) EmitStatusPolled(snap agv.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snaps = append(e.snaps, snap)
}

func busy(b bool) result { return result{snap: agv.Snapshot{Busy: b}} }

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("poll session did not terminate")
		return Outcome{}
	}
}

func TestLoop_ResolvesOnIdle(t *testing.T) {
	f := &scriptFetcher{script: []result{busy(true), busy(true), busy(false)}}
	em := &recordEmitter{}
	l := NewLoop(f, em, 5*time.Millisecond, 0)

	done := make(chan Outcome, 1)
	require.True(t, l.Start(Idle(), func(o Outcome) { done <- o }))
	out := waitOutcome(t, done)

	require.Equal(t, Resolved, out.Reason)
	require.Equal(t, 3, out.Ticks)
	require.False(t, out.Snapshot.Busy)
	require.False(t, l.Active())

	em.mu.Lock()
	require.Len(t, em.snaps, 3)
	em.mu.Unlock()
}

func TestLoop_OnTerminateOnce(t *testing.T) {
	f := &scriptFetcher{script: []result{busy(false)}}
	l := NewLoop(f, nil, 2*time.Millisecond, 0)

	var calls atomic.Int32
	done := make(chan Outcome, 4)
	require.True(t, l.Start(Idle(), func(o Outcome) {
		calls.Add(1)
		done <- o
	}))
	waitOutcome(t, done)
	time.Sleep(30 * time.Millisecond)

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 1, f.Calls(), "no ticks after termination")
}

func TestLoop_StartWhileActiveIsNoop(t *testing.T) {
	f := &scriptFetcher{script: []result{busy(true)}}
	l := NewLoop(f, nil, 5*time.Millisecond, 0)

	done := make(chan Outcome, 1)
	require.True(t, l.Start(Idle(), func(o Outcome) { done <- o }))
	require.False(t, l.Start(Idle(), func(Outcome) { t.Error("second session must not run") }))
	require.True(t, l.Active())

	require.True(t, l.Stop())
	out := waitOutcome(t, done)
	require.Equal(t, Stopped, out.Reason)
	require.False(t, l.Active())
	require.False(t, l.Stop(), "stop on idle loop")
}

func TestLoop_FetchErrorKeepsPolling(t *testing.T) {
	fail := result{err: errors.New("connection refused")}
	f := &scriptFetcher{script: []result{fail, fail, busy(true), busy(false)}}
	em := &recordEmitter{}
	l := NewLoop(f, em, 3*time.Millisecond, 0)

	done := make(chan Outcome, 1)
	require.True(t, l.Start(Idle(), func(o Outcome) { done <- o }))
	out := waitOutcome(t, done)

	require.Equal(t, Resolved, out.Reason)
	require.Equal(t, 4, out.Ticks)

	em.mu.Lock()
	defer em.mu.Unlock()
	require.True(t, em.snaps[0].Busy, "failed fetch reads as busy")
	require.Contains(t, em.snaps[0].Message, "connection refused")
	require.Error(t, em.snaps[0].Err)
}

func TestLoop_MaxDuration(t *testing.T) {
	f := &scriptFetcher{script: []result{busy(true)}}
	l := NewLoop(f, nil, 5*time.Millisecond, 40*time.Millisecond)

	done := make(chan Outcome, 1)
	require.True(t, l.Start(Idle(), func(o Outcome) { done <- o }))
	out := waitOutcome(t, done)

	require.Equal(t, TimedOut, out.Reason)
	require.True(t, out.Snapshot.Busy)
	require.False(t, l.Active())
}

func TestLoop_RestartFromOnTerminate(t *testing.T) {
	f := &scriptFetcher{script: []result{busy(false)}}
	l := NewLoop(f, nil, 2*time.Millisecond, 0)

	second := make(chan Outcome, 1)
	restarted := make(chan bool, 1)
	l.Start(Idle(), func(Outcome) {
		restarted <- l.Start(Idle(), func(o Outcome) { second <- o })
	})
	require.True(t, <-restarted)
	require.Equal(t, Resolved, waitOutcome(t, second).Reason)
}

func TestTrackTask(t *testing.T) {
	pred := TrackTask("")

	require.False(t, pred(agv.Snapshot{Busy: true, TaskID: "T1", TaskState: agv.TaskRunning}))
	require.False(t, pred(agv.Snapshot{Busy: false, TaskID: "T1", TaskState: agv.TaskRunning}),
		"idle but tracked task still running")
	require.True(t, pred(agv.Snapshot{Busy: false, TaskID: "T1", TaskState: agv.TaskCompleted}))

	pred = TrackTask("T7")
	require.True(t, pred(agv.Snapshot{Busy: false, TaskID: "T8", TaskState: agv.TaskPending}),
		"tracked task no longer reported")
	require.False(t, pred(agv.Snapshot{Busy: false, Err: errors.New("x")}))

	pred = TrackTask("")
	require.True(t, pred(agv.Snapshot{Busy: false}), "no task ever seen")

	pred = TrackTask("T9")
	require.False(t, pred(agv.Snapshot{Busy: true, TaskID: "T9"}))
	require.True(t, pred(agv.Snapshot{Busy: false, TaskID: "T9"}), "unknown task state falls back to busy")
}

func TestIdle(t *testing.T) {
	pred := Idle()
	require.True(t, pred(agv.Snapshot{}))
	require.False(t, pred(agv.Snapshot{Busy: true}))
	require.False(t, pred(agv.Snapshot{Err: errors.New("timeout")}))
}
