package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridpatrol/agv"
	"gridpatrol/busystate"
	"gridpatrol/grid"
	"gridpatrol/poll"
)

// --- Mock device ---

type mockDevice struct {
	mu       sync.Mutex
	clicks   []grid.Coordinate
	homes    int
	captures []grid.Coordinate
	clickErr error
	homeErr  error
}

func (m *mockDevice) Click(ctx context.Context, x, y int) (*agv.ClickAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, grid.Cell(x, y))
	if m.clickErr != nil {
		return &agv.ClickAck{OK: false, X: x, Y: y}, m.clickErr
	}
	return &agv.ClickAck{OK: true, X: x, Y: y}, nil
}

func (m *mockDevice) Home(ctx context.Context) (*agv.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homes++
	if m.homeErr != nil {
		return nil, m.homeErr
	}
	return &agv.Ack{OK: true}, nil
}

func (m *mockDevice) Capture(ctx context.Context, target grid.Coordinate) (*agv.CaptureResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, target)
	return &agv.CaptureResult{OK: true, Filename: "img_" + target.String() + ".jpg"}, nil
}

func (m *mockDevice) counts() (clicks, homes, captures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clicks), m.homes, len(m.captures)
}

// --- Scripted status source ---

type scriptFetcher struct {
	mu     sync.Mutex
	script []bool
	calls  int
}

func (f *scriptFetcher) FetchStatus(ctx context.Context) (agv.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	return agv.Snapshot{Busy: f.script[i], At: time.Now()}, nil
}

func (f *scriptFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- Mock emitter ---

type mockEmitter struct {
	mu       sync.Mutex
	accepted []Command
	rejected []string
	sources  []string
	resolved []Result
	captures []grid.Coordinate
}

func (m *mockEmitter) EmitCommandAccepted(cmd Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted = append(m.accepted, cmd)
}
func (m *mockEmitter) EmitCommandRejected(_ string, _ Kind, _ grid.Coordinate, source, reason, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, reason)
	m.sources = append(m.sources, source)
}
func (m *mockEmitter) EmitCommandResolved(res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, res)
}
func (m *mockEmitter) EmitCaptureTaken(_ string, target grid.Coordinate, _ string, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, target)
}

// --- Test helpers ---

type harness struct {
	d       *Dispatcher
	device  *mockDevice
	fetcher *scriptFetcher
	machine *busystate.Machine
	loop    *poll.Loop
	emitter *mockEmitter
}

func newHarness(script []bool, maxPoll time.Duration) *harness {
	h := &harness{
		device:  &mockDevice{},
		fetcher: &scriptFetcher{script: script},
		machine: busystate.NewMachine(nil),
		emitter: &mockEmitter{},
	}
	h.loop = poll.NewLoop(h.fetcher, nil, 3*time.Millisecond, maxPoll)
	h.d = NewDispatcher(h.device, h.machine, h.loop, h.emitter, 7, 10)
	return h
}

func waitResult(t *testing.T, sink <-chan Result) Result {
	t.Helper()
	select {
	case res := <-sink:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return Result{}
	}
}

func TestDispatch_CaptureOncePerEdge(t *testing.T) {
	h := newHarness([]bool{true, true, false}, 0)
	sink := make(chan Result, 1)

	id, err := h.d.Dispatch(context.Background(), grid.Cell(7, 3), sink)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.True(t, h.machine.Busy())

	res := waitResult(t, sink)
	require.Equal(t, id, res.CommandID)
	require.Equal(t, StatusCompleted, res.Status)
	require.True(t, res.Edge)
	require.True(t, res.Captured)
	require.Equal(t, 3, res.Ticks)
	require.False(t, h.machine.Busy())

	time.Sleep(20 * time.Millisecond)
	h.device.mu.Lock()
	require.Equal(t, []grid.Coordinate{grid.Cell(7, 3)}, h.device.clicks)
	require.Equal(t, []grid.Coordinate{grid.Cell(7, 3)}, h.device.captures)
	h.device.mu.Unlock()
	require.Equal(t, 3, h.fetcher.Calls())

	_, ok := h.d.Current()
	require.False(t, ok)
}

func TestDispatch_WhileBusyNeverCallsDevice(t *testing.T) {
	h := newHarness([]bool{true}, 0)
	_, err := h.d.Dispatch(context.Background(), grid.Cell(1, 1), nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := h.d.Dispatch(context.Background(), grid.Cell(2, 2), nil)
		reason, ok := agv.IsRejected(err)
		require.True(t, ok)
		require.Equal(t, agv.ReasonBusy, reason)
	}
	_, err = h.d.Dispatch(context.Background(), grid.Home, nil)
	require.Error(t, err)

	clicks, homes, _ := h.device.counts()
	require.Equal(t, 1, clicks)
	require.Equal(t, 0, homes)

	h.d.StopPolling()
	require.Eventually(t, func() bool { return !h.machine.Busy() }, time.Second, 5*time.Millisecond)
}

func TestDispatch_RemoteRejectRollsBack(t *testing.T) {
	h := newHarness([]bool{false}, 0)
	h.device.clickErr = &agv.RejectedError{Reason: agv.ReasonRemote, Detail: "device returned ok=false"}

	_, err := h.d.Dispatch(context.Background(), grid.Cell(7, 3), nil)
	reason, ok := agv.IsRejected(err)
	require.True(t, ok)
	require.Equal(t, agv.ReasonRemote, reason)

	require.Equal(t, busystate.Ready, h.machine.State())
	require.False(t, h.loop.Active())
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, h.fetcher.Calls(), "no poll after rejection")
	require.Equal(t, []string{agv.ReasonRemote}, h.emitter.rejected)
}

func TestDispatch_TransportErrorRollsBack(t *testing.T) {
	h := newHarness([]bool{false}, 0)
	h.device.homeErr = &agv.TransportError{Op: "POST /agv/home", Err: errors.New("connection refused")}

	_, err := h.d.Dispatch(context.Background(), grid.Home, nil)
	require.True(t, agv.IsTransport(err))
	require.False(t, h.machine.Busy())
	require.Equal(t, []string{"transport"}, h.emitter.rejected)
}

func TestDispatch_HomeRoundTrip(t *testing.T) {
	h := newHarness([]bool{true, false}, 0)
	sink := make(chan Result, 1)

	_, err := h.d.Dispatch(context.Background(), grid.Home, sink)
	require.NoError(t, err)
	res := waitResult(t, sink)

	require.Equal(t, KindHome, res.Kind)
	require.True(t, res.OK())
	require.Equal(t, busystate.Ready, h.machine.State())
	_, homes, _ := h.device.counts()
	require.Equal(t, 1, homes)
	require.Equal(t, []grid.Coordinate{grid.Home}, h.device.captures)
}

func TestDispatch_Invalid(t *testing.T) {
	h := newHarness([]bool{false}, 0)
	for _, c := range []grid.Coordinate{grid.Cell(0, 3), grid.Cell(8, 1), grid.Cell(3, 11), grid.Cell(-1, -1)} {
		_, err := h.d.Dispatch(context.Background(), c, nil)
		reason, ok := agv.IsRejected(err)
		require.True(t, ok, "coordinate %s", c)
		require.Equal(t, agv.ReasonInvalid, reason)
	}
	clicks, _, _ := h.device.counts()
	require.Zero(t, clicks)
	require.False(t, h.machine.Busy())
}

func TestDispatch_RejectionCarriesSource(t *testing.T) {
	h := newHarness([]bool{false}, 0)
	_, err := h.d.DispatchFrom(context.Background(), "messaging:hmi-1", grid.Cell(0, 0), nil)
	require.Error(t, err)
	_, err = h.d.Dispatch(context.Background(), grid.Cell(9, 9), nil)
	require.Error(t, err)

	h.emitter.mu.Lock()
	defer h.emitter.mu.Unlock()
	require.Equal(t, []string{"messaging:hmi-1", "api"}, h.emitter.sources)
	require.Equal(t, []string{agv.ReasonInvalid, agv.ReasonInvalid}, h.emitter.rejected)
}

func TestDispatch_Lease(t *testing.T) {
	h := newHarness([]bool{false}, 0)
	require.NoError(t, h.d.Acquire("patrol-1"))

	_, err := h.d.Dispatch(context.Background(), grid.Cell(1, 6), nil)
	reason, _ := agv.IsRejected(err)
	require.Equal(t, agv.ReasonPatrol, reason)

	err = h.d.Acquire("patrol-2")
	reason, _ = agv.IsRejected(err)
	require.Equal(t, agv.ReasonPatrol, reason)

	sink := make(chan Result, 1)
	_, err = h.d.DispatchAs(context.Background(), "patrol-1", grid.Cell(1, 6), sink)
	require.NoError(t, err)
	require.True(t, waitResult(t, sink).OK())

	h.d.Release("patrol-1")
	require.Empty(t, h.d.LeaseHolder())
	_, err = h.d.Dispatch(context.Background(), grid.Cell(1, 7), nil)
	require.NoError(t, err)
}

func TestAcquire_WhileBusy(t *testing.T) {
	h := newHarness([]bool{true}, 0)
	_, err := h.d.Dispatch(context.Background(), grid.Cell(1, 1), nil)
	require.NoError(t, err)

	reason, ok := agv.IsRejected(h.d.Acquire("patrol-1"))
	require.True(t, ok)
	require.Equal(t, agv.ReasonBusy, reason)
	h.d.StopPolling()
}

func TestDispatch_TimeoutFailsWithoutCapture(t *testing.T) {
	h := newHarness([]bool{true}, 30*time.Millisecond)
	sink := make(chan Result, 1)

	_, err := h.d.Dispatch(context.Background(), grid.Cell(2, 9), sink)
	require.NoError(t, err)
	res := waitResult(t, sink)

	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, string(poll.TimedOut), res.Reason)
	require.False(t, res.Edge)
	require.False(t, h.machine.Busy())
	_, _, captures := h.device.counts()
	require.Zero(t, captures)
}

func TestDispatch_StopPolling(t *testing.T) {
	h := newHarness([]bool{true}, 0)
	sink := make(chan Result, 1)
	_, err := h.d.Dispatch(context.Background(), grid.Cell(4, 4), sink)
	require.NoError(t, err)

	require.True(t, h.d.StopPolling())
	res := waitResult(t, sink)
	require.Equal(t, string(poll.Stopped), res.Reason)
	require.False(t, h.machine.Busy())
}

func TestWatch_NoCapture(t *testing.T) {
	h := newHarness([]bool{true, false}, 0)
	sink := make(chan Result, 1)

	_, err := h.d.Watch(sink)
	require.NoError(t, err)
	res := waitResult(t, sink)

	require.Equal(t, KindWatch, res.Kind)
	require.True(t, res.Edge)
	require.False(t, res.Captured)
	require.False(t, h.machine.Busy())
	_, _, captures := h.device.counts()
	require.Zero(t, captures)
}

type stuckPoller struct{}

func (stuckPoller) Start(poll.Predicate, func(poll.Outcome)) bool { return false }
func (stuckPoller) Stop() bool                                    { return false }
func (stuckPoller) Active() bool                                  { return true }

func TestDispatch_PollerAlreadyActive(t *testing.T) {
	device := &mockDevice{}
	machine := busystate.NewMachine(nil)
	d := NewDispatcher(device, machine, stuckPoller{}, nil, 7, 10)
	sink := make(chan Result, 1)

	_, err := d.Dispatch(context.Background(), grid.Cell(1, 1), sink)
	reason, ok := agv.IsRejected(err)
	require.True(t, ok)
	require.Equal(t, agv.ReasonPoll, reason)
	require.False(t, machine.Busy())

	res := waitResult(t, sink)
	require.Equal(t, StatusFailed, res.Status)
}
