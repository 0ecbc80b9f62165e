package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"gridpatrol/agv"
	"gridpatrol/busystate"
	"gridpatrol/config"
	"gridpatrol/dispatch"
	"gridpatrol/grid"
	"gridpatrol/indicator"
	"gridpatrol/messaging"
	"gridpatrol/patrol"
	"gridpatrol/poll"
	"gridpatrol/statecache"
	"gridpatrol/store"
)

type LogFunc func(format string, args ...any)

// Device is the remote positioning service: its command endpoints and its
// status endpoint.
type Device interface {
	dispatch.Device
	poll.Fetcher
}

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Device     Device // defaults to an agv.Client for AppConfig.Device
	Mirror     *statecache.Mirror
	MsgClient  *messaging.Client
	LogFunc    LogFunc
}

type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	device     Device
	client     *agv.Client
	mirror     *statecache.Mirror
	msgClient  *messaging.Client
	stops      grid.StopTable

	machine    *busystate.Machine
	poller     *poll.Loop
	dispatcher *dispatch.Dispatcher
	sequencer  *patrol.Sequencer
	indicator  *indicator.Indicator

	Events   *EventBus
	logFn    LogFunc
	stopChan chan struct{}

	mu              sync.Mutex
	last            *agv.Snapshot
	lastTag         string
	deviceConnected bool
	msgConnected    bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		device:     c.Device,
		mirror:     c.Mirror,
		msgClient:  c.MsgClient,
		stops:      grid.StopTable(c.AppConfig.Grid.YStopsCM),
		Events:     NewEventBus(),
		logFn:      logFn,
		stopChan:   make(chan struct{}),
	}
	if e.device == nil {
		e.client = agv.NewClient(c.AppConfig.Device.BaseURL, c.AppConfig.Device.Timeout)
		e.device = e.client
	}
	return e
}

// Start builds the dispatch stack and wires event handlers. It does not
// touch the device; call Sync for that.
func (e *Engine) Start() {
	cfg := e.cfg

	e.machine = busystate.NewMachine(&busyEmitter{bus: e.Events})
	e.poller = poll.NewLoop(e.device, &pollEmitter{bus: e.Events}, cfg.Device.PollInterval, cfg.Device.MaxPollDuration)
	e.dispatcher = dispatch.NewDispatcher(e.device, e.machine, e.poller, &dispatchEmitter{bus: e.Events}, cfg.Grid.Cols, cfg.Grid.Rows)
	e.sequencer = patrol.NewSequencer(e.dispatcher, &patrolEmitter{bus: e.Events}, cfg.Patrol.SettleDelay, cfg.Patrol.AbortOnFailure)
	e.indicator = indicator.New(indicatorConfig(cfg), &indicatorEmitter{bus: e.Events})

	e.wireEventHandlers()
	e.closeStaleCommands()

	go e.healthLoop()

	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}
	if e.sequencer != nil {
		e.sequencer.Stop()
	}
	if e.poller != nil {
		e.poller.Stop()
	}
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                    { return e.db }
func (e *Engine) AppConfig() *config.Config        { return e.cfg }
func (e *Engine) ConfigPath() string               { return e.configPath }
func (e *Engine) Machine() *busystate.Machine      { return e.machine }
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }
func (e *Engine) Sequencer() *patrol.Sequencer     { return e.sequencer }
func (e *Engine) Indicator() *indicator.Indicator  { return e.indicator }
func (e *Engine) Mirror() *statecache.Mirror       { return e.mirror }
func (e *Engine) MsgClient() *messaging.Client     { return e.msgClient }
func (e *Engine) Stops() grid.StopTable            { return e.stops }

// Sync reads the device once at startup. The indicator is placed at the
// reported location; if the device is already moving, a watch session
// resolves the busy flag through the normal completion path.
func (e *Engine) Sync(ctx context.Context) (agv.Snapshot, error) {
	snap, err := e.device.FetchStatus(ctx)
	if err != nil {
		e.logFn("engine: initial status: %v", err)
		e.setDeviceConnected(false, err.Error())
		return agv.Snapshot{}, err
	}
	e.setDeviceConnected(true, "device reachable")
	e.recordSnapshot(snap)

	at := e.indicator.Place(snap.LocationTag)
	e.mu.Lock()
	e.lastTag = snap.LocationTag
	e.mu.Unlock()
	e.logFn("engine: device at %q (indicator %s), busy=%v", snap.LocationTag, at, snap.Busy)

	if snap.Busy {
		if _, err := e.dispatcher.Watch(nil); err != nil {
			e.logFn("engine: watch in-progress command: %v", err)
		}
	}
	return snap, nil
}

// Move dispatches target on behalf of source. It implements
// messaging.Controller and backs the control API.
func (e *Engine) Move(ctx context.Context, target grid.Coordinate, source string) (string, error) {
	return e.dispatcher.DispatchFrom(ctx, source, target, nil)
}

// StartPatrol builds a plan from config and starts it.
func (e *Engine) StartPatrol(rounds int, source string) (string, error) {
	pc := e.cfg.Patrol
	plan, err := grid.NewPlan(rounds, pc.XMax, pc.StartY, pc.YMax)
	if err != nil {
		return "", agv.Reject(agv.ReasonInvalid, "%v", err)
	}
	id, err := e.sequencer.Start(plan)
	if err != nil {
		return "", err
	}
	e.logFn("engine: patrol %s started by %s", id, source)
	return id, nil
}

// RunPatrol runs a plan to completion on the calling goroutine.
func (e *Engine) RunPatrol(ctx context.Context, rounds int) (patrol.Report, error) {
	pc := e.cfg.Patrol
	plan, err := grid.NewPlan(rounds, pc.XMax, pc.StartY, pc.YMax)
	if err != nil {
		return patrol.Report{}, agv.Reject(agv.ReasonInvalid, "%v", err)
	}
	return e.sequencer.Run(ctx, plan)
}

func (e *Engine) StopPatrol() bool {
	return e.sequencer.Stop()
}

// Status is the engine view served to the UI layer.
type Status struct {
	State              busystate.State   `json:"state"`
	Busy               bool              `json:"busy"`
	AffordancesEnabled bool              `json:"affordances_enabled"`
	Polling            bool              `json:"polling"`
	DeviceConnected    bool              `json:"device_connected"`
	Snapshot           *agv.Snapshot     `json:"snapshot,omitempty"`
	Command            *dispatch.Command `json:"command,omitempty"`
	Indicator          indicator.State   `json:"indicator"`
	Patrol             *patrol.Progress  `json:"patrol,omitempty"`
	Grid               GridInfo          `json:"grid"`
}

type GridInfo struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

func (e *Engine) Status() Status {
	st := Status{
		State:              e.machine.State(),
		Busy:               e.machine.Busy(),
		AffordancesEnabled: e.machine.AffordancesEnabled(),
		Polling:            e.poller.Active(),
		Indicator:          e.indicator.State(),
		Grid:               GridInfo{Cols: e.cfg.Grid.Cols, Rows: e.cfg.Grid.Rows},
	}
	e.mu.Lock()
	st.DeviceConnected = e.deviceConnected
	if e.last != nil {
		snap := *e.last
		st.Snapshot = &snap
	}
	e.mu.Unlock()
	if cmd, ok := e.dispatcher.Current(); ok {
		st.Command = &cmd
	}
	if p, ok := e.sequencer.Progress(); ok {
		st.Patrol = &p
	}
	return st
}

// Ping fetches status once without touching the busy machine.
func (e *Engine) Ping(ctx context.Context) (agv.Snapshot, error) {
	snap, err := e.device.FetchStatus(ctx)
	if err != nil {
		e.setDeviceConnected(false, err.Error())
		return snap, err
	}
	e.setDeviceConnected(true, "device reachable")
	return snap, nil
}

// ReconfigureDevice applies device config changes live.
func (e *Engine) ReconfigureDevice() {
	if e.client != nil {
		e.client.Reconfigure(e.cfg.Device.BaseURL, e.cfg.Device.Timeout)
	}
	e.dispatcher.SetBounds(e.cfg.Grid.Cols, e.cfg.Grid.Rows)
	e.sequencer.Configure(e.cfg.Patrol.SettleDelay, e.cfg.Patrol.AbortOnFailure)
	e.indicator.Reconfigure(indicatorConfig(e.cfg))
	e.logFn("engine: device reconfigured (%s)", e.cfg.Device.BaseURL)
}

// LastSnapshot returns the most recent status reading.
func (e *Engine) LastSnapshot() (agv.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return agv.Snapshot{}, false
	}
	return *e.last, true
}

func (e *Engine) recordSnapshot(snap agv.Snapshot) {
	e.mu.Lock()
	e.last = &snap
	e.mu.Unlock()
}

func (e *Engine) setDeviceConnected(ok bool, detail string) {
	e.mu.Lock()
	changed := e.deviceConnected != ok
	e.deviceConnected = ok
	e.mu.Unlock()
	if !changed {
		return
	}
	typ := EventDeviceDisconnected
	if ok {
		typ = EventDeviceConnected
	}
	e.Events.Emit(Event{Type: typ, Payload: ConnectionEvent{Detail: detail}})
}

func (e *Engine) checkMessaging() {
	if e.msgClient == nil || !e.msgClient.Enabled() {
		return
	}
	ok := e.msgClient.IsConnected()
	e.mu.Lock()
	changed := e.msgConnected != ok
	e.msgConnected = ok
	e.mu.Unlock()
	if !changed {
		return
	}
	if ok {
		e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: e.msgClient.Backend() + " connected"}})
	} else {
		e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: e.msgClient.Backend() + " disconnected"}})
	}
}

// healthLoop checks the device while nothing is polling. A busy reading
// while READY means something else commanded the device; it is watched
// like any other command.
func (e *Engine) healthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkHealth()
		}
	}
}

func (e *Engine) checkHealth() {
	e.checkMessaging()
	if e.poller.Active() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := e.Ping(ctx)
	if err != nil {
		return
	}
	e.recordSnapshot(snap)
	e.followLocation(snap)
	if snap.Busy && !e.machine.Busy() {
		e.logFn("engine: device busy outside a session, watching")
		if _, err := e.dispatcher.Watch(nil); err != nil {
			e.logFn("engine: watch: %v", err)
		}
	}
}

// followLocation moves the indicator when the device reports a new tag
// and no command of ours is steering it.
func (e *Engine) followLocation(snap agv.Snapshot) {
	if snap.Err != nil || snap.LocationTag == "" {
		return
	}
	e.mu.Lock()
	changed := snap.LocationTag != e.lastTag
	e.lastTag = snap.LocationTag
	e.mu.Unlock()
	if !changed {
		return
	}
	if cmd, ok := e.dispatcher.Current(); ok && cmd.Kind != dispatch.KindWatch {
		return
	}
	e.indicator.MoveToTag(snap.LocationTag, e.cfg.Indicator.LocationAnimation)
}

// closeStaleCommands marks commands left accepted by a previous run.
func (e *Engine) closeStaleCommands() {
	if e.db == nil {
		return
	}
	stale, err := e.db.ListUnresolvedCommands()
	if err != nil {
		e.logFn("engine: list unresolved commands: %v", err)
		return
	}
	for _, c := range stale {
		c.Status = dispatch.StatusFailed
		c.Reason = "abandoned"
		c.Detail = "process restarted before the command resolved"
		if err := e.db.ResolveCommand(c); err != nil {
			e.logFn("engine: close stale command %s: %v", c.ID, err)
			continue
		}
		e.db.AppendAudit("command", c.ID, "abandoned", "accepted", dispatch.StatusFailed, "system")
	}
	if len(stale) > 0 {
		e.logFn("engine: closed %d stale command(s)", len(stale))
	}
}

// describeTarget renders a target with its track position.
func (e *Engine) describeTarget(c grid.Coordinate) string {
	if c.IsHome() {
		return "home"
	}
	cm, err := e.stops.Centimetres(c.Y)
	if err != nil {
		return c.String()
	}
	return fmt.Sprintf("%s y=%.0fcm (%d units)", c, cm, grid.CMToUnits(cm))
}

func indicatorConfig(cfg *config.Config) indicator.Config {
	return indicator.Config{
		Home:     indicator.Position{X: cfg.Indicator.Home.X, Y: cfg.Indicator.Home.Y},
		Tags:     cfg.Indicator.Tags,
		HomeTags: cfg.Indicator.HomeTags,
	}
}
