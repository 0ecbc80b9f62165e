package www

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gridpatrol/agv"
	"gridpatrol/config"
	"gridpatrol/engine"
	"gridpatrol/grid"
	"gridpatrol/store"
)

// slowDevice reports busy until released.
type slowDevice struct {
	mu       sync.Mutex
	busy     bool
	captures int
}

func (d *slowDevice) Click(ctx context.Context, x, y int) (*agv.ClickAck, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = true
	return &agv.ClickAck{OK: true, X: x, Y: y}, nil
}

func (d *slowDevice) Home(ctx context.Context) (*agv.Ack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = true
	return &agv.Ack{OK: true}, nil
}

func (d *slowDevice) Capture(ctx context.Context, target grid.Coordinate) (*agv.CaptureResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captures++
	return &agv.CaptureResult{OK: true, Filename: "img.jpg"}, nil
}

func (d *slowDevice) FetchStatus(ctx context.Context) (agv.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return agv.Snapshot{Busy: d.busy, At: time.Now()}, nil
}

func (d *slowDevice) release() {
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()
}

type testServer struct {
	srv    *httptest.Server
	client *http.Client
	eng    *engine.Engine
	dev    *slowDevice
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Defaults()
	cfg.Device.PollInterval = 5 * time.Millisecond
	cfg.Indicator.DispatchAnimation = 0

	db, err := store.Open(&config.DatabaseConfig{Driver: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "www.db")}})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dev := &slowDevice{}
	eng := engine.New(engine.Config{AppConfig: cfg, DB: db, Device: dev})
	eng.Start()
	t.Cleanup(eng.Stop)

	handler, stop := NewRouter(eng)
	t.Cleanup(stop)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testServer{srv: srv, client: &http.Client{Jar: jar}, eng: eng, dev: dev}
}

func (ts *testServer) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := ts.client.Post(ts.srv.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (ts *testServer) login(t *testing.T) {
	t.Helper()
	resp, _ := ts.post(t, "/api/login", loginRequest{Username: "admin", Password: "admin"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestControlRequiresLogin(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.post(t, "/api/move", moveRequest{X: 1, Y: 1})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.post(t, "/api/login", loginRequest{Username: "admin", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMoveLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	resp, body := ts.post(t, "/api/move", moveRequest{X: 2, Y: 4})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id, _ := body["command_id"].(string)
	require.NotEmpty(t, id)

	// A second request while busy is refused without reaching the device.
	resp, body = ts.post(t, "/api/move", moveRequest{X: 3, Y: 4})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, agv.ReasonBusy, body["reason"])

	resp, body = ts.post(t, "/api/home", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	ts.dev.release()
	require.Eventually(t, func() bool {
		return !ts.eng.Machine().Busy()
	}, 2*time.Second, 5*time.Millisecond)

	get, err := ts.client.Get(ts.srv.URL + "/api/status")
	require.NoError(t, err)
	defer get.Body.Close()
	var st engine.Status
	require.NoError(t, json.NewDecoder(get.Body).Decode(&st))
	require.False(t, st.Busy)
	require.True(t, st.AffordancesEnabled)

	require.Eventually(t, func() bool {
		c, err := ts.eng.DB().GetCommand(id)
		return err == nil && c.Captured
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMoveInvalidTarget(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	resp, body := ts.post(t, "/api/move", moveRequest{X: 0, Y: 4})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, agv.ReasonInvalid, body["reason"])

	resp, _ = ts.post(t, "/api/move", moveRequest{X: 8, Y: 1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	// Missing or zero coordinates never alias HOME.
	for _, body := range []any{map[string]int{}, moveRequest{}} {
		resp, out := ts.post(t, "/api/move", body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, agv.ReasonInvalid, out["reason"])
	}
	require.False(t, ts.eng.Machine().Busy())
}

func TestListCommands(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)
	ts.post(t, "/api/move", moveRequest{X: 99, Y: 99})

	resp, err := ts.client.Get(ts.srv.URL + "/api/commands?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cmds []store.Command
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cmds))
	require.Len(t, cmds, 1)
	require.Equal(t, "rejected", cmds[0].Status)
}

func TestPatrolEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	resp, body := ts.post(t, "/api/patrol", patrolRequest{Rounds: 0})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = ts.post(t, "/api/patrol", patrolRequest{Rounds: 1})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, body["patrol_id"])

	resp, body = ts.post(t, "/api/move", moveRequest{X: 1, Y: 1})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, agv.ReasonPatrol, body["reason"])

	resp, body = ts.post(t, "/api/patrol/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["stopped"])

	ts.eng.Sequencer().Wait()
	require.False(t, ts.eng.Sequencer().Running())
}
