package grid

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSnakeWaypoints(t *testing.T) {
	got := SnakeWaypoints(5, 6, 9)
	if len(got) != 20 {
		t.Fatalf("len = %d, want 20", len(got))
	}
	want := []Coordinate{
		Cell(1, 6), Cell(1, 7), Cell(1, 8), Cell(1, 9),
		Cell(2, 9), Cell(2, 8), Cell(2, 7), Cell(2, 6),
		Cell(3, 6), Cell(3, 7), Cell(3, 8), Cell(3, 9),
		Cell(4, 9), Cell(4, 8), Cell(4, 7), Cell(4, 6),
		Cell(5, 6), Cell(5, 7), Cell(5, 8), Cell(5, 9),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("waypoints mismatch (-want +got):\n%s", diff)
	}
}

func TestSnakeWaypoints_Empty(t *testing.T) {
	if got := SnakeWaypoints(0, 6, 9); got != nil {
		t.Errorf("x_max=0: got %v, want nil", got)
	}
	if got := SnakeWaypoints(3, 9, 6); got != nil {
		t.Errorf("startY>yMax: got %v, want nil", got)
	}
}

func TestNewPlan(t *testing.T) {
	p, err := NewPlan(3, 5, 6, 9)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if p.PerRound() != 20 {
		t.Errorf("PerRound = %d, want 20", p.PerRound())
	}
	if p.Steps() != 60 {
		t.Errorf("Steps = %d, want 60", p.Steps())
	}
	round, c := p.Step(0)
	if round != 1 || c != Cell(1, 6) {
		t.Errorf("Step(0) = %d %v, want 1 (1,6)", round, c)
	}
	round, c = p.Step(20)
	if round != 2 || c != Cell(1, 6) {
		t.Errorf("Step(20) = %d %v, want 2 (1,6)", round, c)
	}
	round, c = p.Step(59)
	if round != 3 || c != Cell(5, 9) {
		t.Errorf("Step(59) = %d %v, want 3 (5,9)", round, c)
	}

	wps := p.Waypoints()
	wps[0] = Cell(7, 7)
	if _, c := p.Step(0); c != Cell(1, 6) {
		t.Error("Waypoints() must return a copy")
	}
}

func TestNewPlan_Invalid(t *testing.T) {
	if _, err := NewPlan(0, 5, 6, 9); err == nil {
		t.Error("expected error for rounds=0")
	}
	if _, err := NewPlan(1, 0, 6, 9); err == nil {
		t.Error("expected error for empty grid")
	}
	if _, err := NewPlan(1, 5, 0, 9); err == nil {
		t.Error("expected error for start y 0")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		c    Coordinate
		ok   bool
		name string
	}{
		{Home, true, "home"},
		{Cell(1, 1), true, "corner"},
		{Cell(7, 10), true, "far corner"},
		{Cell(8, 3), false, "x too large"},
		{Cell(3, 11), false, "y too large"},
		{Cell(0, 3), false, "x zero"},
		{Cell(3, 0), false, "y zero"},
		{Cell(0, 0), false, "origin"},
		{Coordinate{}, false, "zero value"},
	}
	for _, tt := range tests {
		err := tt.c.Validate(7, 10)
		if (err == nil) != tt.ok {
			t.Errorf("%s: Validate(%v) err = %v, want ok=%v", tt.name, tt.c, err, tt.ok)
		}
	}
}

func TestCoordinateJSON(t *testing.T) {
	data, err := json.Marshal(Home)
	if err != nil {
		t.Fatalf("marshal home: %v", err)
	}
	if string(data) != `"home"` {
		t.Errorf("home = %s, want \"home\"", data)
	}
	data, _ = json.Marshal(Cell(7, 3))
	if string(data) != `{"x":7,"y":3}` {
		t.Errorf("cell = %s", data)
	}

	var c Coordinate
	if err := json.Unmarshal([]byte(`"HOME"`), &c); err != nil || !c.IsHome() {
		t.Errorf("unmarshal HOME: %v %v", c, err)
	}
	if err := json.Unmarshal([]byte(`{"x":2,"y":9}`), &c); err != nil || c != Cell(2, 9) {
		t.Errorf("unmarshal cell: %v %v", c, err)
	}
	if err := json.Unmarshal([]byte(`"north"`), &c); err == nil {
		t.Error("expected error for unknown string")
	}
}

func TestStopTable(t *testing.T) {
	st := StopTable(DefaultStopsCM)
	cm, err := st.Centimetres(3)
	if err != nil || cm != 30 {
		t.Errorf("Centimetres(3) = %v %v, want 30", cm, err)
	}
	u, err := st.Units(10)
	if err != nil || u != 100000 {
		t.Errorf("Units(10) = %d %v, want 100000", u, err)
	}
	if _, err := st.Units(11); err == nil {
		t.Error("expected error for unmapped y")
	}
	if CMToUnits(12.345) != 12345 {
		t.Errorf("CMToUnits(12.345) = %d", CMToUnits(12.345))
	}
}

func TestZeroCellIsNotHome(t *testing.T) {
	if Cell(0, 0) == Home || Cell(0, 0).IsHome() {
		t.Fatal("Cell(0,0) must not alias HOME")
	}
	if !Home.Equal(Home) || Home.Equal(Cell(0, 0)) {
		t.Fatal("Equal must tell HOME from (0,0)")
	}
	var c Coordinate
	if c.IsHome() {
		t.Fatal("zero Coordinate must not be HOME")
	}
	if err := json.Unmarshal([]byte(`{}`), &c); err != nil {
		t.Fatalf("unmarshal {}: %v", err)
	}
	if c.IsHome() || c.Validate(7, 10) == nil {
		t.Errorf("{} decoded to %v, want an invalid cell", c)
	}
}
