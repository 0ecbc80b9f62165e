package indicator

import (
	"math"
	"testing"
	"time"

	"gridpatrol/grid"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type mockEmitter struct {
	moves []grid.Coordinate
	trig  []string
}

func (m *mockEmitter) EmitIndicatorMoved(_, _ Position, target grid.Coordinate, _ time.Duration, trigger string) {
	m.moves = append(m.moves, target)
	m.trig = append(m.trig, trigger)
}

func testIndicator(em Emitter) (*Indicator, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ind := New(Config{
		Home:     Position{X: 0, Y: 0},
		Tags:     map[string]int{"LM1": 1, "LM2": 2, "lm3": 3},
		HomeTags: []string{"CP0", "home"},
	}, em)
	ind.now = clock.Now
	return ind, clock
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestLookup(t *testing.T) {
	ind, _ := testIndicator(nil)
	tests := []struct {
		tag  string
		col  int
		isOK bool
	}{
		{"LM1", 1, true},
		{" lm2 ", 2, true},
		{"LM3", 3, true},
		{"CP0", 0, false},
		{"HOME", 0, false},
		{"", 0, false},
		{"AP99", 0, false},
	}
	for _, tt := range tests {
		col, ok := ind.Lookup(tt.tag)
		if col != tt.col || ok != tt.isOK {
			t.Errorf("Lookup(%q) = %d,%v, want %d,%v", tt.tag, col, ok, tt.col, tt.isOK)
		}
	}
}

func TestMoveToAnimates(t *testing.T) {
	em := &mockEmitter{}
	ind, clock := testIndicator(em)

	ind.MoveTo(grid.Cell(4, 8), 2*time.Second, "dispatch")
	st := ind.State()
	if !st.Animating {
		t.Fatal("expected animating")
	}
	if st.Current != (Position{}) {
		t.Errorf("start position = %+v, want home", st.Current)
	}

	clock.Advance(time.Second)
	p := ind.Position()
	if !near(p.X, 2) || !near(p.Y, 4) {
		t.Errorf("midpoint = %+v, want (2,4)", p)
	}

	clock.Advance(500 * time.Millisecond)
	p = ind.Position()
	want := EaseInOutQuad(0.75)
	if !near(p.X, 4*want) {
		t.Errorf("x at 75%% = %v, want %v", p.X, 4*want)
	}

	clock.Advance(time.Second)
	st = ind.State()
	if st.Animating {
		t.Error("animation should be finished")
	}
	if st.Current != (Position{X: 4, Y: 8}) || st.From != grid.Cell(4, 8) {
		t.Errorf("final state = %+v", st)
	}
	if len(em.moves) != 1 || em.trig[0] != "dispatch" {
		t.Errorf("emitted %v %v", em.moves, em.trig)
	}
}

func TestMoveToRetargetsMidAnimation(t *testing.T) {
	ind, clock := testIndicator(nil)
	ind.MoveTo(grid.Cell(2, 2), time.Second, "dispatch")
	clock.Advance(500 * time.Millisecond)
	mid := ind.Position()

	ind.MoveTo(grid.Home, time.Second, "dispatch")
	if got := ind.Position(); got != mid {
		t.Errorf("retarget jumped from %+v to %+v", mid, got)
	}
	clock.Advance(2 * time.Second)
	if got := ind.Position(); got != (Position{}) {
		t.Errorf("final = %+v, want home", got)
	}
}

func TestMoveToTag(t *testing.T) {
	em := &mockEmitter{}
	ind, clock := testIndicator(em)
	ind.MoveTo(grid.Cell(1, 7), time.Second, "patrol")
	clock.Advance(time.Second)

	ind.MoveToTag("LM3", time.Second)
	clock.Advance(time.Second)
	if st := ind.State(); st.To != grid.Cell(3, 7) {
		t.Errorf("tag move target = %s, want (3,7)", st.To)
	}

	ind.MoveToTag("unknown", time.Second)
	clock.Advance(time.Second)
	if st := ind.State(); !st.To.IsHome() {
		t.Errorf("unknown tag target = %s, want home", st.To)
	}
	if em.trig[len(em.trig)-1] != "location" {
		t.Errorf("trigger = %q", em.trig[len(em.trig)-1])
	}
}

func TestPlace(t *testing.T) {
	ind, _ := testIndicator(nil)
	if c := ind.Place("LM2"); c != grid.Cell(2, 1) {
		t.Errorf("Place(LM2) = %s", c)
	}
	if ind.State().Animating {
		t.Error("Place must not animate")
	}
	if c := ind.Place(""); !c.IsHome() {
		t.Errorf("Place(\"\") = %s, want home", c)
	}
}

func TestEaseInOutQuad(t *testing.T) {
	tests := map[float64]float64{-1: 0, 0: 0, 0.25: 0.125, 0.5: 0.5, 0.75: 0.875, 1: 1, 2: 1}
	for in, want := range tests {
		if got := EaseInOutQuad(in); !near(got, want) {
			t.Errorf("EaseInOutQuad(%v) = %v, want %v", in, got, want)
		}
	}
}
