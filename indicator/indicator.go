package indicator

import (
	"strings"
	"sync"
	"time"

	"gridpatrol/grid"
)

// Position is a point on the grid in cell units. Fractional values occur
// mid-animation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Emitter receives indicator moves.
type Emitter interface {
	EmitIndicatorMoved(from, to Position, target grid.Coordinate, duration time.Duration, trigger string)
}

// Config is the static lookup from location tags to columns.
type Config struct {
	Home     Position       // where HOME is drawn
	Tags     map[string]int // location tag -> column
	HomeTags []string       // tags that mean HOME
}

// State is a point-in-time view of the indicator.
type State struct {
	Current   Position        `json:"current"`
	Target    Position        `json:"target"`
	From      grid.Coordinate `json:"from"`
	To        grid.Coordinate `json:"to"`
	Animating bool            `json:"animating"`
}

// Indicator tracks where the device is drawn. It is observational only:
// nothing in dispatch or polling waits on it.
type Indicator struct {
	emitter Emitter
	now     func() time.Time

	mu       sync.Mutex
	cfg      Config
	homeTags map[string]bool
	from, to Position
	fromCell grid.Coordinate
	toCell   grid.Coordinate
	start    time.Time
	duration time.Duration
}

// New creates an indicator resting at HOME.
func New(cfg Config, emitter Emitter) *Indicator {
	ind := &Indicator{emitter: emitter, now: time.Now}
	ind.Reconfigure(cfg)
	ind.from, ind.to = cfg.Home, cfg.Home
	ind.fromCell, ind.toCell = grid.Home, grid.Home
	return ind
}

// Reconfigure replaces the tag lookup.
func (i *Indicator) Reconfigure(cfg Config) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cfg = cfg
	i.homeTags = make(map[string]bool, len(cfg.HomeTags))
	for _, t := range cfg.HomeTags {
		i.homeTags[normalizeTag(t)] = true
	}
}

// Lookup maps a location tag to a column. Unknown, empty and home tags
// return ok=false, meaning HOME.
func (i *Indicator) Lookup(tag string) (col int, ok bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lookup(tag)
}

func (i *Indicator) lookup(tag string) (int, bool) {
	key := normalizeTag(tag)
	if key == "" || i.homeTags[key] {
		return 0, false
	}
	for t, col := range i.cfg.Tags {
		if normalizeTag(t) == key {
			return col, true
		}
	}
	return 0, false
}

// PositionOf is where coordinate c is drawn.
func (i *Indicator) PositionOf(c grid.Coordinate) Position {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.positionOf(c)
}

func (i *Indicator) positionOf(c grid.Coordinate) Position {
	if c.IsHome() {
		return i.cfg.Home
	}
	return Position{X: float64(c.X), Y: float64(c.Y)}
}

// MoveTo starts an animation toward c from wherever the indicator is now.
func (i *Indicator) MoveTo(c grid.Coordinate, d time.Duration, trigger string) {
	i.mu.Lock()
	to := i.positionOf(c)
	i.begin(to, c, d)
	from := i.from
	i.mu.Unlock()

	if i.emitter != nil {
		i.emitter.EmitIndicatorMoved(from, to, c, d, trigger)
	}
}

// MoveToTag animates toward the column named by a device location tag.
// The row is kept; unknown tags go HOME.
func (i *Indicator) MoveToTag(tag string, d time.Duration) {
	i.mu.Lock()
	col, ok := i.lookup(tag)
	target := grid.Home
	to := i.cfg.Home
	if ok {
		y := int(i.currentLocked().Y + 0.5)
		if i.toCell.IsHome() || y < 1 {
			y = 1
		}
		target = grid.Cell(col, y)
		to = Position{X: float64(col), Y: float64(y)}
	}
	i.begin(to, target, d)
	from := i.from
	i.mu.Unlock()

	if i.emitter != nil {
		i.emitter.EmitIndicatorMoved(from, to, target, d, "location")
	}
}

// Place jumps to the position for tag without animating. Used once at
// startup from the device's reported location.
func (i *Indicator) Place(tag string) grid.Coordinate {
	i.mu.Lock()
	defer i.mu.Unlock()
	c := grid.Home
	if col, ok := i.lookup(tag); ok {
		c = grid.Cell(col, 1)
	}
	p := i.positionOf(c)
	i.from, i.to = p, p
	i.fromCell, i.toCell = c, c
	i.duration = 0
	return c
}

func (i *Indicator) begin(to Position, c grid.Coordinate, d time.Duration) {
	cur := i.currentLocked()
	i.fromCell = i.settledCellLocked()
	i.from = cur
	i.to = to
	i.toCell = c
	i.start = i.now()
	i.duration = d
}

// Position returns the eased position now.
func (i *Indicator) Position() Position {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.currentLocked()
}

// State returns the current view.
func (i *Indicator) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return State{
		Current:   i.currentLocked(),
		Target:    i.to,
		From:      i.settledCellLocked(),
		To:        i.toCell,
		Animating: i.animatingLocked(),
	}
}

func (i *Indicator) animatingLocked() bool {
	return i.duration > 0 && i.now().Sub(i.start) < i.duration
}

// settledCellLocked is the last cell the indicator fully reached.
func (i *Indicator) settledCellLocked() grid.Coordinate {
	if i.animatingLocked() {
		return i.fromCell
	}
	return i.toCell
}

func (i *Indicator) currentLocked() Position {
	if !i.animatingLocked() {
		return i.to
	}
	t := EaseInOutQuad(float64(i.now().Sub(i.start)) / float64(i.duration))
	return Position{
		X: i.from.X + (i.to.X-i.from.X)*t,
		Y: i.from.Y + (i.to.Y-i.from.Y)*t,
	}
}

// EaseInOutQuad maps t in [0,1] onto a quadratic ease-in-out curve.
func EaseInOutQuad(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	case t < 0.5:
		return 2 * t * t
	default:
		return 1 - (-2*t+2)*(-2*t+2)/2
	}
}

func normalizeTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}
