package grid

import "fmt"

// Plan is an ordered patrol tour repeated Rounds times.
type Plan struct {
	Rounds    int
	waypoints []Coordinate
}

// SnakeWaypoints lists columns 1..xMax in order, visiting rows startY..yMax
// ascending on odd columns and descending on even ones.
func SnakeWaypoints(xMax, startY, yMax int) []Coordinate {
	if xMax < 1 || yMax < startY {
		return nil
	}
	out := make([]Coordinate, 0, xMax*(yMax-startY+1))
	for x := 1; x <= xMax; x++ {
		if x%2 == 1 {
			for y := startY; y <= yMax; y++ {
				out = append(out, Cell(x, y))
			}
		} else {
			for y := yMax; y >= startY; y-- {
				out = append(out, Cell(x, y))
			}
		}
	}
	return out
}

// NewPlan builds a snake-ordered plan of the given number of rounds.
func NewPlan(rounds, xMax, startY, yMax int) (Plan, error) {
	if rounds < 1 {
		return Plan{}, fmt.Errorf("patrol rounds must be >= 1, got %d", rounds)
	}
	if startY < 1 {
		return Plan{}, fmt.Errorf("patrol start y must be >= 1, got %d", startY)
	}
	wps := SnakeWaypoints(xMax, startY, yMax)
	if len(wps) == 0 {
		return Plan{}, fmt.Errorf("patrol grid x_max=%d y=%d..%d has no waypoints", xMax, startY, yMax)
	}
	return Plan{Rounds: rounds, waypoints: wps}, nil
}

// Waypoints returns a copy of one round's waypoints.
func (p Plan) Waypoints() []Coordinate {
	out := make([]Coordinate, len(p.waypoints))
	copy(out, p.waypoints)
	return out
}

// PerRound is the number of waypoints in one round.
func (p Plan) PerRound() int { return len(p.waypoints) }

// Steps is the total number of dispatches the plan issues.
func (p Plan) Steps() int { return p.Rounds * len(p.waypoints) }

// Step returns the 1-based round and the waypoint for global step index i.
func (p Plan) Step(i int) (round int, c Coordinate) {
	n := len(p.waypoints)
	return i/n + 1, p.waypoints[i%n]
}
