package grid

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Coordinate identifies one cell of the addressable grid, or HOME. Cells
// are 1-based on both axes; the zero value is the invalid cell (0,0), never
// HOME.
type Coordinate struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	home bool
}

// Home is the device's home position. Cell cannot produce it.
var Home = Coordinate{home: true}

// Cell builds a grid coordinate.
func Cell(x, y int) Coordinate {
	return Coordinate{X: x, Y: y}
}

func (c Coordinate) IsHome() bool {
	return c.home
}

// Equal reports whether c and o name the same position.
func (c Coordinate) Equal(o Coordinate) bool {
	return c == o
}

func (c Coordinate) String() string {
	if c.IsHome() {
		return "home"
	}
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Validate checks c against a cols x rows grid. HOME is always valid.
func (c Coordinate) Validate(cols, rows int) error {
	if c.IsHome() {
		return nil
	}
	if c.X < 1 || c.X > cols {
		return fmt.Errorf("invalid x=%d (expected 1..%d)", c.X, cols)
	}
	if c.Y < 1 || c.Y > rows {
		return fmt.Errorf("invalid y=%d (expected 1..%d)", c.Y, rows)
	}
	return nil
}

// MarshalJSON encodes HOME as the string "home" and cells as {"x":..,"y":..}.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if c.IsHome() {
		return []byte(`"home"`), nil
	}
	return json.Marshal(struct {
		X int `json:"x"`
		Y int `json:"y"`
	}{c.X, c.Y})
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.EqualFold(s, "home") {
			*c = Home
			return nil
		}
		return fmt.Errorf("grid: unknown coordinate %q", s)
	}
	var raw struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("grid: decode coordinate: %w", err)
	}
	*c = Cell(raw.X, raw.Y)
	return nil
}
