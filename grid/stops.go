package grid

import (
	"fmt"
	"math"
)

// DefaultStopsCM is the y -> track position table, index y-1, in centimetres.
var DefaultStopsCM = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// StopTable maps grid rows to physical track positions.
type StopTable []float64

// Centimetres returns the configured stop for row y.
func (t StopTable) Centimetres(y int) (float64, error) {
	if y < 1 || y > len(t) {
		return 0, fmt.Errorf("y=%d not mapped", y)
	}
	return t[y-1], nil
}

// Units converts row y to device units of 0.01 mm.
func (t StopTable) Units(y int) (int, error) {
	cm, err := t.Centimetres(y)
	if err != nil {
		return 0, err
	}
	return CMToUnits(cm), nil
}

// CMToUnits converts centimetres to 0.01 mm units (1 cm = 1000 units).
func CMToUnits(cm float64) int {
	return int(math.Round(cm * 1000.0))
}
