package stmpe610

import "fmt"

// Point is one decoded touch sample: 12-bit X and Y, 8-bit pressure Z.
// Points are plain values and compare with ==.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// NewPoint creates a new Point instance.
func NewPoint(x, y, z int) Point {
	return Point{X: x, Y: y, Z: z}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}
