// Package world provides the landscape, spatial index and path planning the
// agents move through. Coordinates are planar, in metres.
package world

import (
	"fmt"
	"math"
)

// Point is a position on the landscape.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Toward returns the point reached by moving at most step units from p toward q.
// It returns q when q is within step.
func (p Point) Toward(q Point, step float64) Point {
	d := p.Distance(q)
	if d <= step || d == 0 {
		return q
	}
	f := step / d
	return Point{X: p.X + (q.X-p.X)*f, Y: p.Y + (q.Y-p.Y)*f}
}

// Offset returns p shifted by (dx, dy).
func (p Point) Offset(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

func (p Point) String() string {
	return fmt.Sprintf("(%.0f, %.0f)", p.X, p.Y)
}
