package world

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPath means no route exists right now. Callers retry later.
	ErrNoPath = errors.New("world: no path")
	// ErrPositionMismatch means the traveller's own position is not a valid
	// point on the landscape.
	ErrPositionMismatch = errors.New("world: start position off the landscape")
	// ErrInvalidDestination means the requested goal is not reachable terrain.
	ErrInvalidDestination = errors.New("world: invalid destination")
)

// Path is an ordered list of waypoints, excluding the start point.
type Path []Point

// Planner finds routes between two points. Implementations must be
// deterministic: the same inputs yield the same path.
type Planner interface {
	FindPath(from, to Point) (Path, error)
}

// DirectPlanner walks the straight line from start to goal, emitting a waypoint
// every Step metres. A line that crosses water has no path.
type DirectPlanner struct {
	Land *Landscape
	Step float64
}

// NewDirectPlanner creates a planner over land with waypoints every step metres.
func NewDirectPlanner(land *Landscape, step float64) *DirectPlanner {
	if step <= 0 {
		step = land.CellSize
	}
	return &DirectPlanner{Land: land, Step: step}
}

// FindPath implements Planner.
func (d *DirectPlanner) FindPath(from, to Point) (Path, error) {
	if !d.Land.Contains(from) {
		return nil, fmt.Errorf("from %v: %w", from, ErrPositionMismatch)
	}
	if !d.Land.Contains(to) {
		return nil, fmt.Errorf("to %v: %w", to, ErrInvalidDestination)
	}

	var path Path
	cur := from
	for cur != to {
		cur = cur.Toward(to, d.Step)
		if !d.Land.Contains(cur) {
			return nil, fmt.Errorf("%v to %v blocked at %v: %w", from, to, cur, ErrNoPath)
		}
		path = append(path, cur)
	}
	return path, nil
}
