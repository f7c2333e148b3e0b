package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/pumpsim/internal/world"
)

// MovementStrategy advances a travelling human along its path.
type MovementStrategy interface {
	Navigate(h *Human)
	Name() string
}

// PathFollower walks Speed metres per tick along the waypoints.
type PathFollower struct{}

func (PathFollower) Name() string { return "path" }

// Navigate implements MovementStrategy.
func (PathFollower) Navigate(h *Human) {
	budget := h.Speed
	for budget > 0 && len(h.Path) > 0 {
		next := h.Path[0]
		d := h.Position.Distance(next)
		if d <= budget {
			h.Position = next
			h.Path = h.Path[1:]
			budget -= d
			continue
		}
		h.Position = h.Position.Toward(next, budget)
		budget = 0
	}
}

// Teleporter jumps to the end of the path in a single tick.
type Teleporter struct{}

func (Teleporter) Name() string { return "teleport" }

// Navigate implements MovementStrategy.
func (Teleporter) Navigate(h *Human) {
	if len(h.Path) == 0 {
		return
	}
	h.Position = h.Path[len(h.Path)-1]
	h.Path = nil
}

// MovementByName returns the strategy registered under name.
func MovementByName(name string) (MovementStrategy, error) {
	switch name {
	case "", "path":
		return PathFollower{}, nil
	case "teleport":
		return Teleporter{}, nil
	default:
		return nil, fmt.Errorf("agents: unknown movement %q", name)
	}
}

// headFor sets the human travelling toward goal. Short hops go straight;
// longer trips ask the planner. On failure the previous path is kept.
func (h *Human) headFor(env Env, goal world.Point) error {
	h.Activity = Traveling
	h.Target = &goal
	h.Stuck = false

	if h.Position.Distance(goal) < env.Behavior().WanderThreshold {
		h.Path = world.Path{goal}
		h.pathFailures = 0
		return nil
	}

	path, err := env.Planner().FindPath(h.Position, goal)
	if err != nil {
		return err
	}
	h.Path = path
	h.pathFailures = 0
	return nil
}

// arrived reports whether the human is within resolution of p.
func (h *Human) arrived(env Env, p world.Point) bool {
	return h.Position.Distance(p) <= env.Behavior().Resolution
}

// isRoutingFailure reports whether err is a transient planner failure that a
// later retry may resolve.
func isRoutingFailure(err error) bool {
	return errors.Is(err, world.ErrNoPath)
}
