// Package agents provides the human data model and its daily activity state
// machine: sleep, travel, work, relax, and seeking care when ill.
package agents

import (
	"github.com/talgya/pumpsim/internal/disease"
	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

// AgentID is a stable arena handle for a human.
type AgentID uint64

// Activity is what a human is currently doing. Exactly one holds at a time.
type Activity uint8

const (
	Sleeping Activity = iota + 1
	Traveling
	Working
	Relaxing
)

func (a Activity) String() string {
	switch a {
	case Sleeping:
		return "sleeping"
	case Traveling:
		return "traveling"
	case Working:
		return "working"
	case Relaxing:
		return "relaxing"
	default:
		return "unknown"
	}
}

// MarshalText renders the activity by name in JSON.
func (a Activity) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// RemovalCause records why a human left the simulation.
type RemovalCause uint8

const (
	Active RemovalCause = iota
	Died
	Departed
)

func (c RemovalCause) String() string {
	switch c {
	case Died:
		return "died"
	case Departed:
		return "departed"
	default:
		return "active"
	}
}

// MarshalText renders the cause by name in JSON.
func (c RemovalCause) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Human is one simulated person.
type Human struct {
	ID    AgentID `json:"id"`
	Label string  `json:"label"`

	// Location
	Position world.Point  `json:"position"`
	Home     world.Point  `json:"home"`
	Target   *world.Point `json:"target,omitempty"` // Set iff Traveling
	Path     world.Path   `json:"-"`
	Speed    float64      `json:"speed"` // Metres per tick

	// State
	Activity Activity                    `json:"activity"`
	Stress   float64                     `json:"stress"` // 0-10
	Diseases map[string]*disease.Disease `json:"-"`
	Treated  int                         `json:"treated"`
	Stuck    bool                        `json:"stuck,omitempty"`

	// Lifecycle
	Alive   bool         `json:"alive"`
	Removed bool         `json:"removed"`
	Cause   RemovalCause `json:"cause"`

	// Medical chart
	Chart []ChartEntry `json:"chart,omitempty"`

	move          MovementStrategy
	levels        StressLevels
	checkIn       *schedule.Handle
	lastProcessed schedule.Tick
	pathFailures  int
}

// NewHuman creates a sleeping human at home. Most callers go through Spawner.
func NewHuman(id AgentID, label string, home world.Point, speed float64, move MovementStrategy, levels StressLevels) *Human {
	if move == nil {
		move = PathFollower{}
	}
	return &Human{
		ID:            id,
		Label:         label,
		Position:      home,
		Home:          home,
		Speed:         speed,
		Activity:      Sleeping,
		Diseases:      make(map[string]*disease.Disease),
		Alive:         true,
		move:          move,
		levels:        levels,
		lastProcessed: -1,
	}
}

// HostID implements disease.Carrier.
func (h *Human) HostID() uint64 { return uint64(h.ID) }

// Location implements disease.Carrier.
func (h *Human) Location() world.Point { return h.Position }

// InfectedWith reports whether the human hosts a disease of that name.
func (h *Human) InfectedWith(name string) bool {
	_, ok := h.Diseases[name]
	return ok
}

// Sick reports whether the human hosts any disease.
func (h *Human) Sick() bool { return len(h.Diseases) > 0 }

// Movement returns the human's navigation strategy.
func (h *Human) Movement() MovementStrategy { return h.move }

// CheckIn returns the handle of the human's activity chain.
func (h *Human) CheckIn() *schedule.Handle { return h.checkIn }

// SetCheckIn records a new activity chain handle.
func (h *Human) SetCheckIn(handle *schedule.Handle) { h.checkIn = handle }

// LastProcessed returns the last tick the human ran its state machine.
func (h *Human) LastProcessed() schedule.Tick { return h.lastProcessed }

var _ disease.Host = (*Human)(nil)
