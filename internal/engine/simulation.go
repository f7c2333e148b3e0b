// Simulation is the world every handler runs against: the scheduler, the
// random stream, the landscape, the human arena and the spatial index.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/disease"
	"github.com/talgya/pumpsim/internal/entropy"
	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

// MaxEvents bounds the in-memory event log.
const MaxEvents = 1000

// Options configures a Simulation.
type Options struct {
	Behavior    agents.Behavior
	PlannerStep float64 // Waypoint spacing for the default planner, metres
	GridCell    float64 // Spatial index bucket size, metres
	Strict      bool    // Panic on unhandled activity states instead of parking
}

// Event is a notable occurrence in the world.
type Event struct {
	Seq         uint64        `json:"seq" db:"seq"`
	Tick        schedule.Tick `json:"tick" db:"tick"`
	Description string        `json:"description" db:"description"`
	Category    string        `json:"category" db:"category"` // "infection", "recovery", "death", "departure", etc.
}

// Simulation holds the complete world state. All mutation happens on the
// goroutine driving Sched; the API only sees published snapshots.
type Simulation struct {
	Sched     *schedule.Scheduler
	Rand      *entropy.Source
	Landscape *world.Landscape
	Kinds     map[string]*disease.Kind

	Events  []Event
	Stats   Stats
	History []DailyStats

	// OnDay is called after each daily report.
	OnDay func(DailyStats)

	planner  world.Planner
	behavior agents.Behavior
	strict   bool

	humans  []*agents.Human // arena: ID n lives at index n-1
	live    []*agents.Human // ascending ID order
	grid    *world.Grid
	pending []*agents.Human // removals awaiting flush
	report  *schedule.Handle
	seq     uint64 // last event sequence number

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewSimulation creates an empty world on land, drawing from rng.
func NewSimulation(land *world.Landscape, rng *entropy.Source, opts Options) *Simulation {
	if opts.GridCell <= 0 {
		opts.GridCell = 100
	}
	s := &Simulation{
		Sched:     schedule.New(),
		Rand:      rng,
		Landscape: land,
		Kinds:     make(map[string]*disease.Kind),
		planner:   world.NewDirectPlanner(land, opts.PlannerStep),
		behavior:  opts.Behavior,
		strict:    opts.Strict,
		grid:      world.NewGrid(opts.GridCell),
	}
	s.startDailyReport()
	return s
}

// SetPlanner replaces the path planner.
func (s *Simulation) SetPlanner(p world.Planner) { s.planner = p }

// ── Arena ──────────────────────────────────────────────────────────────

// AddHuman registers h, indexes it and schedules its first check-in at
// the next morning wake-up. h.ID must be the next arena slot.
func (s *Simulation) AddHuman(h *agents.Human) error {
	if int(h.ID) != len(s.humans)+1 {
		return fmt.Errorf("add human %d: expected id %d", h.ID, len(s.humans)+1)
	}
	s.humans = append(s.humans, h)
	s.live = append(s.live, h)
	s.grid.Insert(uint64(h.ID), h.Position)

	now := s.Now()
	wake := schedule.NextClock(now, 7, 0) + 6 - schedule.Tick(s.Intn(13))
	if wake < now {
		wake = now
	}
	return s.scheduleHuman(h, wake, agents.PriorityBase+s.Intn(len(s.live)))
}

// Human returns the human with id, removed or not.
func (s *Simulation) Human(id agents.AgentID) *agents.Human {
	if id == 0 || int(id) > len(s.humans) {
		return nil
	}
	return s.humans[id-1]
}

// Humans returns the arena, in ID order.
func (s *Simulation) Humans() []*agents.Human { return s.humans }

// Live returns the humans still in the simulation, in ID order.
func (s *Simulation) Live() []*agents.Human { return s.live }

// InfectWith attaches a fresh instance of kind to the human with id. Used to
// seed an outbreak; transmission goes through the same path.
func (s *Simulation) InfectWith(id agents.AgentID, kind *disease.Kind) error {
	s.Kinds[kind.Name] = kind
	return s.Infect(uint64(id), kind.New())
}

func (s *Simulation) scheduleHuman(h *agents.Human, at schedule.Tick, priority int) error {
	s.Sched.Cancel(h.CheckIn())
	handle, err := s.Sched.ScheduleLabeled(at, priority, fmt.Sprintf("human:%d", h.ID), humanAction{sim: s, h: h})
	if err != nil {
		return fmt.Errorf("schedule human %d: %w", h.ID, err)
	}
	h.SetCheckIn(handle)
	return nil
}

// humanAction adapts a human's check-in to the scheduler.
type humanAction struct {
	sim *Simulation
	h   *agents.Human
}

func (a humanAction) Step(now schedule.Tick) schedule.Next {
	next, err := a.h.Step(a.sim)
	if err != nil {
		if a.sim.strict {
			panic(err)
		}
		slog.Error("check-in failed", "agent", a.h.ID, "tick", now, "error", err)
	}
	a.sim.flushRemovals()
	return next
}

// diseaseAction adapts a disease timer to the scheduler.
type diseaseAction struct {
	sim *Simulation
	d   *disease.Disease
}

func (a diseaseAction) Step(schedule.Tick) schedule.Next {
	next := a.d.Step(a.sim)
	a.sim.flushRemovals()
	return next
}

// ── Removal ────────────────────────────────────────────────────────────

// Remove marks h as gone and queues it. The spatial index, live list and
// timers are cleaned up once the running handler returns.
func (s *Simulation) Remove(h *agents.Human, cause agents.RemovalCause) {
	if h.Removed {
		return
	}
	h.Removed = true
	h.Cause = cause
	now := s.Now()

	switch cause {
	case agents.Died:
		h.Alive = false
		s.Stats.Deaths++
		s.logEvent(now, "death", fmt.Sprintf("agent %d died in care", h.ID))
	case agents.Departed:
		s.Stats.Departures++
		s.logEvent(now, "departure", fmt.Sprintf("agent %d left the district at %v", h.ID, h.Position))
	}
	s.pending = append(s.pending, h)
}

func (s *Simulation) flushRemovals() {
	if len(s.pending) == 0 {
		return
	}
	for _, h := range s.pending {
		s.Sched.Cancel(h.CheckIn())
		for name, d := range h.Diseases {
			s.Sched.Cancel(d.Handle())
			delete(h.Diseases, name)
		}
		s.grid.Remove(uint64(h.ID))
		for i, l := range s.live {
			if l == h {
				s.live = append(s.live[:i], s.live[i+1:]...)
				break
			}
		}
	}
	s.pending = s.pending[:0]
}

// ── Events ─────────────────────────────────────────────────────────────

func (s *Simulation) logEvent(tick schedule.Tick, category, description string) {
	s.seq++
	s.Events = append(s.Events, Event{Seq: s.seq, Tick: tick, Description: description, Category: category})
}

// trimEvents keeps the last MaxEvents events.
func (s *Simulation) trimEvents() {
	if len(s.Events) > MaxEvents {
		s.Events = append([]Event(nil), s.Events[len(s.Events)-MaxEvents:]...)
	}
}
