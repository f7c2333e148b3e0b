package engine

import (
	"fmt"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/disease"
	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

var (
	_ agents.Env  = (*Simulation)(nil)
	_ disease.Env = (*Simulation)(nil)
)

// Now returns the current simulation tick.
func (s *Simulation) Now() schedule.Tick { return s.Sched.Now() }

// Float draws a uniform value from the shared stream.
func (s *Simulation) Float() float64 { return s.Rand.Float() }

// Intn draws a uniform int in [0, n) from the shared stream.
func (s *Simulation) Intn(n int) int { return s.Rand.Intn(n) }

// NormFloat64 draws a standard normal value from the shared stream.
func (s *Simulation) NormFloat64() float64 { return s.Rand.NormFloat64() }

// Behavior returns the activity constants.
func (s *Simulation) Behavior() *agents.Behavior { return &s.behavior }

// Land returns the landscape.
func (s *Simulation) Land() agents.Land { return s.Landscape }

// Planner returns the path planner.
func (s *Simulation) Planner() world.Planner { return s.planner }

// Population returns the number of live humans.
func (s *Simulation) Population() int { return len(s.live) }

// HomeOf returns the home of the i-th live human.
func (s *Simulation) HomeOf(i int) world.Point { return s.live[i].Home }

// Relocated re-indexes h after it moved.
func (s *Simulation) Relocated(h *agents.Human) {
	if h.Removed {
		return
	}
	s.grid.Move(uint64(h.ID), h.Position)
}

// Note counts a check-in diagnostic.
func (s *Simulation) Note(h *agents.Human, d agents.Diagnostic) {
	now := s.Now()
	switch d {
	case agents.DiagNoPath:
		s.Stats.NoPath++
	case agents.DiagStuck:
		s.Stats.Stuck++
		s.logEvent(now, "stuck", fmt.Sprintf("agent %d parked at %v", h.ID, h.Position))
	case agents.DiagDuplicate:
		s.Stats.Duplicates++
	case agents.DiagUnhandled:
		s.Stats.Unhandled++
	case agents.DiagSeekCare:
		s.Stats.SeekCare++
	case agents.DiagTreated:
		s.Stats.Treatments++
		s.logEvent(now, "treatment", fmt.Sprintf("agent %d treated", h.ID))
	}
}

// Host returns the live human with id as a disease host.
func (s *Simulation) Host(id uint64) (disease.Host, bool) {
	h := s.Human(agents.AgentID(id))
	if h == nil || h.Removed || !h.Alive {
		return nil, false
	}
	return h, true
}

// Neighbours returns the live humans within radius of p, in ascending ID order.
func (s *Simulation) Neighbours(p world.Point, radius float64) []disease.Carrier {
	ids := s.grid.Within(p, radius)
	out := make([]disease.Carrier, 0, len(ids))
	for _, id := range ids {
		if h := s.Human(agents.AgentID(id)); h != nil && !h.Removed {
			out = append(out, h)
		}
	}
	return out
}

// Infect attaches d to the target and starts its timer on the next tick.
func (s *Simulation) Infect(target uint64, d *disease.Disease) error {
	h := s.Human(agents.AgentID(target))
	if h == nil {
		return fmt.Errorf("infect %d: no such agent", target)
	}
	now := s.Now()
	if err := h.AcquireDisease(d, now); err != nil {
		return err
	}
	handle, err := s.Sched.ScheduleLabeled(now+1, disease.Priority,
		fmt.Sprintf("disease:%s:%d", d.Name(), h.ID), diseaseAction{sim: s, d: d})
	if err != nil {
		return fmt.Errorf("schedule %s on %d: %w", d.Name(), h.ID, err)
	}
	d.SetHandle(handle)
	s.Stats.Infections++
	s.logEvent(now, "infection", fmt.Sprintf("agent %d infected with %s", h.ID, d.Name()))
	return nil
}

// Recover detaches d from its host and wakes the host on the next tick so it
// picks its routine back up.
func (s *Simulation) Recover(host uint64, d *disease.Disease) {
	h := s.Human(agents.AgentID(host))
	if h == nil || h.Removed {
		return
	}
	now := s.Now()
	h.LoseDisease(d.Name(), now)
	s.Stats.Recoveries++
	s.logEvent(now, "recovery", fmt.Sprintf("agent %d recovered from %s", h.ID, d.Name()))
	if err := s.scheduleHuman(h, now+1, agents.PriorityBase+s.Intn(len(s.live))); err != nil {
		s.logEvent(now, "error", err.Error())
	}
}
