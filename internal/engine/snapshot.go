package engine

import (
	"sort"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

// snapshotEvents is how many recent events a snapshot carries.
const snapshotEvents = 200

// HumanView is a read-only copy of one human.
type HumanView struct {
	ID       agents.AgentID      `json:"id"`
	Label    string              `json:"label"`
	Position world.Point         `json:"position"`
	Home     world.Point         `json:"home"`
	Activity agents.Activity     `json:"activity"`
	Stress   float64             `json:"stress"`
	Diseases []DiseaseView       `json:"diseases"`
	Treated  int                 `json:"treated"`
	Alive    bool                `json:"alive"`
	Removed  bool                `json:"removed"`
	Cause    agents.RemovalCause `json:"cause"`
	Chart    []agents.ChartEntry `json:"chart,omitempty"`
}

// DiseaseView is a read-only copy of one infection.
type DiseaseView struct {
	Name        string        `json:"name"`
	Stage       string        `json:"stage"`
	TimeInStage schedule.Tick `json:"time_in_stage"`
	Infected    schedule.Tick `json:"infected_at"`
}

// Snapshot is an immutable copy of the world, published by the driver for
// readers on other goroutines.
type Snapshot struct {
	Tick       schedule.Tick `json:"tick"`
	Time       string        `json:"time"`
	Seed       int64         `json:"seed"`
	Executed   uint64        `json:"executed"`
	Rejected   uint64        `json:"rejected"`
	Pending    int           `json:"pending"`
	Stats      Stats         `json:"stats"`
	Census     DailyStats    `json:"census"`
	Humans     []HumanView   `json:"-"`
	Events     []Event       `json:"-"`
	History    []DailyStats  `json:"-"`
	Facilities []world.Point `json:"facilities"`
}

// ViewOf copies h.
func ViewOf(h *agents.Human) HumanView {
	v := HumanView{
		ID:       h.ID,
		Label:    h.Label,
		Position: h.Position,
		Home:     h.Home,
		Activity: h.Activity,
		Stress:   h.Stress,
		Treated:  h.Treated,
		Alive:    h.Alive,
		Removed:  h.Removed,
		Cause:    h.Cause,
		Chart:    append([]agents.ChartEntry(nil), h.Chart...),
		Diseases: make([]DiseaseView, 0, len(h.Diseases)),
	}
	for _, d := range h.Diseases {
		v.Diseases = append(v.Diseases, DiseaseView{
			Name:        d.Name(),
			Stage:       d.Stage.String(),
			TimeInStage: d.TimeInStage,
			Infected:    d.Infected,
		})
	}
	sort.Slice(v.Diseases, func(i, j int) bool { return v.Diseases[i].Name < v.Diseases[j].Name })
	return v
}

// Publish copies the current state into a new snapshot.
func (s *Simulation) Publish() {
	now := s.Now()
	snap := &Snapshot{
		Tick:       now,
		Time:       schedule.SimTime(now),
		Seed:       s.Rand.Seed(),
		Executed:   s.Sched.Executed(),
		Rejected:   s.Sched.Rejected(),
		Pending:    s.Sched.Pending(),
		Stats:      s.Stats,
		Census:     s.Census(),
		Humans:     make([]HumanView, 0, len(s.humans)),
		History:    append([]DailyStats(nil), s.History...),
		Facilities: append([]world.Point(nil), s.Landscape.Facilities...),
	}
	for _, h := range s.humans {
		snap.Humans = append(snap.Humans, ViewOf(h))
	}
	start := 0
	if len(s.Events) > snapshotEvents {
		start = len(s.Events) - snapshotEvents
	}
	snap.Events = append([]Event(nil), s.Events[start:]...)

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// Snapshot returns the last published snapshot, or nil before the first Publish.
func (s *Simulation) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}
