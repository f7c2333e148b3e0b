// Population setup: homes around centroids and the index cases of an outbreak.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/disease"
)

// Populate spawns humans around every centroid of the landscape and adds
// them to the world. It returns the number added.
func (s *Simulation) Populate(sp *agents.Spawner) (int, error) {
	sp.SetNextID(agents.AgentID(len(s.humans) + 1))
	added := 0
	for _, c := range s.Landscape.Centroids {
		for _, h := range sp.SpawnAround(s.Landscape, c.Position) {
			if err := s.AddHuman(h); err != nil {
				return added, fmt.Errorf("populate %s: %w", c.Name, err)
			}
			added++
		}
		slog.Debug("centroid populated", "centroid", c.Name, "population", len(s.live))
	}
	slog.Info("population spawned", "humans", added, "centroids", len(s.Landscape.Centroids))
	return added, nil
}

// SeedInfections infects n distinct live humans, chosen from the shared
// stream, with fresh instances of kind. It returns the IDs infected.
func (s *Simulation) SeedInfections(kind *disease.Kind, n int) ([]agents.AgentID, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if n > len(s.live) {
		n = len(s.live)
	}
	order := make([]*agents.Human, len(s.live))
	copy(order, s.live)
	s.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	ids := make([]agents.AgentID, 0, n)
	for _, h := range order {
		if len(ids) == n {
			break
		}
		if h.InfectedWith(kind.Name) {
			continue
		}
		if err := s.InfectWith(h.ID, kind); err != nil {
			return ids, fmt.Errorf("seed %s: %w", kind.Name, err)
		}
		ids = append(ids, h.ID)
	}
	slog.Info("outbreak seeded", "disease", kind.Name, "cases", len(ids))
	return ids, nil
}
