// Agent spawning: creates the initial population around population centroids.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/pumpsim/internal/world"
)

// maxPlacementTries bounds the search for a home on land around a centroid.
const maxPlacementTries = 100

// SpawnConfig controls initial population generation.
type SpawnConfig struct {
	PerCentroid int              // Humans per population centroid
	Spread      float64          // Std dev of home offsets from the centroid, metres
	Speed       float64          // Metres per tick
	Movement    MovementStrategy // Navigation for every spawned human
	Stress      StressLevels
}

// Landmass reports whether a point is land a home can stand on.
type Landmass interface {
	Contains(p world.Point) bool
}

// Spawner creates humans for the simulation.
type Spawner struct {
	rng    *rand.Rand
	cfg    SpawnConfig
	nextID AgentID
}

// NewSpawner creates a spawner drawing from rng. Labels are UUIDs read from
// the same stream, so a seed reproduces them.
func NewSpawner(rng *rand.Rand, cfg SpawnConfig) *Spawner {
	if cfg.Movement == nil {
		cfg.Movement = PathFollower{}
	}
	return &Spawner{rng: rng, cfg: cfg, nextID: 1}
}

// SetNextID sets the next agent ID to be issued.
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// SpawnAround places cfg.PerCentroid humans with Gaussian offsets from centre,
// keeping only homes on land. Offsets that land in water are redrawn; a home
// that cannot be placed is skipped.
func (s *Spawner) SpawnAround(land Landmass, centre world.Point) []*Human {
	out := make([]*Human, 0, s.cfg.PerCentroid)
	for i := 0; i < s.cfg.PerCentroid; i++ {
		home, ok := s.placeHome(land, centre)
		if !ok {
			continue
		}
		h, err := s.Spawn(home)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Spawn creates one sleeping human at home.
func (s *Spawner) Spawn(home world.Point) (*Human, error) {
	label, err := uuid.NewRandomFromReader(s.rng)
	if err != nil {
		return nil, fmt.Errorf("agent label: %w", err)
	}
	id := s.nextID
	s.nextID++
	return NewHuman(id, label.String(), home, s.cfg.Speed, s.cfg.Movement, s.cfg.Stress), nil
}

func (s *Spawner) placeHome(land Landmass, centre world.Point) (world.Point, bool) {
	for try := 0; try < maxPlacementTries; try++ {
		p := centre.Offset(s.rng.NormFloat64()*s.cfg.Spread, s.rng.NormFloat64()*s.cfg.Spread)
		if land.Contains(p) {
			return p, true
		}
	}
	return world.Point{}, false
}
