// Package tuning loads scenario parameters from YAML.
package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/disease"
	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

type Tuning struct {
	Seed       int64         `yaml:"seed"` // 0 draws a seed from crypto/rand
	Ticks      schedule.Tick `yaml:"ticks"`
	IntervalMs int           `yaml:"interval_ms"` // Wall time per sim-hour; 0 = unpaced
	Strict     bool          `yaml:"strict"`

	Landscape  Landscape       `yaml:"landscape"`
	Population Population      `yaml:"population"`
	Activity   agents.Behavior `yaml:"activity"`

	Diseases       []disease.Kind `yaml:"diseases"`
	SeedInfections []Outbreak     `yaml:"seed_infections"`

	Storage Storage `yaml:"storage"`
	API     API     `yaml:"api"`
}

type Landscape struct {
	Width       float64 `yaml:"width"`
	Height      float64 `yaml:"height"`
	CellSize    float64 `yaml:"cell_size"`
	Seed        int64   `yaml:"seed"`
	SeaLevel    float64 `yaml:"sea_level"`
	Centroids   int     `yaml:"centroids"`
	Facilities  int     `yaml:"facilities"`
	PlannerStep float64 `yaml:"planner_step"`
	GridCell    float64 `yaml:"grid_cell"`
}

type Population struct {
	PerCentroid int     `yaml:"per_centroid"`
	Spread      float64 `yaml:"spread"`
	Speed       float64 `yaml:"speed"` // Metres per tick
	Movement    string  `yaml:"movement"`
}

// Outbreak names a disease and how many index cases to seed with it.
type Outbreak struct {
	Disease string `yaml:"disease"`
	Cases   int    `yaml:"cases"`
}

type Storage struct {
	DBPath   string `yaml:"db_path"`   // Empty disables the results database
	TraceDir string `yaml:"trace_dir"` // Empty disables the execution trace
}

type API struct {
	Port int `yaml:"port"` // 0 disables the HTTP API
}

// Default returns the standard scenario: one week on the default district
// with a single cholera case.
func Default() Tuning {
	gen := world.DefaultGenConfig()
	return Tuning{
		Seed:  gen.Seed,
		Ticks: schedule.TicksPerWeek,
		Landscape: Landscape{
			Width:       gen.Width,
			Height:      gen.Height,
			CellSize:    gen.CellSize,
			SeaLevel:    gen.SeaLevel,
			Centroids:   gen.Centroids,
			Facilities:  gen.Facilities,
			PlannerStep: 50,
			GridCell:    100,
		},
		Population: Population{
			PerCentroid: 10,
			Spread:      1000,
			Speed:       650,
			Movement:    "path",
		},
		Activity:       agents.DefaultBehavior(),
		Diseases:       []disease.Kind{*disease.Flu(), *disease.Cholera()},
		SeedInfections: []Outbreak{{Disease: "Cholera", Cases: 1}},
		Storage: Storage{
			DBPath:   "data/pumpsim.db",
			TraceDir: "data/trace",
		},
		API: API{Port: 8080},
	}
}

// Load reads path and overlays it on Default. Keys the file omits keep their
// default values; a diseases list replaces the default list.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Validate rejects out-of-range values.
func (t Tuning) Validate() error {
	l, p, a := t.Landscape, t.Population, t.Activity
	switch {
	case t.Ticks < 0:
		return fmt.Errorf("ticks %d is negative", t.Ticks)
	case t.IntervalMs < 0:
		return fmt.Errorf("interval_ms %d is negative", t.IntervalMs)
	case l.Width <= 0 || l.Height <= 0:
		return fmt.Errorf("landscape %vx%v must be positive", l.Width, l.Height)
	case l.CellSize <= 0:
		return fmt.Errorf("landscape cell_size %v must be positive", l.CellSize)
	case l.SeaLevel < 0 || l.SeaLevel >= 1:
		return fmt.Errorf("landscape sea_level %v outside [0,1)", l.SeaLevel)
	case l.Centroids < 1:
		return fmt.Errorf("landscape needs at least one centroid")
	case l.Facilities < 0 || l.Facilities > l.Centroids:
		return fmt.Errorf("landscape facilities %d outside [0,%d]", l.Facilities, l.Centroids)
	case p.PerCentroid < 0 || p.Spread < 0:
		return fmt.Errorf("population per_centroid and spread must not be negative")
	case p.Speed <= 0:
		return fmt.Errorf("population speed %v must be positive", p.Speed)
	case a.DeathProbability < 0 || a.DeathProbability > 1:
		return fmt.Errorf("activity death_probability %v outside [0,1]", a.DeathProbability)
	case a.Resolution <= 0:
		return fmt.Errorf("activity resolution %v must be positive", a.Resolution)
	case a.SickRecheck <= 0 || a.StuckRecheck <= 0 || a.TreatmentDwell <= 0:
		return fmt.Errorf("activity rechecks and dwell must be positive")
	case a.Stress.Acute > agents.MaxStress:
		return fmt.Errorf("activity stress acute %v above %d", a.Stress.Acute, agents.MaxStress)
	case t.API.Port < 0 || t.API.Port > 65535:
		return fmt.Errorf("api port %d out of range", t.API.Port)
	}
	if _, err := agents.MovementByName(p.Movement); err != nil {
		return err
	}

	seen := make(map[string]bool, len(t.Diseases))
	for i := range t.Diseases {
		k := &t.Diseases[i]
		if err := k.Validate(); err != nil {
			return err
		}
		if seen[k.Name] {
			return fmt.Errorf("disease %s listed twice", k.Name)
		}
		seen[k.Name] = true
	}
	for _, o := range t.SeedInfections {
		if !seen[o.Disease] {
			return fmt.Errorf("seed_infections: unknown disease %q", o.Disease)
		}
		if o.Cases < 0 {
			return fmt.Errorf("seed_infections: %s cases %d is negative", o.Disease, o.Cases)
		}
	}
	return nil
}

// GenConfig returns the landscape generation parameters. A zero landscape
// seed follows the run seed.
func (t Tuning) GenConfig(runSeed int64) world.GenConfig {
	seed := t.Landscape.Seed
	if seed == 0 {
		seed = runSeed
	}
	return world.GenConfig{
		Width:      t.Landscape.Width,
		Height:     t.Landscape.Height,
		CellSize:   t.Landscape.CellSize,
		Seed:       seed,
		SeaLevel:   t.Landscape.SeaLevel,
		Centroids:  t.Landscape.Centroids,
		Facilities: t.Landscape.Facilities,
	}
}

// SpawnConfig returns the population parameters.
func (t Tuning) SpawnConfig() (agents.SpawnConfig, error) {
	move, err := agents.MovementByName(t.Population.Movement)
	if err != nil {
		return agents.SpawnConfig{}, err
	}
	return agents.SpawnConfig{
		PerCentroid: t.Population.PerCentroid,
		Spread:      t.Population.Spread,
		Speed:       t.Population.Speed,
		Movement:    move,
		Stress:      t.Activity.Stress,
	}, nil
}

// Kind returns a copy of the named disease, or nil.
func (t Tuning) Kind(name string) *disease.Kind {
	for _, k := range t.Diseases {
		if k.Name == name {
			k := k
			return &k
		}
	}
	return nil
}

// Interval returns the wall time per sim-hour.
func (t Tuning) Interval() time.Duration {
	return time.Duration(t.IntervalMs) * time.Millisecond
}
