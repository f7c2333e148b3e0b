package agents

import (
	"fmt"

	"github.com/talgya/pumpsim/internal/disease"
	"github.com/talgya/pumpsim/internal/schedule"
)

// MaxStress is the ceiling of the stress scale.
const MaxStress = 10

// StressLevels maps disease events to stress. Stress is the only signal the
// activity machine reads to decide a human is ill.
type StressLevels struct {
	Acquire    float64 `yaml:"acquire" json:"acquire"`
	Incubating float64 `yaml:"incubating" json:"incubating"`
	Acute      float64 `yaml:"acute" json:"acute"`
	Recovered  float64 `yaml:"recovered" json:"recovered"` // Ceiling after losing a disease
}

// DefaultStress returns the standard levels.
func DefaultStress() StressLevels {
	return StressLevels{Acquire: 1, Incubating: 3, Acute: 7, Recovered: 1}
}

// AcquireDisease attaches d to the human, raising stress to at least the
// acquisition level and then to the level of d's current stage.
func (h *Human) AcquireDisease(d *disease.Disease, now schedule.Tick) error {
	if h.Removed {
		return fmt.Errorf("agent %d: %w", h.ID, ErrRemoved)
	}
	if h.InfectedWith(d.Name()) {
		return fmt.Errorf("agent %d already hosts %s: %w", h.ID, d.Name(), ErrAlreadyInfected)
	}
	if err := d.Attach(h.HostID()); err != nil {
		return err
	}
	d.Infected = now
	h.Diseases[d.Name()] = d
	h.raise(h.levels.Acquire)
	h.record(now, ChartInfected, d.Name(), 0.6)
	h.ChangeStage(d.Name(), d.Stage, now)
	return nil
}

// LoseDisease detaches the named disease and lowers stress to the recovered ceiling.
func (h *Human) LoseDisease(name string, now schedule.Tick) {
	if _, ok := h.Diseases[name]; !ok {
		return
	}
	delete(h.Diseases, name)
	if h.Stress > h.levels.Recovered {
		h.Stress = h.levels.Recovered
	}
	h.record(now, ChartRecovered, name, 0.5)
}

// ChangeStage implements disease.Host.
func (h *Human) ChangeStage(name string, stage disease.Stage, now schedule.Tick) {
	switch stage {
	case disease.Incubating:
		h.raise(h.levels.Incubating)
	case disease.Acute:
		h.raise(h.levels.Acute)
		h.record(now, ChartAcute, name, 0.8)
	case disease.Recovered:
		if h.Stress > h.levels.Recovered {
			h.Stress = h.levels.Recovered
		}
	}
}

// treat is the medical-treatment outcome: stress clears entirely.
func (h *Human) treat(now schedule.Tick) {
	h.Stress = 0
	h.Treated++
	h.record(now, ChartTreated, "", 0.7)
}

func (h *Human) raise(level float64) {
	if level > MaxStress {
		level = MaxStress
	}
	if h.Stress < level {
		h.Stress = level
	}
}
