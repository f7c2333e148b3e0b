package disease

import (
	"fmt"

	"github.com/talgya/pumpsim/internal/schedule"
)

// Kind holds the constants shared by every instance of one disease.
type Kind struct {
	Name             string        `yaml:"name" json:"name"`
	Transmissibility float64       `yaml:"transmissibility" json:"transmissibility"`
	Radius           float64       `yaml:"radius" json:"radius"`
	IncubationPeriod schedule.Tick `yaml:"incubation_period" json:"incubation_period"`
	DurationPeriod   schedule.Tick `yaml:"duration_period" json:"duration_period"`
	// IncubatingEfficacy scales transmissibility while incubating. Zero keeps
	// incubation silent.
	IncubatingEfficacy float64 `yaml:"incubating_efficacy" json:"incubating_efficacy"`
}

// Flu is the generic airborne disease: silent during incubation.
func Flu() *Kind {
	return &Kind{
		Name:             "flu",
		Transmissibility: 0.3,
		Radius:           30,
		IncubationPeriod: 0,
		DurationPeriod:   1440, // 5 days
	}
}

// Cholera spreads over a wider radius and already sheds while incubating.
func Cholera() *Kind {
	return &Kind{
		Name:               "Cholera",
		Transmissibility:   0.3,
		Radius:             60,
		IncubationPeriod:   334, // ~1.5 days
		DurationPeriod:     576, // 2 days
		IncubatingEfficacy: 0.5,
	}
}

// New creates a fresh, unattached instance. Instances are never shared.
func (k *Kind) New() *Disease {
	return &Disease{Kind: k, Stage: Incubating}
}

// Efficacy returns the stage's multiplier on transmissibility.
func (k *Kind) Efficacy(s Stage) float64 {
	switch s {
	case Incubating:
		return k.IncubatingEfficacy
	case Acute:
		return 1
	default:
		return 0
	}
}

// Probability is the chance that one exposure at stage s infects.
func (k *Kind) Probability(s Stage) float64 {
	return k.Transmissibility * k.Efficacy(s)
}

// Infects decides one exposure. It is pure: the outcome depends only on its
// arguments, with draw being a uniform value in [0, 1).
func (k *Kind) Infects(s Stage, host, target Carrier, draw float64) bool {
	if target.HostID() == host.HostID() {
		return false
	}
	if target.InfectedWith(k.Name) {
		return false
	}
	if host.Location().Distance(target.Location()) > k.Radius {
		return false
	}
	p := k.Probability(s)
	return p > 0 && draw < p
}

// Validate checks the kind's constants.
func (k *Kind) Validate() error {
	switch {
	case k.Name == "":
		return fmt.Errorf("disease: empty name")
	case k.Transmissibility < 0 || k.Transmissibility > 1:
		return fmt.Errorf("disease %s: transmissibility %v outside [0,1]", k.Name, k.Transmissibility)
	case k.IncubatingEfficacy < 0 || k.IncubatingEfficacy > 1:
		return fmt.Errorf("disease %s: incubating efficacy %v outside [0,1]", k.Name, k.IncubatingEfficacy)
	case k.Radius < 0:
		return fmt.Errorf("disease %s: negative radius", k.Name)
	case k.IncubationPeriod < 0 || k.DurationPeriod < 0:
		return fmt.Errorf("disease %s: negative period", k.Name)
	}
	return nil
}
