package agents

import (
	"errors"

	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

var (
	// ErrUnhandledActivity is returned when no branch of the state machine
	// matches the human's state.
	ErrUnhandledActivity = errors.New("agents: unhandled activity")
	// ErrAlreadyInfected is returned when a human already hosts a disease of that name.
	ErrAlreadyInfected = errors.New("agents: already infected")
	// ErrRemoved is returned for operations on a removed human.
	ErrRemoved = errors.New("agents: human removed")
)

// Behavior holds the constants of the activity state machine.
type Behavior struct {
	IllnessThreshold    float64       `yaml:"illness_threshold" json:"illness_threshold"`
	MedicalSearchRadius float64       `yaml:"medical_search_radius" json:"medical_search_radius"`
	Resolution          float64       `yaml:"resolution" json:"resolution"` // Arrival tolerance in metres
	SickRecheck         schedule.Tick `yaml:"sick_recheck" json:"sick_recheck"`
	StuckRecheck        schedule.Tick `yaml:"stuck_recheck" json:"stuck_recheck"`
	TreatmentDwell      schedule.Tick `yaml:"treatment_dwell" json:"treatment_dwell"`
	DeathProbability    float64       `yaml:"death_probability" json:"death_probability"`
	WanderThreshold     float64       `yaml:"wander_threshold" json:"wander_threshold"`
	PlaceScale          float64       `yaml:"place_scale" json:"place_scale"`
	MaxPathRetries      int           `yaml:"max_path_retries" json:"max_path_retries"`
	Stress              StressLevels  `yaml:"stress" json:"stress"`
}

// DefaultBehavior returns the standard constants.
func DefaultBehavior() Behavior {
	return Behavior{
		IllnessThreshold:    5,
		MedicalSearchRadius: 1000,
		Resolution:          5,
		SickRecheck:         schedule.TicksPerHour,
		StuckRecheck:        schedule.TicksPerHour,
		TreatmentDwell:      4 * schedule.TicksPerDay,
		DeathProbability:    0.05,
		WanderThreshold:     2000,
		PlaceScale:          5000,
		MaxPathRetries:      12,
		Stress:              DefaultStress(),
	}
}

// Land is the part of the landscape a human consults.
type Land interface {
	InBounds(p world.Point) bool
	NearestFacility(p world.Point, radius float64) (world.Point, bool)
	FacilityAt(p world.Point, tolerance float64) bool
}

// Diagnostic classifies a noteworthy outcome of a check-in.
type Diagnostic uint8

const (
	DiagNoPath Diagnostic = iota + 1
	DiagStuck
	DiagDuplicate
	DiagUnhandled
	DiagSeekCare
	DiagTreated
)

func (d Diagnostic) String() string {
	switch d {
	case DiagNoPath:
		return "no_path"
	case DiagStuck:
		return "stuck"
	case DiagDuplicate:
		return "duplicate"
	case DiagUnhandled:
		return "unhandled"
	case DiagSeekCare:
		return "seek_care"
	case DiagTreated:
		return "treated"
	default:
		return "unknown"
	}
}

// Env is the world as seen from a human's check-in.
type Env interface {
	Now() schedule.Tick
	Float() float64
	Intn(n int) int
	NormFloat64() float64

	Behavior() *Behavior
	Land() Land
	Planner() world.Planner

	// Population is the number of live humans; HomeOf returns the home of the
	// i-th of them, 0 <= i < Population().
	Population() int
	HomeOf(i int) world.Point

	// Relocated tells the world the human's position changed.
	Relocated(h *Human)
	// Remove takes the human out of the simulation once the current handler returns.
	Remove(h *Human, cause RemovalCause)
	// Note reports a diagnostic outcome.
	Note(h *Human, d Diagnostic)
}
