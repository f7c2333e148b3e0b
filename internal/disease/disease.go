// Package disease models per-host infection timers and proximity transmission.
// Each Disease instance belongs to exactly one host and steps once per tick
// until its host recovers, dies or leaves.
package disease

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

// Priority is the scheduling priority of disease timers. They run before any
// agent check-in at the same tick.
const Priority = 0

// ErrHostAssigned is returned when a disease instance is attached twice.
var ErrHostAssigned = errors.New("disease: host already assigned")

// Stage is a disease's progression phase. Stages only move forward.
type Stage uint8

const (
	Incubating Stage = iota + 1
	Acute
	Recovered
)

func (s Stage) String() string {
	switch s {
	case Incubating:
		return "incubating"
	case Acute:
		return "acute"
	case Recovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// Carrier is anything that can be exposed to a disease.
type Carrier interface {
	HostID() uint64
	Location() world.Point
	InfectedWith(name string) bool
}

// Host is a carrier that receives stage notifications.
type Host interface {
	Carrier
	ChangeStage(name string, stage Stage, now schedule.Tick)
}

// Env is the slice of the world a disease timer needs.
type Env interface {
	Now() schedule.Tick
	Float() float64
	// Host returns the live host with id; false once it is removed or dead.
	Host(id uint64) (Host, bool)
	// Neighbours returns live carriers within radius of p, in ascending ID order.
	Neighbours(p world.Point, radius float64) []Carrier
	// Infect attaches d to target and starts its timer.
	Infect(target uint64, d *Disease) error
	// Recover detaches d from its host and lets the host resume its routine.
	Recover(host uint64, d *Disease)
}

// Disease is one infection in one host.
type Disease struct {
	Kind        *Kind         `json:"-"`
	Stage       Stage         `json:"stage"`
	TimeInStage schedule.Tick `json:"time_in_stage"`
	Infected    schedule.Tick `json:"infected_at"`

	hostID   uint64
	attached bool
	handle   *schedule.Handle
}

// Name returns the kind's name.
func (d *Disease) Name() string { return d.Kind.Name }

// HostID returns the host the disease is attached to.
func (d *Disease) HostID() (uint64, bool) { return d.hostID, d.attached }

// Attach binds the disease to its host. A disease has exactly one host for its
// whole life.
func (d *Disease) Attach(host uint64) error {
	if d.attached {
		return fmt.Errorf("%s on %d: %w", d.Kind.Name, d.hostID, ErrHostAssigned)
	}
	d.hostID = host
	d.attached = true
	return nil
}

// Handle returns the scheduler handle of the disease's timer chain.
func (d *Disease) Handle() *schedule.Handle { return d.handle }

// SetHandle records the timer chain handle once scheduled.
func (d *Disease) SetHandle(h *schedule.Handle) { d.handle = h }

// Step runs one tick of the disease: spread to neighbours, then progress.
func (d *Disease) Step(env Env) schedule.Next {
	if !d.attached || d.Stage == Recovered {
		return schedule.Stop()
	}
	host, ok := env.Host(d.hostID)
	if !ok {
		return schedule.Stop()
	}
	now := env.Now()

	if d.Kind.Efficacy(d.Stage) > 0 {
		d.spread(env, host)
	}

	d.TimeInStage++
	switch d.Stage {
	case Incubating:
		if d.TimeInStage > d.Kind.IncubationPeriod {
			d.advance(host, Acute, now)
		}
	case Acute:
		if d.TimeInStage > d.Kind.DurationPeriod {
			d.advance(host, Recovered, now)
			env.Recover(d.hostID, d)
			return schedule.Stop()
		}
	}

	return schedule.Reschedule(now+1, Priority)
}

func (d *Disease) spread(env Env, host Host) {
	for _, target := range env.Neighbours(host.Location(), d.Kind.Radius) {
		if target.HostID() == d.hostID || target.InfectedWith(d.Kind.Name) {
			continue
		}
		if !d.Kind.Infects(d.Stage, host, target, env.Float()) {
			continue
		}
		if err := env.Infect(target.HostID(), d.Kind.New()); err != nil {
			slog.Warn("transmission failed", "disease", d.Kind.Name, "from", d.hostID,
				"to", target.HostID(), "error", err)
		}
	}
}

func (d *Disease) advance(host Host, to Stage, now schedule.Tick) {
	if to <= d.Stage {
		return
	}
	d.Stage = to
	d.TimeInStage = 0
	host.ChangeStage(d.Kind.Name, to, now)
}
