// Activity state machine. A human checks in, looks at its activity, the time
// of day and its stress, then picks what to do and when to check in next.
package agents

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

// PriorityBase offsets human check-ins so disease timers at the same tick run first.
const PriorityBase = 100

// Times of day, in ticks since midnight.
const (
	goingOut = 7*schedule.TicksPerHour + 3 // 07:15
	bedtime  = 21 * schedule.TicksPerHour  // 21:00
)

// Step runs one check-in and returns when the human wants the next one.
// A non-nil error means the state machine met a state it has no rule for;
// the human has been parked and will check in again after StuckRecheck.
func (h *Human) Step(env Env) (schedule.Next, error) {
	if h.Removed || !h.Alive {
		return schedule.Stop(), nil
	}
	now := env.Now()
	if h.lastProcessed >= now {
		env.Note(h, DiagDuplicate)
		return schedule.Stop(), nil
	}
	h.lastProcessed = now
	b := env.Behavior()

	if h.Stress > b.IllnessThreshold && h.Activity != Traveling {
		return h.seekCare(env, now), nil
	}

	switch h.Activity {
	case Sleeping:
		h.Activity = Relaxing
		if schedule.TimeOfDay(now) >= goingOut {
			// Woken late (after an illness): the day has already started.
			return h.checkInAt(env, now, now+1), nil
		}
		return h.checkInAt(env, now, jitter(env, schedule.NextClock(now, 7, 9))), nil

	case Relaxing:
		tod := schedule.TimeOfDay(now)
		switch {
		case tod >= bedtime:
			h.Activity = Sleeping
			return h.checkInAt(env, now, jitter(env, schedule.NextClock(now, 7, 0))), nil
		case tod >= goingOut:
			return h.travel(env, now, h.pickPlaceToVisit(env)), nil
		default:
			return h.checkInAt(env, now, schedule.NextClock(now, 7, 3)), nil
		}

	case Working:
		return h.travel(env, now, h.Home), nil

	case Traveling:
		if h.Target != nil {
			return h.continueTravel(env, now), nil
		}
	}

	env.Note(h, DiagUnhandled)
	err := fmt.Errorf("agent %d %v at %s: %w", h.ID, h.Activity, schedule.SimTime(now), ErrUnhandledActivity)
	h.park()
	return h.checkInAt(env, now, now+b.StuckRecheck), err
}

// seekCare heads for the nearest facility, else home, else waits it out.
func (h *Human) seekCare(env Env, now schedule.Tick) schedule.Next {
	b := env.Behavior()
	if f, ok := env.Land().NearestFacility(h.Position, b.MedicalSearchRadius); ok {
		env.Note(h, DiagSeekCare)
		h.record(now, ChartSeekCare, "", 0.4)
		return h.travel(env, now, f)
	}
	if !h.arrived(env, h.Home) {
		return h.travel(env, now, h.Home)
	}
	h.Activity = Relaxing
	return h.checkInAt(env, now, now+b.SickRecheck)
}

func (h *Human) travel(env Env, now schedule.Tick, goal world.Point) schedule.Next {
	if err := h.headFor(env, goal); err != nil {
		return h.routeFailed(env, now, err)
	}
	return h.checkInAt(env, now, now+1)
}

func (h *Human) continueTravel(env Env, now schedule.Tick) schedule.Next {
	if len(h.Path) > 0 {
		h.move.Navigate(h)
		env.Relocated(h)
		if !env.Land().InBounds(h.Position) {
			env.Remove(h, Departed)
			return schedule.Stop()
		}
		return h.checkInAt(env, now, now+1)
	}

	if !h.arrived(env, *h.Target) {
		return h.travel(env, now, *h.Target)
	}
	return h.arrive(env, now)
}

// arrive settles a human at the end of its trip.
func (h *Human) arrive(env Env, now schedule.Tick) schedule.Next {
	b := env.Behavior()
	h.Target = nil
	h.Path = nil

	if h.Stress > b.IllnessThreshold && env.Land().FacilityAt(h.Position, b.Resolution) {
		return h.admit(env, now)
	}

	if h.arrived(env, h.Home) {
		h.Activity = Relaxing
		until := jitter(env, schedule.NextClock(now, 22, 0))
		if schedule.TimeOfDay(now) >= bedtime {
			until = now + 1
		}
		return h.checkInAt(env, now, until)
	}

	h.Activity = Working
	return h.checkInAt(env, now, now+schedule.Tick(schedule.TicksPerHour*(1+env.Intn(8))))
}

// admit resolves a stay at a medical facility: death, or treatment followed
// by a dwell before heading home.
func (h *Human) admit(env Env, now schedule.Tick) schedule.Next {
	b := env.Behavior()
	if env.Float() < b.DeathProbability {
		h.record(now, ChartDied, "", 1)
		slog.Info("died in care", "agent", h.ID, "tick", now)
		env.Remove(h, Died)
		return schedule.Stop()
	}
	h.treat(now)
	env.Note(h, DiagTreated)
	h.Activity = Working
	return h.checkInAt(env, now, now+b.TreatmentDwell)
}

func (h *Human) routeFailed(env Env, now schedule.Tick, err error) schedule.Next {
	b := env.Behavior()
	if isRoutingFailure(err) {
		h.pathFailures++
		env.Note(h, DiagNoPath)
		if h.pathFailures <= b.MaxPathRetries {
			return h.checkInAt(env, now, now+1)
		}
	}
	slog.Warn("agent parked", "agent", h.ID, "tick", now, "error", err)
	env.Note(h, DiagStuck)
	h.park()
	return h.checkInAt(env, now, now+b.StuckRecheck)
}

// park drops any trip and leaves the human waiting where it stands.
func (h *Human) park() {
	h.Activity = Relaxing
	h.Target = nil
	h.Path = nil
	h.Stuck = true
	h.pathFailures = 0
}

// pickPlaceToVisit draws another human's home whose distance from this home
// falls in a band of width PlaceScale at a half-normal offset. The band
// relaxes after 1000 tries and opens fully after 5000.
func (h *Human) pickPlaceToVisit(env Env) world.Point {
	n := env.Population()
	if n == 0 {
		return h.Home
	}
	scale := env.Behavior().PlaceScale
	g := math.Abs(env.NormFloat64())
	maxDist, minDist := scale*g, scale*(g-1)

	dest := env.HomeOf(env.Intn(n))
	for tries := 0; ; tries++ {
		d := dest.Distance(h.Home)
		if d <= maxDist && d >= minDist {
			return dest
		}
		if tries > 1000 {
			minDist = 0
		}
		if tries > 5000 {
			maxDist = math.Inf(1)
		}
		dest = env.HomeOf(env.Intn(n))
	}
}

// checkInAt builds the follow-up, never earlier than the next tick.
func (h *Human) checkInAt(env Env, now, at schedule.Tick) schedule.Next {
	if at <= now {
		at = now + 1
	}
	return schedule.Reschedule(at, PriorityBase+env.Intn(env.Population()))
}

// jitter spreads a clock time by up to half an hour either way.
func jitter(env Env, t schedule.Tick) schedule.Tick {
	return t + 6 - schedule.Tick(env.Intn(13))
}
