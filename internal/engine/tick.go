package engine

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/talgya/pumpsim/internal/schedule"
)

// Engine drives a Simulation forward, optionally paced against the wall clock.
type Engine struct {
	Sim      *Simulation
	Until    schedule.Tick // Stop once the next event lies past this tick; 0 = run until the queue drains
	Interval time.Duration // Wall time per sim-hour at speed 1; 0 = as fast as possible

	// OnHour is called once for every sim-hour the clock passes.
	OnHour func(tick schedule.Tick)

	running atomic.Bool
	speed   atomic.Uint64 // float64 bits; 1.0 = Interval per sim-hour, 0 = paused
}

// NewEngine creates an unpaced engine for sim.
func NewEngine(sim *Simulation) *Engine {
	e := &Engine{Sim: sim}
	e.SetSpeed(1.0)
	return e
}

// Speed returns the pacing multiplier.
func (e *Engine) Speed() float64 { return math.Float64frombits(e.speed.Load()) }

// SetSpeed changes the pacing multiplier. It is safe to call while Run is active.
func (e *Engine) SetSpeed(v float64) { e.speed.Store(math.Float64bits(v)) }

// Running reports whether Run is in progress.
func (e *Engine) Running() bool { return e.running.Load() }

// Run steps the scheduler until the queue drains, Until is reached, ctx is
// cancelled or Stop is called. The simulation is single-threaded: nothing
// else may touch Sim while Run is active except through snapshots.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	sched := e.Sim.Sched
	hour := sched.Now() / schedule.TicksPerHour
	slog.Info("simulation engine started", "tick", sched.Now(), "until", e.Until, "speed", e.Speed())

	for e.running.Load() {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation engine cancelled", "tick", sched.Now())
			e.Sim.Publish()
			return err
		}
		if e.Speed() <= 0 {
			// Paused; sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		next, ok := sched.NextTime()
		if !ok {
			slog.Info("event queue drained", "tick", sched.Now())
			break
		}
		if e.Until > 0 && next > e.Until {
			break
		}

		start := time.Now()
		sched.Step()

		now := sched.Now()
		for h := hour + 1; h <= now/schedule.TicksPerHour; h++ {
			if e.OnHour != nil {
				e.OnHour(h * schedule.TicksPerHour)
			}
		}
		if now/schedule.TicksPerHour != hour {
			hour = now / schedule.TicksPerHour
			e.pace(start)
		}
	}

	e.Sim.Publish()
	slog.Info("simulation engine stopped", "tick", sched.Now(), "events", sched.Executed())
	return nil
}

// Stop halts Run after the current step.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// pace sleeps out the remainder of one sim-hour's wall time.
func (e *Engine) pace(start time.Time) {
	if e.Interval <= 0 {
		return
	}
	elapsed := time.Since(start)
	target := time.Duration(float64(e.Interval) / e.Speed())
	if elapsed < target {
		time.Sleep(target - elapsed)
	}
}
