// Package schedule provides the time-ordered event queue that drives the simulation.
// Events fire in (time, priority, insertion) order, so a fixed seed and a fixed
// sequence of scheduling calls always yield the same execution trace.
package schedule

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
)

// Tick is one discrete simulation step (five minutes of simulated time).
type Tick int64

// DefaultPriority is used by ScheduleOnceDefault.
const DefaultPriority = 0

var (
	// ErrScheduleInPast is returned when an event is scheduled before Now.
	ErrScheduleInPast = errors.New("schedule: time is in the past")
	// ErrBadInterval is returned for a non-positive repeat interval.
	ErrBadInterval = errors.New("schedule: repeat interval must be positive")
)

// Next is the tagged outcome of a step: either re-insert the same action at a
// later time, or stop. The zero value stops.
type Next struct {
	resched  bool
	At       Tick
	Priority int
}

// Reschedule asks the scheduler to fire the same action again at the given time.
func Reschedule(at Tick, priority int) Next {
	return Next{resched: true, At: at, Priority: priority}
}

// Stop ends the action's chain.
func Stop() Next { return Next{} }

// Continue keeps a repeating action on its interval. At and Priority are ignored.
func Continue() Next { return Next{resched: true} }

// Continues reports whether the step asked to be rescheduled.
func (n Next) Continues() bool { return n.resched }

// Action is anything the scheduler can fire.
type Action interface {
	Step(now Tick) Next
}

// ActionFunc adapts a plain function to Action.
type ActionFunc func(now Tick) Next

// Step calls f(now).
func (f ActionFunc) Step(now Tick) Next { return f(now) }

// Handle identifies a scheduled chain. A one-shot that reschedules itself keeps
// its handle, so cancelling the handle stops the whole chain.
type Handle struct {
	id        uint64
	label     string
	cancelled bool
	done      bool
}

// Label returns the label the handle was created with.
func (h *Handle) Label() string { return h.label }

// Active reports whether the handle still has an event waiting to fire.
func (h *Handle) Active() bool { return h != nil && !h.cancelled && !h.done }

// Fired describes one executed event, in execution order.
type Fired struct {
	At       Tick   `json:"at"`
	Priority int    `json:"priority"`
	Seq      uint64 `json:"seq"`
	Label    string `json:"label"`
}

type event struct {
	at       Tick
	priority int
	seq      uint64
	interval Tick // > 0 for repeating events
	action   Action
	handle   *Handle
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.at != b.at {
		return a.at < b.at
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// Scheduler is the single-threaded event queue. It is not safe for concurrent use.
type Scheduler struct {
	now      Tick
	queue    eventQueue
	seq      uint64
	handles  uint64
	executed uint64
	rejected uint64
	trace    func(Fired)
}

// New creates an empty scheduler at tick 0.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the current simulation time.
func (s *Scheduler) Now() Tick { return s.now }

// Executed returns the number of events fired so far.
func (s *Scheduler) Executed() uint64 { return s.executed }

// Rejected returns how many reschedule requests pointed into the past.
func (s *Scheduler) Rejected() uint64 { return s.rejected }

// SetTrace installs a callback invoked after every executed event.
func (s *Scheduler) SetTrace(fn func(Fired)) { s.trace = fn }

// Pending returns the number of live (non-cancelled) queued events.
func (s *Scheduler) Pending() int {
	n := 0
	for _, ev := range s.queue {
		if !ev.handle.cancelled {
			n++
		}
	}
	return n
}

// NextTime returns the time of the earliest live event.
func (s *Scheduler) NextTime() (Tick, bool) {
	s.dropCancelled()
	if len(s.queue) == 0 {
		return 0, false
	}
	return s.queue[0].at, true
}

// ScheduleOnce inserts a one-shot event.
func (s *Scheduler) ScheduleOnce(at Tick, priority int, action Action) (*Handle, error) {
	return s.ScheduleLabeled(at, priority, "", action)
}

// ScheduleOnceDefault inserts a one-shot event with DefaultPriority.
func (s *Scheduler) ScheduleOnceDefault(at Tick, action Action) (*Handle, error) {
	return s.ScheduleOnce(at, DefaultPriority, action)
}

// ScheduleLabeled is ScheduleOnce with a label carried into the trace.
func (s *Scheduler) ScheduleLabeled(at Tick, priority int, label string, action Action) (*Handle, error) {
	if at < s.now {
		return nil, fmt.Errorf("%w: at=%d now=%d", ErrScheduleInPast, at, s.now)
	}
	h := s.newHandle(label)
	s.push(at, priority, 0, action, h)
	return h, nil
}

// ScheduleRepeating fires action every interval ticks, starting interval ticks
// from now, until cancelled or the action returns Stop.
func (s *Scheduler) ScheduleRepeating(action Action, priority int, interval Tick) (*Handle, error) {
	return s.ScheduleRepeatingLabeled(action, priority, interval, "")
}

// ScheduleRepeatingLabeled is ScheduleRepeating with a trace label.
func (s *Scheduler) ScheduleRepeatingLabeled(action Action, priority int, interval Tick, label string) (*Handle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadInterval, interval)
	}
	h := s.newHandle(label)
	s.push(s.now+interval, priority, interval, action, h)
	return h, nil
}

// Cancel stops a pending chain. Cancelling twice, or cancelling a finished
// chain, is a no-op.
func (s *Scheduler) Cancel(h *Handle) {
	if h == nil {
		return
	}
	h.cancelled = true
}

// Step fires every event scheduled at the earliest pending time, advancing Now
// to that time. It returns false when nothing was left to fire.
func (s *Scheduler) Step() bool {
	s.dropCancelled()
	if len(s.queue) == 0 {
		return false
	}

	at := s.queue[0].at
	s.now = at
	fired := false

	for len(s.queue) > 0 && s.queue[0].at == at {
		ev := heap.Pop(&s.queue).(*event)
		if ev.handle.cancelled {
			continue
		}

		next := ev.action.Step(at)
		fired = true
		s.executed++
		if s.trace != nil {
			s.trace(Fired{At: at, Priority: ev.priority, Seq: ev.seq, Label: ev.handle.label})
		}

		if ev.handle.cancelled {
			continue
		}

		if ev.interval > 0 {
			if !next.resched {
				ev.handle.done = true
				continue
			}
			s.push(at+ev.interval, ev.priority, ev.interval, ev.action, ev.handle)
			continue
		}

		if !next.resched {
			ev.handle.done = true
			continue
		}
		if next.At < at {
			s.rejected++
			ev.handle.done = true
			slog.Error("reschedule into the past dropped",
				"label", ev.handle.label, "now", at, "at", next.At)
			continue
		}
		s.push(next.At, next.Priority, 0, ev.action, ev.handle)
	}

	return fired
}

func (s *Scheduler) newHandle(label string) *Handle {
	s.handles++
	return &Handle{id: s.handles, label: label}
}

func (s *Scheduler) push(at Tick, priority int, interval Tick, action Action, h *Handle) {
	s.seq++
	heap.Push(&s.queue, &event{
		at:       at,
		priority: priority,
		seq:      s.seq,
		interval: interval,
		action:   action,
		handle:   h,
	})
}

func (s *Scheduler) dropCancelled() {
	for len(s.queue) > 0 && s.queue[0].handle.cancelled {
		heap.Pop(&s.queue)
	}
}
