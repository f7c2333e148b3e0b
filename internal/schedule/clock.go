package schedule

import "fmt"

// One tick is five simulated minutes.
const (
	TicksPerHour = 12
	TicksPerDay  = 288 // 24 hours × 12
	TicksPerWeek = 2016
)

// TimeOfDay returns the tick offset within the current day.
func TimeOfDay(t Tick) Tick {
	return t % TicksPerDay
}

// Day returns the zero-based day index of t.
func Day(t Tick) int64 {
	return int64(t / TicksPerDay)
}

// NextClock returns the tick of the next occurrence of hour:block (block is a
// five-minute slot within the hour). If that time of day is still ahead today,
// today's occurrence is returned, otherwise tomorrow's.
func NextClock(now Tick, hour, block int) Tick {
	goal := Tick(hour*TicksPerHour + block)
	day := now / TicksPerDay
	if goal < TimeOfDay(now) {
		return (day+1)*TicksPerDay + goal
	}
	return day*TicksPerDay + goal
}

// SimTime returns a human-readable simulation time string from a tick number.
func SimTime(t Tick) string {
	minutes := int64(t) * 5
	mins := minutes % 60
	hours := (minutes / 60) % 24
	days := minutes/(60*24) + 1
	return fmt.Sprintf("Day %d, %d:%02d", days, hours, mins)
}
