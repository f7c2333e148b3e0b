package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/schedule"
)

// reportPriority puts the daily report ahead of every other event of its tick.
const reportPriority = -1

// Stats holds cumulative counters for the whole run.
type Stats struct {
	Infections int `json:"infections"`
	Recoveries int `json:"recoveries"`
	Deaths     int `json:"deaths"`
	Departures int `json:"departures"`
	Treatments int `json:"treatments"`
	SeekCare   int `json:"seek_care"`
	Stuck      int `json:"stuck"`
	NoPath     int `json:"no_path"`
	Duplicates int `json:"duplicates"`
	Unhandled  int `json:"unhandled"`
}

// DailyStats is one row of the day-by-day history.
type DailyStats struct {
	Day        int64         `json:"day" db:"day"`
	Tick       schedule.Tick `json:"tick" db:"tick"`
	Population int           `json:"population" db:"population"`
	Sick       int           `json:"sick" db:"sick"`
	Sleeping   int           `json:"sleeping" db:"sleeping"`
	Traveling  int           `json:"traveling" db:"traveling"`
	Working    int           `json:"working" db:"working"`
	Relaxing   int           `json:"relaxing" db:"relaxing"`
	AvgStress  float64       `json:"avg_stress" db:"avg_stress"`
	Infections int           `json:"infections" db:"infections"` // Cumulative
	Recoveries int           `json:"recoveries" db:"recoveries"`
	Deaths     int           `json:"deaths" db:"deaths"`
	Departures int           `json:"departures" db:"departures"`
	Treatments int           `json:"treatments" db:"treatments"`
}

// Census counts the live population by activity and health.
func (s *Simulation) Census() DailyStats {
	now := s.Now()
	d := DailyStats{
		Day:        schedule.Day(now),
		Tick:       now,
		Population: len(s.live),
		Infections: s.Stats.Infections,
		Recoveries: s.Stats.Recoveries,
		Deaths:     s.Stats.Deaths,
		Departures: s.Stats.Departures,
		Treatments: s.Stats.Treatments,
	}
	totalStress := 0.0
	for _, h := range s.live {
		if h.Sick() {
			d.Sick++
		}
		totalStress += h.Stress
		switch h.Activity {
		case agents.Sleeping:
			d.Sleeping++
		case agents.Traveling:
			d.Traveling++
		case agents.Working:
			d.Working++
		case agents.Relaxing:
			d.Relaxing++
		}
	}
	if d.Population > 0 {
		d.AvgStress = totalStress / float64(d.Population)
	}
	return d
}

func (s *Simulation) startDailyReport() {
	h, err := s.Sched.ScheduleRepeatingLabeled(schedule.ActionFunc(s.dailyReport),
		reportPriority, schedule.TicksPerDay, "report")
	if err != nil {
		panic(err) // interval is a positive constant
	}
	s.report = h
}

// dailyReport records and logs one day. It ends once nobody is left.
func (s *Simulation) dailyReport(now schedule.Tick) schedule.Next {
	d := s.Census()
	s.History = append(s.History, d)

	slog.Info("daily report",
		"tick", now,
		"time", schedule.SimTime(now),
		"alive", humanize.Comma(int64(d.Population)),
		"sick", humanize.Comma(int64(d.Sick)),
		"avg_stress", fmt.Sprintf("%.3f", d.AvgStress),
		"infections", humanize.Comma(int64(d.Infections)),
		"recoveries", humanize.Comma(int64(d.Recoveries)),
		"deaths", d.Deaths,
		"departures", d.Departures,
		"treatments", d.Treatments,
		"stuck", s.Stats.Stuck,
		"events", humanize.Comma(int64(s.Sched.Executed())),
	)

	// Log recent notable events (deaths, stuck agents).
	recentStart := 0
	if len(s.Events) > 20 {
		recentStart = len(s.Events) - 20
	}
	for _, e := range s.Events[recentStart:] {
		if e.Category == "death" || e.Category == "stuck" {
			slog.Info("event", "category", e.Category, "description", e.Description)
		}
	}
	s.trimEvents()

	if s.OnDay != nil {
		s.OnDay(d)
	}
	if d.Population == 0 {
		slog.Info("population gone, stopping daily report", "tick", now)
		return schedule.Stop()
	}
	return schedule.Continue()
}
