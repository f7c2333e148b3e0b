// Medical chart: a bounded record of notable health events for each human,
// served by the API and written to the results database.
package agents

import (
	"sort"

	"github.com/talgya/pumpsim/internal/schedule"
)

const MaxChartEntries = 50

// ChartKind classifies a chart entry.
type ChartKind string

const (
	ChartInfected  ChartKind = "infected"
	ChartAcute     ChartKind = "acute"
	ChartRecovered ChartKind = "recovered"
	ChartSeekCare  ChartKind = "seeking_care"
	ChartTreated   ChartKind = "treated"
	ChartDied      ChartKind = "died"
)

// ChartEntry records one health event in a human's life.
type ChartEntry struct {
	Tick     schedule.Tick `json:"tick"`
	Kind     ChartKind     `json:"kind"`
	Disease  string        `json:"disease,omitempty"`
	Severity float32       `json:"severity"` // 0.0-1.0
}

// AddChartEntry appends an entry to the chart. When full, drops the
// lowest-severity entry to make room.
func AddChartEntry(h *Human, e ChartEntry) {
	if len(h.Chart) < MaxChartEntries {
		h.Chart = append(h.Chart, e)
		return
	}

	// Find the lowest-severity entry and replace it.
	minIdx := 0
	for i := 1; i < len(h.Chart); i++ {
		if h.Chart[i].Severity < h.Chart[minIdx].Severity {
			minIdx = i
		}
	}
	if e.Severity > h.Chart[minIdx].Severity {
		h.Chart[minIdx] = e
	}
}

// RecentEntries returns the most recent N entries ordered by tick descending.
func RecentEntries(h *Human, count int) []ChartEntry {
	if len(h.Chart) == 0 {
		return nil
	}

	sorted := make([]ChartEntry, len(h.Chart))
	copy(sorted, h.Chart)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Tick > sorted[j].Tick
	})

	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}

func (h *Human) record(tick schedule.Tick, kind ChartKind, name string, severity float32) {
	if tick < 0 {
		tick = 0
	}
	AddChartEntry(h, ChartEntry{Tick: tick, Kind: kind, Disease: name, Severity: severity})
}
