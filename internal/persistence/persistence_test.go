package persistence

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/engine"
	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveHumansReplaces(t *testing.T) {
	db := openTemp(t)
	first := []engine.HumanView{
		{ID: 1, Label: "a", Activity: agents.Sleeping, Alive: true},
		{ID: 2, Label: "b", Activity: agents.Working, Alive: true},
	}
	if err := db.SaveHumans(first); err != nil {
		t.Fatal(err)
	}
	second := []engine.HumanView{{
		ID:       2,
		Label:    "b",
		Position: world.Point{X: 10, Y: 20},
		Activity: agents.Relaxing,
		Stress:   7,
		Removed:  true,
		Cause:    agents.Died,
		Diseases: []engine.DiseaseView{{Name: "Cholera", Stage: "acute"}},
	}}
	if err := db.SaveHumans(second); err != nil {
		t.Fatal(err)
	}

	rows, err := db.Humans()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.ID != 2 || r.PosX != 10 || r.PosY != 20 || r.Activity != "relaxing" || r.Cause != "died" || !r.Removed || r.Alive {
		t.Errorf("row = %+v", r)
	}
	if r.DiseasesJSON == "" || r.DiseasesJSON == "null" {
		t.Errorf("diseases_json = %q", r.DiseasesJSON)
	}
}

func TestSaveEventsIdempotent(t *testing.T) {
	db := openTemp(t)
	batch := []engine.Event{
		{Seq: 1, Tick: 5, Description: "agent 1 infected with flu", Category: "infection"},
		{Seq: 2, Tick: 9, Description: "agent 2 died in care", Category: "death"},
	}
	if err := db.SaveEvents(batch); err != nil {
		t.Fatal(err)
	}
	more := append(batch[1:], engine.Event{Seq: 3, Tick: 12, Description: "x", Category: "stuck"})
	if err := db.SaveEvents(more); err != nil {
		t.Fatal(err)
	}

	got, err := db.RecentEvents(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[0].Seq != 3 || got[2].Seq != 1 || got[1].Tick != 9 {
		t.Errorf("events = %+v", got)
	}
}

func TestDailyStatsAndMeta(t *testing.T) {
	db := openTemp(t)
	rows := []engine.DailyStats{
		{Day: 1, Tick: schedule.TicksPerDay, Population: 10, Sick: 2, AvgStress: 1.5},
		{Day: 2, Tick: 2 * schedule.TicksPerDay, Population: 9, Sick: 4, Deaths: 1},
	}
	if err := db.SaveDailyStats(rows); err != nil {
		t.Fatal(err)
	}
	rows[1].Sick = 5
	if err := db.SaveDailyStats(rows[1:]); err != nil {
		t.Fatal(err)
	}
	got, err := db.History()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Sick != 5 || got[0].AvgStress != 1.5 {
		t.Errorf("history = %+v", got)
	}

	if err := db.SaveMeta("seed", "42"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("seed", "43"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMeta("seed"); err != nil || v != "43" {
		t.Errorf("seed = %q, %v", v, err)
	}
	if _, err := db.GetMeta("missing"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestSaveSnapshot(t *testing.T) {
	db := openTemp(t)
	snap := &engine.Snapshot{
		Tick:    300,
		Seed:    7,
		Humans:  []engine.HumanView{{ID: 1, Activity: agents.Sleeping, Alive: true}},
		Events:  []engine.Event{{Seq: 1, Tick: 3, Category: "infection"}},
		History: []engine.DailyStats{{Day: 1, Tick: 288, Population: 1}},
	}
	if err := db.SaveSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetMeta("last_tick"); v != "300" {
		t.Errorf("last_tick = %q", v)
	}
	if v, _ := db.GetMeta("sim_time"); v != schedule.SimTime(300) {
		t.Errorf("sim_time = %q", v)
	}
}

func TestTraceRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "trace")
	tw, err := NewTraceWriter(dir, "run", 9)
	if err != nil {
		t.Fatal(err)
	}
	want := []schedule.Fired{
		{At: 1, Priority: 0, Seq: 1, Label: "disease:flu:1"},
		{At: 84, Priority: 103, Seq: 2, Label: "human:1"},
	}
	for _, f := range want {
		tw.Fired(f)
	}
	if tw.Lines() != 2 {
		t.Errorf("lines = %d", tw.Lines())
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(want[0]); err == nil {
		t.Error("write after close succeeded")
	}
	if filepath.Base(tw.Path()) != "run-9.jsonl.zst" {
		t.Errorf("path = %s", tw.Path())
	}

	got, err := ReadTrace(tw.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("trace = %+v, want %+v", got, want)
	}
}

func TestTraceDeterministicBytes(t *testing.T) {
	write := func(dir string) []byte {
		tw, err := NewTraceWriter(dir, "run", 1)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 100; i++ {
			tw.Fired(schedule.Fired{At: schedule.Tick(i), Seq: uint64(i), Label: "human:1"})
		}
		if err := tw.Close(); err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(tw.Path())
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	a := write(t.TempDir())
	b := write(t.TempDir())
	if !reflect.DeepEqual(a, b) {
		t.Error("identical traces compressed differently")
	}
}
