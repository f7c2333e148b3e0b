package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/disease"
	"github.com/talgya/pumpsim/internal/entropy"
	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/world"
)

func testLand(t *testing.T) *world.Landscape {
	t.Helper()
	land := world.NewFlat(6000, 6000, 100)
	if err := land.AddFacility(world.Point{X: 3000, Y: 3000}); err != nil {
		t.Fatal(err)
	}
	return land
}

func newTestSim(t *testing.T, seed int64) *Simulation {
	t.Helper()
	return NewSimulation(testLand(t), entropy.New(seed), Options{
		Behavior:    agents.DefaultBehavior(),
		PlannerStep: 25,
	})
}

func addAt(t *testing.T, s *Simulation, p world.Point) *agents.Human {
	t.Helper()
	id := agents.AgentID(len(s.Humans()) + 1)
	h := agents.NewHuman(id, "", p, 50, agents.PathFollower{}, agents.DefaultStress())
	if err := s.AddHuman(h); err != nil {
		t.Fatal(err)
	}
	return h
}

func runUntil(t *testing.T, s *Simulation, until schedule.Tick) {
	t.Helper()
	e := NewEngine(s)
	e.Until = until
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestAddHumanRequiresNextID(t *testing.T) {
	s := newTestSim(t, 1)
	h := agents.NewHuman(5, "", world.Point{X: 100, Y: 100}, 50, nil, agents.DefaultStress())
	if err := s.AddHuman(h); err == nil {
		t.Fatal("expected error for out-of-order id")
	}
	addAt(t, s, world.Point{X: 100, Y: 100})
	if got := s.Population(); got != 1 {
		t.Errorf("population = %d, want 1", got)
	}
	if !s.Human(1).CheckIn().Active() {
		t.Error("first check-in not scheduled")
	}
}

func TestRemoveIsTerminal(t *testing.T) {
	s := newTestSim(t, 1)
	h := addAt(t, s, world.Point{X: 1000, Y: 1000})
	other := addAt(t, s, world.Point{X: 1010, Y: 1000})
	if err := s.InfectWith(h.ID, disease.Cholera()); err != nil {
		t.Fatal(err)
	}
	d := h.Diseases["Cholera"]

	s.Remove(h, agents.Died)
	s.Remove(h, agents.Departed) // second removal is ignored
	s.flushRemovals()

	if h.Alive || !h.Removed || h.Cause != agents.Died {
		t.Errorf("removed human state: alive=%v removed=%v cause=%v", h.Alive, h.Removed, h.Cause)
	}
	if s.Stats.Deaths != 1 || s.Stats.Departures != 0 {
		t.Errorf("stats = %+v", s.Stats)
	}
	if h.CheckIn().Active() || d.Handle().Active() {
		t.Error("timers still active after removal")
	}
	if _, ok := s.Host(uint64(h.ID)); ok {
		t.Error("removed human still a host")
	}
	if got := s.Neighbours(h.Position, 100); len(got) != 1 || got[0].HostID() != uint64(other.ID) {
		t.Errorf("neighbours = %v, want only %d", got, other.ID)
	}
	if got := s.Live(); len(got) != 1 || got[0] != other {
		t.Errorf("live = %v", got)
	}
	if s.Human(h.ID) != h {
		t.Error("arena slot lost after removal")
	}
}

func TestOutbreakSpreadsAtHome(t *testing.T) {
	s := newTestSim(t, 3)
	home := world.Point{X: 1500, Y: 1500}
	a := addAt(t, s, home)
	b := addAt(t, s, home)
	if err := s.InfectWith(a.ID, disease.Cholera()); err != nil {
		t.Fatal(err)
	}

	runUntil(t, s, 60)

	if !b.InfectedWith("Cholera") {
		t.Fatal("housemate not infected after a night together")
	}
	if s.Stats.Infections != 2 {
		t.Errorf("infections = %d, want 2", s.Stats.Infections)
	}
	if b.Stress != agents.DefaultStress().Incubating {
		t.Errorf("stress = %v, want %v", b.Stress, agents.DefaultStress().Incubating)
	}
}

func TestInfectTwiceFails(t *testing.T) {
	s := newTestSim(t, 1)
	h := addAt(t, s, world.Point{X: 1000, Y: 1000})
	if err := s.InfectWith(h.ID, disease.Flu()); err != nil {
		t.Fatal(err)
	}
	if err := s.InfectWith(h.ID, disease.Flu()); err == nil {
		t.Fatal("expected second infection to fail")
	}
	if s.Stats.Infections != 1 {
		t.Errorf("infections = %d, want 1", s.Stats.Infections)
	}
}

func buildRun(t *testing.T, seed int64) (*Simulation, []schedule.Fired) {
	t.Helper()
	s := newTestSim(t, seed)
	var trace []schedule.Fired
	s.Sched.SetTrace(func(f schedule.Fired) { trace = append(trace, f) })
	for i := 0; i < 20; i++ {
		addAt(t, s, world.Point{X: 2000 + float64(i%5)*200, Y: 2000 + float64(i/5)*200})
	}
	if _, err := s.SeedInfections(disease.Flu(), 3); err != nil {
		t.Fatal(err)
	}
	runUntil(t, s, 3*schedule.TicksPerDay)
	return s, trace
}

func TestRunIsDeterministic(t *testing.T) {
	a, traceA := buildRun(t, 11)
	b, traceB := buildRun(t, 11)

	if len(traceA) == 0 {
		t.Fatal("nothing fired")
	}
	if !reflect.DeepEqual(traceA, traceB) {
		t.Fatalf("traces differ: %d vs %d events", len(traceA), len(traceB))
	}
	if a.Stats != b.Stats {
		t.Errorf("stats differ: %+v vs %+v", a.Stats, b.Stats)
	}
	for i, h := range a.Humans() {
		o := b.Humans()[i]
		if h.Position != o.Position || h.Activity != o.Activity || h.Removed != o.Removed {
			t.Errorf("human %d differs: %v/%v vs %v/%v", h.ID, h.Position, h.Activity, o.Position, o.Activity)
		}
	}
	if a.Rand.Draws() != b.Rand.Draws() {
		t.Errorf("draws differ: %d vs %d", a.Rand.Draws(), b.Rand.Draws())
	}
}

func TestDailyReport(t *testing.T) {
	s := newTestSim(t, 1)
	addAt(t, s, world.Point{X: 1000, Y: 1000})
	var days []DailyStats
	s.OnDay = func(d DailyStats) { days = append(days, d) }

	runUntil(t, s, 2*schedule.TicksPerDay)

	if len(s.History) != 2 || len(days) != 2 {
		t.Fatalf("history = %d rows, callbacks = %d, want 2", len(s.History), len(days))
	}
	if s.History[0].Tick != schedule.TicksPerDay || s.History[1].Day != 2 {
		t.Errorf("history = %+v", s.History)
	}
}

func TestReportEndsWithPopulation(t *testing.T) {
	s := newTestSim(t, 1)
	e := NewEngine(s)
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(s.History) != 1 {
		t.Errorf("history = %d rows, want 1", len(s.History))
	}
	if s.Sched.Pending() != 0 {
		t.Errorf("pending = %d, want 0", s.Sched.Pending())
	}
	if s.Now() != schedule.TicksPerDay {
		t.Errorf("now = %d, want %d", s.Now(), schedule.TicksPerDay)
	}
}

func TestRunHonoursContext(t *testing.T) {
	s := newTestSim(t, 1)
	addAt(t, s, world.Point{X: 1000, Y: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewEngine(s).Run(ctx); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if s.Snapshot() == nil {
		t.Error("no snapshot published on exit")
	}
}

func TestEngineOnHour(t *testing.T) {
	s := newTestSim(t, 1)
	addAt(t, s, world.Point{X: 1000, Y: 1000})
	e := NewEngine(s)
	e.Until = schedule.TicksPerDay
	var hours []schedule.Tick
	e.OnHour = func(tick schedule.Tick) { hours = append(hours, tick) }
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(hours) == 0 {
		t.Fatal("OnHour never called")
	}
	for i, h := range hours {
		if h%schedule.TicksPerHour != 0 {
			t.Errorf("hour %d at tick %d", i, h)
		}
		if i > 0 && h != hours[i-1]+schedule.TicksPerHour {
			t.Errorf("hours not contiguous: %d after %d", h, hours[i-1])
		}
	}
}

func TestSeedInfections(t *testing.T) {
	s := newTestSim(t, 5)
	for i := 0; i < 4; i++ {
		addAt(t, s, world.Point{X: 500 + float64(i)*1000, Y: 500})
	}
	ids, err := s.SeedInfections(disease.Cholera(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 4 {
		t.Fatalf("seeded %d, want 4", len(ids))
	}
	seen := map[agents.AgentID]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("id %d seeded twice", id)
		}
		seen[id] = true
	}
	if _, err := s.SeedInfections(&disease.Kind{Name: "bad", Transmissibility: 2}, 1); err == nil {
		t.Error("expected invalid kind to be rejected")
	}
}

func TestPopulate(t *testing.T) {
	land := testLand(t)
	land.Centroids = []world.Centroid{
		{Name: "Broad Street", Position: world.Point{X: 1500, Y: 1500}},
		{Name: "Golden Square", Position: world.Point{X: 4500, Y: 4500}},
	}
	s := NewSimulation(land, entropy.New(9), Options{Behavior: agents.DefaultBehavior()})
	sp := agents.NewSpawner(s.Rand.Derive(1), agents.SpawnConfig{
		PerCentroid: 5,
		Spread:      100,
		Speed:       50,
		Stress:      agents.DefaultStress(),
	})
	n, err := s.Populate(sp)
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 || s.Population() != 10 {
		t.Errorf("populated %d, live %d, want 10", n, s.Population())
	}
	for i, h := range s.Humans() {
		if int(h.ID) != i+1 {
			t.Errorf("slot %d holds id %d", i, h.ID)
		}
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestSim(t, 1)
	if s.Snapshot() != nil {
		t.Fatal("snapshot before publish")
	}
	h := addAt(t, s, world.Point{X: 1000, Y: 1000})
	if err := s.InfectWith(h.ID, disease.Flu()); err != nil {
		t.Fatal(err)
	}
	s.Publish()
	snap := s.Snapshot()
	if snap == nil || len(snap.Humans) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	v := snap.Humans[0]
	if len(v.Diseases) != 1 || v.Diseases[0].Name != "flu" || v.Diseases[0].Stage != "incubating" {
		t.Errorf("diseases = %+v", v.Diseases)
	}
	if snap.Census.Sick != 1 || snap.Stats.Infections != 1 {
		t.Errorf("census = %+v stats = %+v", snap.Census, snap.Stats)
	}

	h.Stress = 9 // later mutation must not leak into the published copy
	if snap.Humans[0].Stress == 9 {
		t.Error("snapshot aliases live state")
	}
}

func TestAcuteCertainTransmissionWithinOneTick(t *testing.T) {
	s := newTestSim(t, 2)
	a := addAt(t, s, world.Point{X: 2000, Y: 2000})
	b := addAt(t, s, world.Point{X: 2008, Y: 2000})
	kind := &disease.Kind{Name: "certain", Transmissibility: 1, Radius: 60, IncubationPeriod: 10, DurationPeriod: 100}
	if err := s.InfectWith(a.ID, kind); err != nil {
		t.Fatal(err)
	}
	a.Diseases["certain"].Stage = disease.Acute

	runUntil(t, s, 1)

	if !b.InfectedWith("certain") {
		t.Fatal("neighbour within radius not infected after one tick")
	}
	if s.Now() != 1 {
		t.Errorf("now = %d, want 1", s.Now())
	}
}

func TestDeadHostStopsSpreading(t *testing.T) {
	s := newTestSim(t, 2)
	a := addAt(t, s, world.Point{X: 2000, Y: 2000})
	b := addAt(t, s, world.Point{X: 2005, Y: 2000})
	kind := &disease.Kind{Name: "certain", Transmissibility: 1, Radius: 60, DurationPeriod: 100}
	if err := s.InfectWith(a.ID, kind); err != nil {
		t.Fatal(err)
	}
	d := a.Diseases["certain"]
	d.Stage = disease.Acute
	a.Alive = false

	runUntil(t, s, 5)

	if b.InfectedWith("certain") {
		t.Error("dead host transmitted")
	}
	if d.Handle().Active() {
		t.Error("dead host's disease still scheduled")
	}
	if d.TimeInStage != 0 {
		t.Errorf("time in stage advanced to %d", d.TimeInStage)
	}
}
