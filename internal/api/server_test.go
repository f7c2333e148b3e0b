package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route/param"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/engine"
	"github.com/talgya/pumpsim/internal/world"
)

type fakeSource struct{ snap *engine.Snapshot }

func (f fakeSource) Snapshot() *engine.Snapshot { return f.snap }

func testSnapshot() *engine.Snapshot {
	return &engine.Snapshot{
		Tick: 300,
		Time: "Day 1, 1:00",
		Seed: 42,
		Humans: []engine.HumanView{
			{ID: 1, Label: "a", Activity: agents.Sleeping, Alive: true},
			{ID: 2, Label: "b", Activity: agents.Working, Alive: true, Stress: 7,
				Diseases: []engine.DiseaseView{{Name: "Cholera", Stage: "acute"}}},
			{ID: 3, Label: "c", Activity: agents.Relaxing, Removed: true, Cause: agents.Died},
			{ID: 4, Label: "d", Activity: agents.Working, Alive: true, Position: world.Point{X: 5, Y: 6}},
		},
		Events: []engine.Event{
			{Seq: 1, Tick: 1, Category: "infection", Description: "agent 2 infected with Cholera"},
			{Seq: 2, Tick: 200, Category: "death", Description: "agent 3 died in care"},
			{Seq: 3, Tick: 250, Category: "stuck", Description: "agent 4 parked"},
		},
		History: []engine.DailyStats{
			{Day: 1, Tick: 288, Population: 4},
			{Day: 2, Tick: 576, Population: 3},
			{Day: 3, Tick: 864, Population: 3},
		},
		Census: engine.DailyStats{Population: 3, Sick: 1, Working: 2, Sleeping: 1},
	}
}

func newTestServer(snap *engine.Snapshot) *Server {
	return &Server{Sim: fakeSource{snap: snap}}
}

func decode(t *testing.T, ctx *app.RequestContext, v any) {
	t.Helper()
	if err := json.Unmarshal(ctx.Response.Body(), v); err != nil {
		t.Fatalf("decode %q: %v", ctx.Response.Body(), err)
	}
}

func get(uri string) *app.RequestContext {
	ctx := &app.RequestContext{}
	ctx.Request.SetRequestURI(uri)
	return ctx
}

func TestStatusNotReady(t *testing.T) {
	s := newTestServer(nil)
	ctx := get("/api/v1/status")
	s.handleStatus(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusServiceUnavailable; got != want {
		t.Fatalf("status = %d, want %d", got, want)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, ctx, &body)
	if body.Error.Code != "not_ready" {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(testSnapshot())
	ctx := get("/api/v1/status")
	s.handleStatus(context.Background(), ctx)

	if got := ctx.Response.StatusCode(); got != consts.StatusOK {
		t.Fatalf("status = %d", got)
	}
	var body struct {
		Tick       int64          `json:"tick"`
		Population int            `json:"population"`
		Sick       int            `json:"sick"`
		Activities map[string]int `json:"activities"`
	}
	decode(t, ctx, &body)
	if body.Tick != 300 || body.Population != 3 || body.Sick != 1 || body.Activities["working"] != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestAgentsFilters(t *testing.T) {
	tests := []struct {
		uri  string
		want []uint64
	}{
		{"/api/v1/agents", []uint64{1, 2, 4}},
		{"/api/v1/agents?removed=true", []uint64{1, 2, 3, 4}},
		{"/api/v1/agents?sick=true", []uint64{2}},
		{"/api/v1/agents?activity=working", []uint64{2, 4}},
		{"/api/v1/agents?limit=1&offset=1", []uint64{2}},
		{"/api/v1/agents?activity=flying", []uint64{}},
	}
	s := newTestServer(testSnapshot())
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			ctx := get(tt.uri)
			s.handleAgents(context.Background(), ctx)
			var body []struct {
				ID       uint64   `json:"id"`
				Activity string   `json:"activity"`
				Diseases []string `json:"diseases"`
			}
			decode(t, ctx, &body)
			if len(body) != len(tt.want) {
				t.Fatalf("got %d agents, want %d", len(body), len(tt.want))
			}
			for i, a := range body {
				if a.ID != tt.want[i] {
					t.Errorf("agent %d = %d, want %d", i, a.ID, tt.want[i])
				}
			}
		})
	}
}

func TestAgentDetail(t *testing.T) {
	s := newTestServer(testSnapshot())

	tests := []struct {
		id     string
		status int
	}{
		{"2", consts.StatusOK},
		{"3", consts.StatusOK},
		{"9", consts.StatusNotFound},
		{"0", consts.StatusBadRequest},
		{"abc", consts.StatusBadRequest},
	}
	for _, tt := range tests {
		ctx := &app.RequestContext{}
		ctx.Params = param.Params{{Key: "id", Value: tt.id}}
		s.handleAgent(context.Background(), ctx)
		if got := ctx.Response.StatusCode(); got != tt.status {
			t.Errorf("id %s: status = %d, want %d", tt.id, got, tt.status)
		}
	}

	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "id", Value: "2"}}
	s.handleAgent(context.Background(), ctx)
	var body struct {
		ID       uint64  `json:"id"`
		Activity string  `json:"activity"`
		Stress   float64 `json:"stress"`
		Diseases []struct {
			Name  string `json:"name"`
			Stage string `json:"stage"`
		} `json:"diseases"`
	}
	decode(t, ctx, &body)
	if body.ID != 2 || body.Activity != "working" || body.Stress != 7 || len(body.Diseases) != 1 || body.Diseases[0].Stage != "acute" {
		t.Errorf("body = %+v", body)
	}
}

func TestEvents(t *testing.T) {
	s := newTestServer(testSnapshot())

	ctx := get("/api/v1/events?limit=2")
	s.handleEvents(context.Background(), ctx)
	var body []engine.Event
	decode(t, ctx, &body)
	if len(body) != 2 || body[0].Seq != 2 || body[1].Seq != 3 {
		t.Errorf("events = %+v", body)
	}

	ctx = get("/api/v1/events?category=death")
	s.handleEvents(context.Background(), ctx)
	body = nil
	decode(t, ctx, &body)
	if len(body) != 1 || body[0].Category != "death" {
		t.Errorf("events = %+v", body)
	}

	ctx = get("/api/v1/events?category=nothing")
	s.handleEvents(context.Background(), ctx)
	if got := string(ctx.Response.Body()); got != "[]" {
		t.Errorf("empty filter body = %s, want []", got)
	}
}

func TestStatsHistoryFromSnapshot(t *testing.T) {
	s := newTestServer(testSnapshot())

	ctx := get("/api/v1/stats/history?from=2&to=3")
	s.handleStatsHistory(context.Background(), ctx)
	var body []engine.DailyStats
	decode(t, ctx, &body)
	if len(body) != 2 || body[0].Day != 2 || body[1].Day != 3 {
		t.Errorf("history = %+v", body)
	}

	ctx = get("/api/v1/stats/history?limit=1")
	s.handleStatsHistory(context.Background(), ctx)
	body = nil
	decode(t, ctx, &body)
	if len(body) != 1 || body[0].Day != 3 {
		t.Errorf("history = %+v", body)
	}
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		header  string
		status  int
		aborted bool
	}{
		{"disabled", "", "Bearer x", consts.StatusForbidden, true},
		{"missing", "secret", "", consts.StatusUnauthorized, true},
		{"wrong", "secret", "Bearer nope", consts.StatusUnauthorized, true},
		{"ok", "secret", "Bearer secret", consts.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{AdminKey: tt.key}
			ctx := &app.RequestContext{}
			if tt.header != "" {
				ctx.Request.Header.Set("Authorization", tt.header)
			}
			s.adminOnly()(context.Background(), ctx)
			if got := ctx.Response.StatusCode(); got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
			if ctx.IsAborted() != tt.aborted {
				t.Errorf("aborted = %v, want %v", ctx.IsAborted(), tt.aborted)
			}
		})
	}
}

func TestSpeed(t *testing.T) {
	eng := engine.NewEngine(nil)
	s := &Server{Sim: fakeSource{}, Eng: eng}

	ctx := &app.RequestContext{}
	ctx.Request.Header.SetMethod(consts.MethodPost)
	ctx.Request.SetBody([]byte(`{"speed":4}`))
	s.handleSpeed(context.Background(), ctx)
	if got := ctx.Response.StatusCode(); got != consts.StatusOK {
		t.Fatalf("status = %d", got)
	}
	if eng.Speed() != 4 {
		t.Errorf("speed = %v, want 4", eng.Speed())
	}

	ctx = &app.RequestContext{}
	ctx.Request.Header.SetMethod(consts.MethodPost)
	ctx.Request.SetBody([]byte(`{"speed":-1}`))
	s.handleSpeed(context.Background(), ctx)
	if got := ctx.Response.StatusCode(); got != consts.StatusBadRequest {
		t.Errorf("status = %d, want 400", got)
	}
	if eng.Speed() != 4 {
		t.Errorf("speed changed on bad request: %v", eng.Speed())
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two requests rejected")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("third request allowed")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other client limited")
	}
	if got := rl.RetryAfter("1.2.3.4"); got != 61 {
		t.Errorf("retry after = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Error("request rejected after window reset")
	}
}
