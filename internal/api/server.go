// Package api provides the HTTP API for observing a running simulation.
// GET endpoints are public and read only published snapshots.
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/engine"
	"github.com/talgya/pumpsim/internal/persistence"
	"github.com/talgya/pumpsim/internal/schedule"
)

// SnapshotSource publishes immutable views of the world.
type SnapshotSource interface {
	Snapshot() *engine.Snapshot
}

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      SnapshotSource
	Eng      *engine.Engine  // Optional; enables running/speed reporting and control
	DB       *persistence.DB // Optional; stats history falls back to the snapshot
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	hertz   *server.Hertz
	limiter *RateLimiter
}

// RegisterRoutes mounts every endpoint on h.
func (s *Server) RegisterRoutes(h *server.Hertz) {
	if s.limiter == nil {
		s.limiter = NewRateLimiter(60, time.Minute)
	}
	h.Use(corsMiddleware())

	v1 := h.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/agents", s.handleAgents)
	v1.GET("/agent/:id", s.handleAgent)
	v1.GET("/events", s.handleEvents)
	v1.GET("/stats/history", s.handleStatsHistory)
	v1.GET("/speed", s.handleSpeed)

	// Admin endpoints (POST, require bearer token).
	v1.POST("/speed", RateLimitMiddleware(s.limiter), s.adminOnly(), s.handleSpeed)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.hertz = server.Default(server.WithHostPorts(addr))
	s.RegisterRoutes(s.hertz)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.hertz.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hertz == nil {
		return nil
	}
	return s.hertz.Shutdown(ctx)
}

func corsMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
		ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if string(ctx.Method()) == consts.MethodOptions {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(ctx *app.RequestContext) bool {
	auth := string(ctx.GetHeader("Authorization"))
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly rejects requests without the admin bearer token.
func (s *Server) adminOnly() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if s.AdminKey == "" {
			writeErrorBody(ctx, consts.StatusForbidden, "admin_disabled", "admin endpoints disabled (no PUMPSIM_ADMIN_KEY set)")
			ctx.Abort()
			return
		}
		if !s.checkBearerToken(ctx) {
			writeErrorBody(ctx, consts.StatusUnauthorized, "unauthorized", "unauthorized")
			ctx.Abort()
			return
		}
		ctx.Next(c)
	}
}

// snapshot returns the current snapshot, writing 503 when none exists yet.
func (s *Server) snapshot(ctx *app.RequestContext) *engine.Snapshot {
	snap := s.Sim.Snapshot()
	if snap == nil {
		writeErrorBody(ctx, consts.StatusServiceUnavailable, "not_ready", "no snapshot published yet")
	}
	return snap
}

func (s *Server) handleStatus(c context.Context, ctx *app.RequestContext) {
	snap := s.snapshot(ctx)
	if snap == nil {
		return
	}

	status := map[string]any{
		"name":       "pumpsim",
		"tick":       snap.Tick,
		"sim_time":   snap.Time,
		"day":        schedule.Day(snap.Tick),
		"seed":       snap.Seed,
		"executed":   snap.Executed,
		"rejected":   snap.Rejected,
		"pending":    snap.Pending,
		"population": snap.Census.Population,
		"sick":       snap.Census.Sick,
		"avg_stress": snap.Census.AvgStress,
		"activities": map[string]int{
			agents.Sleeping.String():  snap.Census.Sleeping,
			agents.Traveling.String(): snap.Census.Traveling,
			agents.Working.String():   snap.Census.Working,
			agents.Relaxing.String():  snap.Census.Relaxing,
		},
		"stats":      snap.Stats,
		"facilities": snap.Facilities,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	ctx.JSON(consts.StatusOK, status)
}

type agentSummary struct {
	ID       agents.AgentID      `json:"id"`
	Label    string              `json:"label"`
	X        float64             `json:"x"`
	Y        float64             `json:"y"`
	Activity agents.Activity     `json:"activity"`
	Stress   float64             `json:"stress"`
	Diseases []string            `json:"diseases"`
	Removed  bool                `json:"removed"`
	Cause    agents.RemovalCause `json:"cause"`
}

// handleAgents lists humans. Filters: activity=<name>, sick=true,
// removed=true (default lists only live humans), limit, offset.
func (s *Server) handleAgents(c context.Context, ctx *app.RequestContext) {
	snap := s.snapshot(ctx)
	if snap == nil {
		return
	}
	activity := ctx.Query("activity")
	sickOnly := ctx.Query("sick") == "true"
	withRemoved := ctx.Query("removed") == "true"
	limit := queryInt(ctx, "limit", 100, 1, 5000)
	offset := queryInt(ctx, "offset", 0, 0, 1<<31-1)

	result := []agentSummary{}
	skipped := 0
	for _, h := range snap.Humans {
		if h.Removed && !withRemoved {
			continue
		}
		if activity != "" && h.Activity.String() != activity {
			continue
		}
		if sickOnly && len(h.Diseases) == 0 {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(result) == limit {
			break
		}
		names := make([]string, 0, len(h.Diseases))
		for _, d := range h.Diseases {
			names = append(names, d.Name)
		}
		result = append(result, agentSummary{
			ID:       h.ID,
			Label:    h.Label,
			X:        h.Position.X,
			Y:        h.Position.Y,
			Activity: h.Activity,
			Stress:   h.Stress,
			Diseases: names,
			Removed:  h.Removed,
			Cause:    h.Cause,
		})
	}
	ctx.JSON(consts.StatusOK, result)
}

func (s *Server) handleAgent(c context.Context, ctx *app.RequestContext) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_id", "agent id must be a positive integer")
		return
	}
	snap := s.snapshot(ctx)
	if snap == nil {
		return
	}
	// Humans are stored in ID order starting at 1.
	if id > uint64(len(snap.Humans)) || snap.Humans[id-1].ID != agents.AgentID(id) {
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", fmt.Sprintf("agent %d not found", id))
		return
	}
	ctx.JSON(consts.StatusOK, snap.Humans[id-1])
}

// handleEvents returns the most recent events. Filters: category, limit.
func (s *Server) handleEvents(c context.Context, ctx *app.RequestContext) {
	snap := s.snapshot(ctx)
	if snap == nil {
		return
	}
	limit := queryInt(ctx, "limit", 50, 1, 500)

	events := snap.Events
	if category := ctx.Query("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	out := make([]engine.Event, 0, len(events)-start)
	out = append(out, events[start:]...)
	ctx.JSON(consts.StatusOK, out)
}

// handleStatsHistory returns daily rows with from <= day <= to, at most limit.
func (s *Server) handleStatsHistory(c context.Context, ctx *app.RequestContext) {
	from := int64(queryInt(ctx, "from", 0, 0, 1<<31-1))
	to := int64(queryInt(ctx, "to", 1<<31-1, 0, 1<<31-1))
	limit := queryInt(ctx, "limit", 30, 1, 1000)

	var rows []engine.DailyStats
	if s.DB != nil {
		var err error
		rows, err = s.DB.History()
		if err != nil {
			slog.Error("stats history query failed", "error", err)
			rows = nil
		}
	}
	if rows == nil {
		snap := s.snapshot(ctx)
		if snap == nil {
			return
		}
		rows = snap.History
	}

	out := []engine.DailyStats{}
	for _, r := range rows {
		if r.Day < from || r.Day > to {
			continue
		}
		out = append(out, r)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	ctx.JSON(consts.StatusOK, out)
}

func (s *Server) handleSpeed(c context.Context, ctx *app.RequestContext) {
	if s.Eng == nil {
		writeErrorBody(ctx, consts.StatusServiceUnavailable, "no_engine", "engine not attached")
		return
	}
	if string(ctx.Method()) == consts.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
			writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			writeErrorBody(ctx, consts.StatusBadRequest, "invalid_speed", "speed must be 0-1000")
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}
	ctx.JSON(consts.StatusOK, map[string]float64{"speed": s.Eng.Speed()})
}

// queryInt parses an integer query parameter, falling back to def when the
// value is missing or outside [lo, hi].
func queryInt(ctx *app.RequestContext, key string, def, lo, hi int) int {
	raw := ctx.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return def
	}
	return n
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
