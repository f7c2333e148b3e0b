// Command pumpsim runs the epidemic simulation: humans living their daily
// routine on a generated district while a disease spreads among them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/pumpsim/internal/agents"
	"github.com/talgya/pumpsim/internal/api"
	"github.com/talgya/pumpsim/internal/engine"
	"github.com/talgya/pumpsim/internal/entropy"
	"github.com/talgya/pumpsim/internal/persistence"
	"github.com/talgya/pumpsim/internal/schedule"
	"github.com/talgya/pumpsim/internal/tuning"
	"github.com/talgya/pumpsim/internal/world"
)

const defaultTuningPath = "configs/tuning.yaml"

// spawnStream offsets the population stream from the run seed.
const spawnStream = 300

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("pumpsim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Configuration ─────────────────────────────────────────────────
	cfg, err := loadTuning()
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = entropy.CryptoSeed()
	}
	rng := entropy.New(seed)
	slog.Info("pumpsim starting", "seed", seed, "ticks", cfg.Ticks, "until", schedule.SimTime(cfg.Ticks))

	// ── Landscape (always regenerated, deterministic from seed) ───────
	slog.Info("generating landscape...")
	land := world.Generate(cfg.GenConfig(seed))
	slog.Info("landscape ready",
		"size", fmt.Sprintf("%sm x %sm", humanize.Comma(int64(land.Width)), humanize.Comma(int64(land.Height))),
		"land", fmt.Sprintf("%.1f%%", land.LandFraction()*100),
		"centroids", len(land.Centroids),
		"facilities", len(land.Facilities),
	)
	for _, c := range land.Centroids {
		slog.Debug("centroid", "name", c.Name, "position", c.Position, "score", fmt.Sprintf("%.3f", c.Score))
	}

	// ── Population and outbreak ───────────────────────────────────────
	sim := engine.NewSimulation(land, rng, engine.Options{
		Behavior:    cfg.Activity,
		PlannerStep: cfg.Landscape.PlannerStep,
		GridCell:    cfg.Landscape.GridCell,
		Strict:      cfg.Strict,
	})

	spawnCfg, err := cfg.SpawnConfig()
	if err != nil {
		return err
	}
	if _, err := sim.Populate(agents.NewSpawner(rng.Derive(spawnStream), spawnCfg)); err != nil {
		return err
	}
	for _, o := range cfg.SeedInfections {
		if _, err := sim.SeedInfections(cfg.Kind(o.Disease), o.Cases); err != nil {
			return err
		}
	}

	// ── Execution trace ───────────────────────────────────────────────
	if cfg.Storage.TraceDir != "" {
		tw, err := persistence.NewTraceWriter(cfg.Storage.TraceDir, "trace", seed)
		if err != nil {
			return fmt.Errorf("open trace: %w", err)
		}
		defer func() {
			if err := tw.Close(); err != nil {
				slog.Error("trace close failed", "error", err)
			}
			slog.Info("trace written", "path", tw.Path(), "events", humanize.Comma(int64(tw.Lines())))
		}()
		sim.Sched.SetTrace(tw.Fired)
	}

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.Storage.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
			return err
		}
		db, err = persistence.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.Storage.DBPath)

		if err := db.SaveMeta("started_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
		// Auto-save every sim-day.
		sim.OnDay = func(engine.DailyStats) {
			sim.Publish()
			if err := db.SaveSnapshot(sim.Snapshot()); err != nil {
				slog.Error("daily save failed", "error", err)
			}
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(sim)
	eng.Until = cfg.Ticks
	eng.Interval = cfg.Interval()
	eng.OnHour = func(schedule.Tick) { sim.Publish() }
	sim.Publish()

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.Port > 0 {
		adminKey := os.Getenv("PUMPSIM_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("PUMPSIM_ADMIN_KEY not set; admin POST endpoints will be disabled")
		}
		apiServer := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			Port:     cfg.API.Port,
			AdminKey: adminKey,
		}
		apiServer.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Shutdown(ctx); err != nil {
				slog.Error("HTTP shutdown failed", "error", err)
			}
		}()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}

	// ── Run ───────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n%s humans live around %d centroids; %d facilities treat the sick.\n",
		humanize.Comma(int64(sim.Population())), len(land.Centroids), len(land.Facilities))
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	start := time.Now()
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// Final save on shutdown.
	snap := sim.Snapshot()
	if db != nil {
		slog.Info("final save...")
		if err := db.SaveSnapshot(snap); err != nil {
			slog.Error("final save failed", "error", err)
		}
	}

	fmt.Printf("\nStopped at %s after %s events in %s.\n",
		snap.Time, humanize.Comma(int64(snap.Executed)), time.Since(start).Round(time.Millisecond))
	fmt.Printf("Infections %d, recoveries %d, deaths %d, departures %d, treatments %d, stuck %d.\n",
		snap.Stats.Infections, snap.Stats.Recoveries, snap.Stats.Deaths,
		snap.Stats.Departures, snap.Stats.Treatments, snap.Stats.Stuck)
	return nil
}

// loadTuning reads the scenario file named by PUMPSIM_TUNING (or the default
// path when present) and applies the remaining environment overrides.
func loadTuning() (tuning.Tuning, error) {
	cfg := tuning.Default()
	path := os.Getenv("PUMPSIM_TUNING")
	if path == "" {
		if _, err := os.Stat(defaultTuningPath); err == nil {
			path = defaultTuningPath
		}
	}
	if path != "" {
		var err error
		cfg, err = tuning.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load tuning: %w", err)
		}
		slog.Info("tuning loaded", "path", path)
	} else {
		slog.Info("no tuning file, using defaults")
	}

	if v := os.Getenv("PUMPSIM_DB"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("PUMPSIM_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("PUMPSIM_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("PUMPSIM_TICKS"); v != "" {
		ticks, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("PUMPSIM_TICKS: %w", err)
		}
		cfg.Ticks = schedule.Tick(ticks)
	}
	if v := os.Getenv("PUMPSIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("PUMPSIM_SEED: %w", err)
		}
		cfg.Seed = seed
	}
	return cfg, cfg.Validate()
}
