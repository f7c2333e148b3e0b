// Package persistence provides SQLite-based results storage and the
// compressed execution trace.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/pumpsim/internal/engine"
	"github.com/talgya/pumpsim/internal/schedule"
)

// DB wraps a SQLite connection for run results.
type DB struct {
	conn *sqlx.DB
}

// HumanRow is one stored human.
type HumanRow struct {
	ID           uint64  `db:"id"`
	Label        string  `db:"label"`
	PosX         float64 `db:"pos_x"`
	PosY         float64 `db:"pos_y"`
	HomeX        float64 `db:"home_x"`
	HomeY        float64 `db:"home_y"`
	Activity     string  `db:"activity"`
	Stress       float64 `db:"stress"`
	Treated      int     `db:"treated"`
	Alive        bool    `db:"alive"`
	Removed      bool    `db:"removed"`
	Cause        string  `db:"cause"`
	DiseasesJSON string  `db:"diseases_json"`
	ChartJSON    string  `db:"chart_json"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS humans (
		id INTEGER PRIMARY KEY,
		label TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		home_x REAL NOT NULL,
		home_y REAL NOT NULL,
		activity TEXT NOT NULL,
		stress REAL NOT NULL,
		treated INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		removed INTEGER NOT NULL,
		cause TEXT NOT NULL,
		diseases_json TEXT NOT NULL,
		chart_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		day INTEGER PRIMARY KEY,
		tick INTEGER NOT NULL,
		population INTEGER NOT NULL,
		sick INTEGER NOT NULL,
		sleeping INTEGER NOT NULL,
		traveling INTEGER NOT NULL,
		working INTEGER NOT NULL,
		relaxing INTEGER NOT NULL,
		avg_stress REAL NOT NULL,
		infections INTEGER NOT NULL,
		recoveries INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		departures INTEGER NOT NULL,
		treatments INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	CREATE INDEX IF NOT EXISTS idx_humans_removed ON humans(removed);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveHumans writes all humans to the database (full replace).
func (db *DB) SaveHumans(humans []engine.HumanView) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM humans"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO humans
		(id, label, pos_x, pos_y, home_x, home_y, activity, stress, treated,
		 alive, removed, cause, diseases_json, chart_json)
		VALUES (:id, :label, :pos_x, :pos_y, :home_x, :home_y, :activity, :stress, :treated,
		 :alive, :removed, :cause, :diseases_json, :chart_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range humans {
		row, err := toRow(h)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert human %d: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

func toRow(h engine.HumanView) (HumanRow, error) {
	diseasesJSON, err := json.Marshal(h.Diseases)
	if err != nil {
		return HumanRow{}, fmt.Errorf("human %d diseases: %w", h.ID, err)
	}
	chartJSON, err := json.Marshal(h.Chart)
	if err != nil {
		return HumanRow{}, fmt.Errorf("human %d chart: %w", h.ID, err)
	}
	return HumanRow{
		ID:           uint64(h.ID),
		Label:        h.Label,
		PosX:         h.Position.X,
		PosY:         h.Position.Y,
		HomeX:        h.Home.X,
		HomeY:        h.Home.Y,
		Activity:     h.Activity.String(),
		Stress:       h.Stress,
		Treated:      h.Treated,
		Alive:        h.Alive,
		Removed:      h.Removed,
		Cause:        h.Cause.String(),
		DiseasesJSON: string(diseasesJSON),
		ChartJSON:    string(chartJSON),
	}, nil
}

// Humans returns every stored human in ID order.
func (db *DB) Humans() ([]HumanRow, error) {
	var rows []HumanRow
	err := db.conn.Select(&rows, "SELECT * FROM humans ORDER BY id")
	return rows, err
}

// SaveEvents appends events to the database. Events already stored are
// skipped, so overlapping batches are safe.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT OR IGNORE INTO events (seq, tick, description, category) VALUES (?, ?, ?, ?)",
			e.Seq, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveDailyStats writes history rows, replacing any row for the same day.
func (db *DB) SaveDailyStats(rows []engine.DailyStats) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range rows {
		_, err := tx.NamedExec(`INSERT OR REPLACE INTO daily_stats
			(day, tick, population, sick, sleeping, traveling, working, relaxing,
			 avg_stress, infections, recoveries, deaths, departures, treatments)
			VALUES (:day, :tick, :population, :sick, :sleeping, :traveling, :working, :relaxing,
			 :avg_stress, :infections, :recoveries, :deaths, :departures, :treatments)`, r)
		if err != nil {
			return fmt.Errorf("insert day %d: %w", r.Day, err)
		}
	}

	return tx.Commit()
}

// History returns the stored daily stats in day order.
func (db *DB) History() ([]engine.DailyStats, error) {
	var rows []engine.DailyStats
	err := db.conn.Select(&rows, "SELECT * FROM daily_stats ORDER BY day")
	return rows, err
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// SaveSnapshot performs a full save of a published snapshot.
func (db *DB) SaveSnapshot(snap *engine.Snapshot) error {
	slog.Info("saving run state", "humans", len(snap.Humans), "tick", snap.Tick)

	if err := db.SaveHumans(snap.Humans); err != nil {
		return fmt.Errorf("save humans: %w", err)
	}
	if err := db.SaveEvents(snap.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveDailyStats(snap.History); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	meta := map[string]string{
		"last_tick": strconv.FormatInt(int64(snap.Tick), 10),
		"sim_time":  schedule.SimTime(snap.Tick),
		"seed":      strconv.FormatInt(snap.Seed, 10),
		"executed":  strconv.FormatUint(snap.Executed, 10),
		"rejected":  strconv.FormatUint(snap.Rejected, 10),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	slog.Info("run state saved")
	return nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT seq, tick, description, category FROM events ORDER BY seq DESC LIMIT ?",
		limit,
	)
	return events, err
}
