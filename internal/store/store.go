// Package store archives scenarios and simulation run outcomes in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/building-sim/core"
	"github.com/signalsfoundry/building-sim/model"
)

// ErrNotFound is returned when a scenario or run does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite connection.
type Store struct {
	db *sqlx.DB
}

// Open opens or creates a SQLite database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = path
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// :memory: databases exist per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenarios (
		name TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		document TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		building TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		ticks INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS run_agents (
		run_id TEXT NOT NULL REFERENCES runs(id),
		agent_id TEXT NOT NULL,
		behavior TEXT NOT NULL,
		status TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		level TEXT NOT NULL,
		PRIMARY KEY (run_id, agent_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveScenario stores the scenario document under its name, replacing any
// previous version.
func (s *Store) SaveScenario(ctx context.Context, sc *core.Scenario) error {
	if sc == nil || sc.Name == "" {
		return fmt.Errorf("save scenario: name is required")
	}
	doc, err := sc.MarshalDocument()
	if err != nil {
		return fmt.Errorf("save scenario %q: %w", sc.Name, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scenarios (name, filename, document, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET filename = excluded.filename, document = excluded.document, updated_at = excluded.updated_at`,
		sc.Name, sc.Filename, string(doc), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save scenario %q: %w", sc.Name, err)
	}
	return nil
}

type scenarioRow struct {
	Name      string `db:"name"`
	Filename  string `db:"filename"`
	Document  string `db:"document"`
	UpdatedAt int64  `db:"updated_at"`
}

// LoadScenario returns the archived scenario with the given name.
func (s *Store) LoadScenario(ctx context.Context, name string) (*core.Scenario, error) {
	var row scenarioRow
	err := s.db.GetContext(ctx, &row, `SELECT name, filename, document, updated_at FROM scenarios WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scenario %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", name, err)
	}
	sc := core.NewScenario(row.Name, row.Filename)
	if err := sc.UnmarshalDocument([]byte(row.Document)); err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", name, err)
	}
	return sc, nil
}

// ListScenarios returns the archived scenario names in order.
func (s *Store) ListScenarios(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT name FROM scenarios ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	return names, nil
}

// Run is one simulation run.
type Run struct {
	ID         string
	Scenario   string
	Building   string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Ticks      int
	Agents     []AgentOutcome
}

// AgentOutcome is the final state of one agent in a run.
type AgentOutcome struct {
	AgentID  string  `db:"agent_id"`
	Behavior string  `db:"behavior"`
	Status   string  `db:"status"`
	X        float64 `db:"x"`
	Y        float64 `db:"y"`
	Level    string  `db:"level"`
}

// OutcomeFor builds an AgentOutcome from an agent's final state.
func OutcomeFor(agentID, behavior, status string, state model.ModelState) AgentOutcome {
	return AgentOutcome{
		AgentID:  agentID,
		Behavior: behavior,
		Status:   status,
		X:        state.X,
		Y:        state.Y,
		Level:    state.Level,
	}
}

type runRow struct {
	ID         string        `db:"id"`
	Scenario   string        `db:"scenario"`
	Building   string        `db:"building"`
	StartedAt  int64         `db:"started_at"`
	FinishedAt sql.NullInt64 `db:"finished_at"`
	Ticks      int           `db:"ticks"`
}

// BeginRun records the start of a run and returns its generated ID.
func (s *Store) BeginRun(ctx context.Context, scenario, building string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO runs (id, scenario, building, started_at, ticks)
		VALUES (:id, :scenario, :building, :started_at, 0)`, runRow{
		ID:        id,
		Scenario:  scenario,
		Building:  building,
		StartedAt: startedAt.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// FinishRun stores the run's tick count and per-agent outcomes.
func (s *Store) FinishRun(ctx context.Context, id string, ticks int, finishedAt time.Time, outcomes []AgentOutcome) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE runs SET finished_at = ?, ticks = ? WHERE id = ?`, finishedAt.UnixMilli(), ticks, id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT OR REPLACE INTO run_agents
		(run_id, agent_id, behavior, status, x, y, level) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	defer stmt.Close()
	for _, o := range outcomes {
		if _, err := stmt.ExecContext(ctx, id, o.AgentID, o.Behavior, o.Status, o.X, o.Y, o.Level); err != nil {
			return fmt.Errorf("finish run %s agent %s: %w", id, o.AgentID, err)
		}
	}
	return tx.Commit()
}

// GetRun returns a run with its agent outcomes ordered by agent ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT id, scenario, building, started_at, finished_at, ticks FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}

	run := Run{
		ID:        row.ID,
		Scenario:  row.Scenario,
		Building:  row.Building,
		StartedAt: time.UnixMilli(row.StartedAt).UTC(),
		Ticks:     row.Ticks,
	}
	if row.FinishedAt.Valid {
		run.FinishedAt = time.UnixMilli(row.FinishedAt.Int64).UTC()
	}
	if err := s.db.SelectContext(ctx, &run.Agents, `SELECT agent_id, behavior, status, x, y, level
		FROM run_agents WHERE run_id = ? ORDER BY agent_id`, id); err != nil {
		return Run{}, fmt.Errorf("get run %s agents: %w", id, err)
	}
	return run, nil
}

// RecentRuns returns up to limit run IDs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return ids, nil
}
