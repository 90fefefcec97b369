package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	params     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stats      TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS terrain_results (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	category      TEXT NOT NULL,
	position      INTEGER NOT NULL,
	ident         TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	latitude_deg  REAL NOT NULL,
	longitude_deg REAL NOT NULL,
	field_elev_ft REAL NOT NULL,
	max_elev_ft   REAL NOT NULL,
	min_elev_ft   REAL NOT NULL,
	delta_ft      REAL NOT NULL,
	PRIMARY KEY (run_id, ident, category)
);

CREATE TABLE IF NOT EXISTS terrain_failures (
	run_id TEXT NOT NULL REFERENCES runs(id),
	ident  TEXT NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_terrain_results_order ON terrain_results(run_id, category, position);
CREATE INDEX IF NOT EXISTS idx_terrain_failures_run_id ON terrain_failures(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params RunParams) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(paramsJSON), string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:        id,
		Status:    RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SaveResults replaces any rows already stored for the same keys.
func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, results []Result, failures []Failure) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save results")
	}
	defer tx.Rollback() //nolint:errcheck

	resStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO terrain_results
		 (run_id, category, position, ident, name, latitude_deg, longitude_deg, field_elev_ft, max_elev_ft, min_elev_ft, delta_ft)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert result")
	}
	defer resStmt.Close() //nolint:errcheck

	for _, r := range results {
		if _, err := resStmt.ExecContext(ctx,
			runID, string(r.Category), r.Position, r.Ident, r.Name,
			r.LatitudeDeg, r.LongitudeDeg, r.FieldElevFt, r.MaxElevFt, r.MinElevFt, r.DeltaFt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", r.Ident)
		}
	}

	for _, f := range failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO terrain_failures (run_id, ident, reason) VALUES (?, ?, ?)`,
			runID, f.Ident, f.Reason,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert failure %s", f.Ident)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save results")
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats pipeline.Stats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET stats = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(statsJSON), string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		reason, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, params, status, stats, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, params, status, stats, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string, category terrain.Category) ([]Result, error) {
	query := `SELECT run_id, category, position, ident, name, latitude_deg, longitude_deg,
		field_elev_ft, max_elev_ft, min_elev_ft, delta_ft
		FROM terrain_results WHERE run_id = ?`
	args := []any{runID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY category, position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list results %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []Result
	for rows.Next() {
		var r Result
		var cat string
		if err := rows.Scan(&r.RunID, &cat, &r.Position, &r.Ident, &r.Name,
			&r.LatitudeDeg, &r.LongitudeDeg, &r.FieldElevFt, &r.MaxElevFt, &r.MinElevFt, &r.DeltaFt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r.Category = terrain.Category(cat)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var paramsJSON string
	var statsJSON sql.NullString

	err := row.Scan(&r.ID, &paramsJSON, &r.Status, &statsJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := decodeRun(&r, []byte(paramsJSON), nullBytes(statsJSON)); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode run")
	}
	return &r, nil
}

func nullBytes(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}

// decodeRun fills the JSON columns shared by both backends.
func decodeRun(r *Run, params, stats []byte) error {
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return eris.Wrap(err, "unmarshal params")
	}
	if len(stats) > 0 {
		r.Stats = &pipeline.Stats{}
		if err := json.Unmarshal(stats, r.Stats); err != nil {
			return eris.Wrap(err, "unmarshal stats")
		}
	}
	return nil
}
