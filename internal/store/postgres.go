package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/terrain-cli/internal/db"
	"github.com/sells-group/terrain-cli/internal/pipeline"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// Result and failure tables.
const (
	resultsTable  = "terrain_results"
	failuresTable = "terrain_failures"
)

var resultColumns = []string{
	"run_id", "category", "position", "ident", "name", "latitude_deg", "longitude_deg",
	"field_elev_ft", "max_elev_ft", "min_elev_ft", "delta_ft",
}

var failureColumns = []string{"run_id", "ident", "reason"}

var resultsUpsert = db.UpsertConfig{
	Table:        resultsTable,
	Columns:      resultColumns,
	ConflictKeys: []string{"run_id", "ident", "category"},
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":   `INSERT INTO runs (id, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_run": `UPDATE runs SET stats = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":      `SELECT id, params, status, stats, error, created_at, updated_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	params     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stats      JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS terrain_results (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	category      TEXT NOT NULL,
	position      INTEGER NOT NULL,
	ident         TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	latitude_deg  DOUBLE PRECISION NOT NULL,
	longitude_deg DOUBLE PRECISION NOT NULL,
	field_elev_ft DOUBLE PRECISION NOT NULL,
	max_elev_ft   DOUBLE PRECISION NOT NULL,
	min_elev_ft   DOUBLE PRECISION NOT NULL,
	delta_ft      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, ident, category)
);

CREATE TABLE IF NOT EXISTS terrain_failures (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	ident  TEXT NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_terrain_results_order ON terrain_results(run_id, category, position);
CREATE INDEX IF NOT EXISTS idx_terrain_failures_run_id ON terrain_failures(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params RunParams) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, paramsJSON, string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{
		ID:        id,
		Status:    RunStatusRunning,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SaveResults upserts results through a staging table and appends failures
// with COPY.
func (s *PostgresStore) SaveResults(ctx context.Context, runID string, results []Result, failures []Failure) error {
	resRows := make([][]any, len(results))
	for i, r := range results {
		resRows[i] = []any{
			runID, string(r.Category), r.Position, r.Ident, r.Name, r.LatitudeDeg, r.LongitudeDeg,
			r.FieldElevFt, r.MaxElevFt, r.MinElevFt, r.DeltaFt,
		}
	}
	if _, err := db.BulkUpsert(ctx, s.pool, resultsUpsert, resRows); err != nil {
		return eris.Wrapf(err, "postgres: save results %s", runID)
	}

	failRows := make([][]any, len(failures))
	for i, f := range failures {
		failRows[i] = []any{runID, f.Ident, f.Reason}
	}
	if _, err := db.CopyFrom(ctx, s.pool, failuresTable, failureColumns, failRows); err != nil {
		return eris.Wrapf(err, "postgres: save failures %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats pipeline.Stats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET stats = $1, status = $2, updated_at = $3 WHERE id = $4`,
		statsJSON, string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		reason, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	var status string
	var params, stats []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, params, status, stats, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &params, &status, &stats, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	r.Status = RunStatus(status)
	if err := decodeRun(&r, params, stats); err != nil {
		return nil, eris.Wrap(err, "postgres: decode run")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, params, status, stats, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var params, stats []byte
		if err := rows.Scan(&r.ID, &params, &status, &stats, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = RunStatus(status)
		if err := decodeRun(&r, params, stats); err != nil {
			return nil, eris.Wrap(err, "postgres: decode run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string, category terrain.Category) ([]Result, error) {
	query := `SELECT run_id, category, position, ident, name, latitude_deg, longitude_deg,
		field_elev_ft, max_elev_ft, min_elev_ft, delta_ft
		FROM terrain_results WHERE run_id = $1`
	args := []any{runID}
	if category != "" {
		query += ` AND category = $2`
		args = append(args, string(category))
	}
	query += ` ORDER BY category, position`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list results %s", runID)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var cat string
		if err := rows.Scan(&r.RunID, &cat, &r.Position, &r.Ident, &r.Name,
			&r.LatitudeDeg, &r.LongitudeDeg, &r.FieldElevFt, &r.MaxElevFt, &r.MinElevFt, &r.DeltaFt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r.Category = terrain.Category(cat)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}
