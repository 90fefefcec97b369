package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resultsUpsert = UpsertConfig{
	Table:        "terrain_results",
	Columns:      []string{"run_id", "ident", "category", "delta_ft"},
	ConflictKeys: []string{"run_id", "ident", "category"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, resultsUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "terrain_results",
		ConflictKeys: []string{"ident"},
	}, [][]any{{"KBKW"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "terrain_results",
		Columns: []string{"ident"},
	}, [][]any{{"KBKW"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_terrain_results"}, resultsUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"r1", "KBKW", "mountain", 1250.0}, {"r1", "KBKW", "mountain_top", 640.0}}
	n, err := BulkUpsert(context.Background(), mock, resultsUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_terrain_results"}, resultsUpsert.Columns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, resultsUpsert, [][]any{{"r1", "KBKW", "mountain", 1.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into staging table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertConfig_InsertSQL(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO "terrain_results" ("run_id", "ident", "category", "delta_ft") SELECT "run_id", "ident", "category", "delta_ft" FROM "_stage_terrain_results" ON CONFLICT ("run_id", "ident", "category") DO UPDATE SET "delta_ft" = EXCLUDED."delta_ft"`,
		resultsUpsert.insertSQL())

	keysOnly := UpsertConfig{Table: "terrain.airports", Columns: []string{"ident"}, ConflictKeys: []string{"ident"}}
	assert.Contains(t, keysOnly.insertSQL(), `ON CONFLICT ("ident") DO NOTHING`)
	assert.Contains(t, keysOnly.insertSQL(), `"_stage_terrain_airports"`)
}
