package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-Sylos/IndexTree/internal/types"
)

var testContext = types.QueryContext{
	MeasureID: 1, IndexID: 701, PeriodID: 7, Terms: "67,749", TermID: 67, DicIDs: "247783,741917", Idx: 0,
}

func node(id, parent string, ordinal int, leaf bool, payload string) *types.TreeNode {
	return &types.TreeNode{
		ID:         id,
		Context:    testContext,
		ParentID:   parent,
		Label:      "label " + id,
		IsLeaf:     leaf,
		Ordinal:    ordinal,
		RawPayload: json.RawMessage(payload),
	}
}

// sampleTree is R -> {A, B}
func sampleTree() []*types.TreeNode {
	return []*types.TreeNode{
		node("R", "", 0, false, `{"id":"R","leaf":"false","y2020":"100"}`),
		node("A", "R", 0, true, `{"id":"A","leaf":"true","y2021":"5"}`),
		node("B", "R", 1, true, `{"id":"B","leaf":"true"}`),
	}
}

func openStores(t *testing.T) map[string]*DB {
	t.Helper()
	ctx := context.Background()

	stores := map[string]*DB{}
	for _, tc := range []struct {
		driver string
		dsn    string
	}{
		{driver: types.DriverSQLite, dsn: ":memory:"},
		{driver: types.DriverSQLite, dsn: filepath.Join(t.TempDir(), "cache.sqlite")},
		{driver: types.DriverDuckDB, dsn: ""},
	} {
		db, err := New(ctx, tc.driver, tc.dsn)
		require.NoError(t, err, tc.driver)
		t.Cleanup(func() { db.Close() })
		stores[tc.driver+":"+filepath.Base(tc.dsn)] = db
	}
	return stores
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), "oracle", "")
	require.Error(t, err)

	_, err = New(context.Background(), types.DriverPostgres, "")
	require.Error(t, err)
}

func TestBuildTableSQL(t *testing.T) {
	for _, driver := range []string{types.DriverDuckDB, types.DriverPostgres, types.DriverSQLite} {
		ddl, err := BuildTableSQL(driver)
		require.NoError(t, err)
		assert.Contains(t, ddl, "PRIMARY KEY (id, measure_id, index_id, period_id, terms, term_id, dic_ids, idx, parent_id)")
	}

	ddl, _ := BuildTableSQL(types.DriverPostgres)
	assert.Contains(t, ddl, "payload JSONB")

	_, err := BuildTableSQL("mysql")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "SELECT 1 FROM t WHERE a = $1 AND b = $12"
	assert.Equal(t, q, rebind(types.DriverPostgres, q))
	assert.Equal(t, q, rebind(types.DriverDuckDB, q))
	assert.Equal(t, "SELECT 1 FROM t WHERE a = ? AND b = ?", rebind(types.DriverSQLite, q))
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, db := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			written, err := db.UpsertNodes(ctx, sampleTree())
			require.NoError(t, err)
			assert.Equal(t, 3, written)

			root, err := db.GetRoot(ctx, testContext)
			require.NoError(t, err)
			assert.Equal(t, "R", root.ID)
			assert.Equal(t, "label R", root.Label)
			assert.False(t, root.IsLeaf)
			assert.Equal(t, map[string]string{"y2020": "100"}, root.DateAttributes)
			assert.Equal(t, testContext, root.Context)

			children, err := db.GetChildren(ctx, testContext, "R")
			require.NoError(t, err)
			require.Len(t, children, 2)
			assert.Equal(t, "A", children[0].ID)
			assert.Equal(t, "B", children[1].ID)
			assert.True(t, children[0].IsLeaf)
			assert.Equal(t, map[string]string{"y2021": "5"}, children[0].DateAttributes)
			assert.JSONEq(t, `{"id":"B","leaf":"true"}`, string(children[1].RawPayload))

			all, err := db.ListContext(ctx, testContext)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			info, err := db.GetTableInfo(ctx)
			require.NoError(t, err)
			require.Len(t, info, 1)
			assert.Equal(t, TableName, info[0].Name)
			assert.Equal(t, 3, info[0].RowCount)
		})
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()

	for name, db := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.UpsertNodes(ctx, sampleTree())
			require.NoError(t, err)

			again := sampleTree()
			again[1].Label = "renamed"
			_, err = db.UpsertNodes(ctx, again)
			require.NoError(t, err)

			count, err := db.CountNodes(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, count)

			children, err := db.GetChildren(ctx, testContext, "R")
			require.NoError(t, err)
			require.Len(t, children, 2)
			assert.Equal(t, "renamed", children[0].Label, "later writes overwrite")
		})
	}
}

func TestUpsertCollapsesDuplicatesInBatch(t *testing.T) {
	ctx := context.Background()

	for name, db := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			first := node("X", "", 0, true, `{"id":"X","leaf":"true"}`)
			second := node("X", "", 0, true, `{"id":"X","leaf":"true","y2020":"9"}`)
			second.Label = "second"

			written, err := db.UpsertNodes(ctx, []*types.TreeNode{first, second})
			require.NoError(t, err)
			assert.Equal(t, 1, written)

			root, err := db.GetRoot(ctx, testContext)
			require.NoError(t, err)
			assert.Equal(t, "second", root.Label)
			assert.Equal(t, map[string]string{"y2020": "9"}, root.DateAttributes)
		})
	}
}

func TestLookupNotFound(t *testing.T) {
	ctx := context.Background()

	for name, db := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.GetRoot(ctx, testContext)
			require.ErrorIs(t, err, ErrNotFound)

			_, err = db.ListContext(ctx, testContext)
			require.ErrorIs(t, err, ErrNotFound)

			_, err = db.UpsertNodes(ctx, sampleTree())
			require.NoError(t, err)

			// a leaf has no children
			_, err = db.GetChildren(ctx, testContext, "A")
			require.ErrorIs(t, err, ErrNotFound)

			other := testContext
			other.Idx = 1
			_, err = db.GetRoot(ctx, other)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestUpsertEmptyBatch(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	written, err := NewWithConn(conn, types.DriverPostgres).UpsertNodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, written)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRollsBackOnFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	nodes := sampleTree()
	boom := errors.New("disk full")

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO index_tree_data .* ON CONFLICT`)
	prep.ExpectExec().
		WithArgs("R", 1, 701, 7, "67,749", 67, "247783,741917", 0, "", "label R", false, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(boom)
	mock.ExpectRollback()

	written, err := NewWithConn(conn, types.DriverPostgres).UpsertNodes(context.Background(), nodes)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, written)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCommits(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO index_tree_data`)
	for range sampleTree() {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	written, err := NewWithConn(conn, types.DriverPostgres).UpsertNodes(context.Background(), sampleTree())
	require.NoError(t, err)
	assert.Equal(t, 3, written)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryUsesPostgresPlaceholders(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("SELECT "+selectColumns+" FROM index_tree_data WHERE "+contextWhere+" AND parent_id = $8 ORDER BY ordinal, id").
		WithArgs(1, 701, 7, "67,749", 67, "247783,741917", 0, "R").
		WillReturnRows(sqlmock.NewRows([]string{"id", "parent_id", "label", "is_leaf", "ordinal", "payload"}).
			AddRow("A", "R", "North", true, 0, `{"id":"A","leaf":"true","y2020":"3"}`))

	children, err := NewWithConn(conn, types.DriverPostgres).GetChildren(context.Background(), testContext, "R")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, map[string]string{"y2020": "3"}, children[0].DateAttributes)
	require.NoError(t, mock.ExpectationsWereMet())
}
