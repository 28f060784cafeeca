package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"

	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/internal/upstream"
)

// ErrNotFound is returned by lookups that match no rows
var ErrNotFound = errors.New("not found")

// sqlDriverNames maps store drivers to registered database/sql driver names
var sqlDriverNames = map[string]string{
	types.DriverDuckDB:   "duckdb",
	types.DriverPostgres: "pgx",
	types.DriverSQLite:   "sqlite",
}

// DB is the cache store: one composite-keyed table of visited tree nodes
type DB struct {
	conn   *sql.DB
	driver string
}

// New opens the store for the given driver and ensures the schema exists.
// An empty driver means duckdb; an empty DSN opens an in-memory database for duckdb and sqlite.
func New(ctx context.Context, driver, dsn string) (*DB, error) {
	if driver == "" {
		driver = types.DriverDuckDB
	}
	sqlName, ok := sqlDriverNames[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}
	if dsn == "" {
		switch driver {
		case types.DriverSQLite:
			dsn = ":memory:"
		case types.DriverPostgres:
			return nil, fmt.Errorf("postgres store requires a dsn")
		}
	}

	conn, err := sql.Open(sqlName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	if driver == types.DriverSQLite {
		// an in-memory sqlite database lives in a single connection
		conn.SetMaxOpenConns(1)
	}

	db := NewWithConn(conn, driver)
	if err := db.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := db.InitializeSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// NewWithConn wraps an existing connection without touching the schema
func NewWithConn(conn *sql.DB, driver string) *DB {
	return &DB{conn: conn, driver: driver}
}

// InitializeSchema creates the table and its parent index if missing
func (db *DB) InitializeSchema(ctx context.Context) error {
	createTable, err := BuildTableSQL(db.driver)
	if err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create %s table: %w", TableName, err)
	}
	if _, err := db.conn.ExecContext(ctx, BuildIndexSQL()); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Driver returns the store dialect
func (db *DB) Driver() string {
	return db.driver
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach %s store: %w", db.driver, err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// UpsertNodes writes nodes in one transaction and returns the number of rows written.
// Nodes sharing a key collapse to the last occurrence; an existing row is overwritten.
// Any failure rolls the whole batch back.
func (db *DB) UpsertNodes(ctx context.Context, nodes []*types.TreeNode) (int, error) {
	batch := dedupe(nodes)
	if len(batch) == 0 {
		return 0, nil
	}

	fetchedAt := time.Now().UTC()
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, rebind(db.driver, upsertSQL()))
		if err != nil {
			return errors.Wrap(err, "prepare upsert")
		}
		defer stmt.Close()

		for _, n := range batch {
			payload := string(n.RawPayload)
			if payload == "" {
				payload = "{}"
			}
			qc := n.Context
			if _, err := stmt.ExecContext(ctx,
				n.ID, qc.MeasureID, qc.IndexID, qc.PeriodID, qc.Terms, qc.TermID, qc.DicIDs, qc.Idx, n.ParentID,
				n.Label, n.IsLeaf, n.Ordinal, payload, fetchedAt,
			); err != nil {
				return errors.Wrapf(err, "upsert node %s", n.ID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(batch), nil
}

// GetRoot returns the top-level node of qc, the one with the lowest ordinal when there are several
func (db *DB) GetRoot(ctx context.Context, qc types.QueryContext) (*types.TreeNode, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s AND parent_id = '' ORDER BY ordinal, id LIMIT 1",
		selectColumns, TableName, contextWhere)

	nodes, err := db.queryNodes(ctx, qc, query, contextArgs(qc)...)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, errors.Wrap(ErrNotFound, "root node")
	}
	return nodes[0], nil
}

// GetChildren returns the direct children of parentID within qc in upstream order
func (db *DB) GetChildren(ctx context.Context, qc types.QueryContext, parentID string) ([]*types.TreeNode, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s AND parent_id = $8 ORDER BY ordinal, id",
		selectColumns, TableName, contextWhere)

	nodes, err := db.queryNodes(ctx, qc, query, append(contextArgs(qc), parentID)...)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "children of %q", parentID)
	}
	return nodes, nil
}

// ListContext returns every cached node of qc, grouped by parent and ordered by ordinal
func (db *DB) ListContext(ctx context.Context, qc types.QueryContext) ([]*types.TreeNode, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY parent_id, ordinal, id",
		selectColumns, TableName, contextWhere)

	nodes, err := db.queryNodes(ctx, qc, query, contextArgs(qc)...)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, errors.Wrap(ErrNotFound, "context")
	}
	return nodes, nil
}

// CountNodes returns the total number of cached rows
func (db *DB) CountNodes(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+TableName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return count, nil
}

// GetTableInfo returns information about the cache table
func (db *DB) GetTableInfo(ctx context.Context) ([]types.TableInfo, error) {
	count, err := db.CountNodes(ctx)
	if err != nil {
		return nil, err
	}
	return []types.TableInfo{{Name: TableName, RowCount: count, Driver: db.driver}}, nil
}

func (db *DB) queryNodes(ctx context.Context, qc types.QueryContext, query string, args ...any) ([]*types.TreeNode, error) {
	rows, err := db.conn.QueryContext(ctx, rebind(db.driver, query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "query nodes")
	}
	defer rows.Close()

	var nodes []*types.TreeNode
	for rows.Next() {
		n := &types.TreeNode{Context: qc}
		var payload string
		if err := rows.Scan(&n.ID, &n.ParentID, &n.Label, &n.IsLeaf, &n.Ordinal, &payload); err != nil {
			return nil, errors.Wrap(err, "scan node")
		}
		n.RawPayload = []byte(payload)
		attrs, err := upstream.DateAttributes(n.RawPayload)
		if err != nil {
			return nil, errors.Wrapf(err, "node %s", n.ID)
		}
		n.DateAttributes = attrs
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate nodes")
	}
	return nodes, nil
}

// inTx runs fn in a transaction, committing on success and rolling back otherwise
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			return errors.Wrapf(err, "rollback also failed: %v", rErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func contextArgs(qc types.QueryContext) []any {
	return []any{qc.MeasureID, qc.IndexID, qc.PeriodID, qc.Terms, qc.TermID, qc.DicIDs, qc.Idx}
}

type nodeKey struct {
	id       string
	parentID string
	ctx      types.QueryContext
}

// dedupe keeps the last occurrence of every key at the position of its first occurrence
func dedupe(nodes []*types.TreeNode) []*types.TreeNode {
	seen := make(map[nodeKey]int, len(nodes))
	out := make([]*types.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		k := nodeKey{id: n.ID, parentID: n.ParentID, ctx: n.Context}
		if i, ok := seen[k]; ok {
			out[i] = n
			continue
		}
		seen[k] = len(out)
		out = append(out, n)
	}
	return out
}
