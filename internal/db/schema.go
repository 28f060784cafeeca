package db

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Project-Sylos/IndexTree/internal/types"
)

// TableName is the cache table
const TableName = "index_tree_data"

// keyColumns form the composite primary key: the query context plus node id and parent id
var keyColumns = []string{"id", "measure_id", "index_id", "period_id", "terms", "term_id", "dic_ids", "idx", "parent_id"}

// columnTypes maps each logical column type to the dialect's SQL type
var columnTypes = map[string]map[string]string{
	types.DriverDuckDB: {
		"text": "VARCHAR", "int": "INTEGER", "bool": "BOOLEAN", "json": "VARCHAR", "time": "TIMESTAMP",
	},
	types.DriverPostgres: {
		"text": "TEXT", "int": "INTEGER", "bool": "BOOLEAN", "json": "JSONB", "time": "TIMESTAMPTZ",
	},
	types.DriverSQLite: {
		"text": "TEXT", "int": "INTEGER", "bool": "BOOLEAN", "json": "TEXT", "time": "TIMESTAMP",
	},
}

var columns = []struct {
	name string
	kind string
}{
	{"id", "text"},
	{"measure_id", "int"},
	{"index_id", "int"},
	{"period_id", "int"},
	{"terms", "text"},
	{"term_id", "int"},
	{"dic_ids", "text"},
	{"idx", "int"},
	{"parent_id", "text"},
	{"label", "text"},
	{"is_leaf", "bool"},
	{"ordinal", "int"},
	{"payload", "json"},
	{"fetched_at", "time"},
}

// BuildTableSQL returns the CREATE TABLE statement for the given dialect
func BuildTableSQL(driver string) (string, error) {
	typeMap, ok := columnTypes[driver]
	if !ok {
		return "", fmt.Errorf("unsupported store driver: %q", driver)
	}

	defs := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		def := fmt.Sprintf("%s %s", col.name, typeMap[col.kind])
		if isKeyColumn(col.name) {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keyColumns, ", ")))

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", TableName, strings.Join(defs, ",\n\t")), nil
}

// BuildIndexSQL returns the parent-scan index; context columns lead so lookups by parent within a context are prefix scans
func BuildIndexSQL() string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_parent ON %s (index_id, period_id, terms, term_id, dic_ids, idx, measure_id, parent_id)",
		TableName, TableName)
}

func upsertSQL() string {
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.name
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var updates []string
	for _, col := range columns {
		if !isKeyColumn(col.name) {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col.name, col.name))
		}
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		TableName,
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(keyColumns, ", "),
		strings.Join(updates, ", "))
}

// contextWhere filters one query context, binding $1..$7
const contextWhere = "measure_id = $1 AND index_id = $2 AND period_id = $3 AND terms = $4 AND term_id = $5 AND dic_ids = $6 AND idx = $7"

const selectColumns = "id, parent_id, label, is_leaf, ordinal, payload"

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// rebind rewrites $n placeholders for dialects that bind positionally with ?
func rebind(driver, query string) string {
	if driver != types.DriverSQLite {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?")
}

func isKeyColumn(name string) bool {
	for _, k := range keyColumns {
		if k == name {
			return true
		}
	}
	return false
}
