package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Project-Sylos/IndexTree/internal/utils"
)

// Config represents the complete configuration for IndexTree
type Config struct {
	Upstream UpstreamConfig `json:"upstream" yaml:"upstream"`
	Walker   WalkerConfig   `json:"walker" yaml:"walker"`
	Merge    MergeConfig    `json:"merge" yaml:"merge"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	API      APIConfig      `json:"api" yaml:"api"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// UpstreamConfig describes the remote statistics API and the retry policy used against it
type UpstreamConfig struct {
	BaseURL         string        `json:"base_url" yaml:"base_url" env:"INDEXTREE_UPSTREAM_BASE_URL"`
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts" env:"INDEXTREE_UPSTREAM_MAX_ATTEMPTS"`
	BackoffDelay    Duration      `json:"backoff_delay" yaml:"backoff_delay" env:"INDEXTREE_UPSTREAM_BACKOFF_DELAY"`
	RequestTimeout  Duration      `json:"request_timeout" yaml:"request_timeout" env:"INDEXTREE_UPSTREAM_REQUEST_TIMEOUT"`
	RequestsPerSec  float64       `json:"requests_per_sec" yaml:"requests_per_sec" env:"INDEXTREE_UPSTREAM_RPS"`
	RequestIDHeader string        `json:"request_id_header" yaml:"request_id_header" env:"INDEXTREE_UPSTREAM_REQUEST_ID_HEADER"`
	Endpoints       EndpointNames `json:"endpoints" yaml:"endpoints"`
}

// EndpointNames are the upstream paths relative to BaseURL
type EndpointNames struct {
	Tree    string `json:"tree" yaml:"tree"`
	Periods string `json:"periods" yaml:"periods"`
}

// WalkerConfig bounds a single tree walk
type WalkerConfig struct {
	MaxDepth    int      `json:"max_depth" yaml:"max_depth" env:"INDEXTREE_WALKER_MAX_DEPTH"`
	MaxNodes    int      `json:"max_nodes" yaml:"max_nodes" env:"INDEXTREE_WALKER_MAX_NODES"`
	Concurrency int      `json:"concurrency" yaml:"concurrency" env:"INDEXTREE_WALKER_CONCURRENCY"`
	Timeout     Duration `json:"timeout" yaml:"timeout" env:"INDEXTREE_WALKER_TIMEOUT"`
}

// MergeConfig controls how many child levels are fused with the period dataset.
// Depth 1 merges top-level nodes and their direct children, a negative depth merges the whole tree.
type MergeConfig struct {
	Depth int `json:"depth" yaml:"depth" env:"INDEXTREE_MERGE_DEPTH"`
}

// StoreConfig selects the cache database
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver" env:"INDEXTREE_DB_DRIVER"` // "duckdb", "postgres" or "sqlite"
	DSN    string `json:"dsn" yaml:"dsn" env:"INDEXTREE_DB_DSN"`
}

// APIConfig represents the HTTP API configuration
type APIConfig struct {
	Host           string   `json:"host" yaml:"host" env:"INDEXTREE_API_HOST"`
	Port           int      `json:"port" yaml:"port" env:"INDEXTREE_API_PORT"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" env:"INDEXTREE_API_ALLOWED_ORIGINS" envSeparator:","`
	BuildRateLimit string   `json:"build_rate_limit" yaml:"build_rate_limit" env:"INDEXTREE_API_BUILD_RATE_LIMIT"` // ulule format, e.g. "30-M"; empty disables
}

// LogConfig selects logrus level and formatter
type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"INDEXTREE_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"INDEXTREE_LOG_FORMAT"` // "text" or "json"
}

// Duration is a time.Duration that reads and writes as a Go duration string ("2s", "500ms")
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which env and yaml also honor
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// QueryContext is the addressing tuple of one indicator slice in the remote hierarchy.
// Together with a node id and its parent id it forms the full identity of a cached node.
type QueryContext struct {
	MeasureID int    `json:"p_measure_id" form:"p_measure_id" validate:"min=1"`
	IndexID   int    `json:"p_index_id" form:"p_index_id" validate:"required,min=1"`
	PeriodID  int    `json:"p_period_id" form:"p_period_id" validate:"required,min=1"`
	Terms     string `json:"p_terms" form:"p_terms" validate:"required"`
	TermID    int    `json:"p_term_id" form:"p_term_id" validate:"required,min=1"`
	DicIDs    string `json:"p_dicIds" form:"p_dicIds" validate:"required"`
	Idx       int    `json:"idx" form:"idx" validate:"min=0"`
}

// Normalize applies the measure default and canonicalizes the comma-joined lists
// so that equal contexts always produce equal cache keys.
func (q *QueryContext) Normalize() {
	if q.MeasureID == 0 {
		q.MeasureID = 1
	}
	q.Terms = utils.NormalizeList(q.Terms)
	q.DicIDs = utils.NormalizeList(q.DicIDs)
}

// TreeParams returns the upstream query for the children of parentID.
// An empty parentID addresses the top level of the context.
func (q QueryContext) TreeParams(parentID string) url.Values {
	v := q.PeriodParams()
	v.Set("idx", strconv.Itoa(q.Idx))
	v.Set("p_parent_id", parentID)
	return v
}

// PeriodParams returns the reduced query used for the period list
func (q QueryContext) PeriodParams() url.Values {
	v := url.Values{}
	v.Set("p_measure_id", strconv.Itoa(q.MeasureID))
	v.Set("p_index_id", strconv.Itoa(q.IndexID))
	v.Set("p_period_id", strconv.Itoa(q.PeriodID))
	v.Set("p_terms", q.Terms)
	v.Set("p_term_id", strconv.Itoa(q.TermID))
	v.Set("p_dicIds", q.DicIDs)
	return v
}

// TreeNode is one visited node of the remote hierarchy
type TreeNode struct {
	ID             string            `json:"id"`
	Context        QueryContext      `json:"context"`
	ParentID       string            `json:"parent_id"` // "" for the top level of the context
	Label          string            `json:"text"`
	IsLeaf         bool              `json:"leaf"`
	DateAttributes map[string]string `json:"date_attributes,omitempty"` // "y<code>" -> value, carried opaquely
	RawPayload     json.RawMessage   `json:"response_data,omitempty"`
	Ordinal        int               `json:"ordinal"` // position among siblings as returned upstream
	Depth          int               `json:"depth"`   // 0 for the top level
	Children       []*TreeNode       `json:"children,omitempty"`
}

// Flatten returns the nodes of the given trees in pre-order
func Flatten(roots []*TreeNode) []*TreeNode {
	var out []*TreeNode
	stack := make([]*TreeNode, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// BuildTree nests a flat node list by parent id and returns the top-level nodes.
// Children keep the order of the input slice. Nodes whose parent is missing are treated as roots.
func BuildTree(nodes []*TreeNode) []*TreeNode {
	byID := make(map[string]*TreeNode, len(nodes))
	for _, n := range nodes {
		n.Children = nil
		byID[n.ID] = n
	}

	var roots []*TreeNode
	for _, n := range nodes {
		parent, ok := byID[n.ParentID]
		if n.ParentID == "" || !ok || parent == n {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	// depth is recomputed from the nesting since cached rows do not carry it
	stack := append([]*TreeNode(nil), roots...)
	for _, r := range roots {
		r.Depth = 0
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range n.Children {
			c.Depth = n.Depth + 1
			stack = append(stack, c)
		}
	}
	return roots
}

// PeriodDataset is the period list of an indicator: codes and human-readable names, positionally aligned
type PeriodDataset struct {
	DateList       []string `json:"dateList"`
	PeriodNameList []string `json:"periodNameList"`
}

// Len returns the number of periods
func (p PeriodDataset) Len() int { return len(p.DateList) }

// Validate checks that codes and names are positionally aligned
func (p PeriodDataset) Validate() error {
	if len(p.DateList) != len(p.PeriodNameList) {
		return fmt.Errorf("dateList has %d items, periodNameList has %d", len(p.DateList), len(p.PeriodNameList))
	}
	return nil
}

// MergedRecord is a tree node flattened for presentation
type MergedRecord struct {
	ID       string            `json:"id"`
	Label    string            `json:"text"`
	IsLeaf   bool              `json:"leaf"`
	Values   map[string]string `json:"values"` // period name -> value, only periods that carry a value
	Children []MergedRecord    `json:"children,omitempty"`
}

// BuildResult summarizes a build-and-cache run
type BuildResult struct {
	RunID        string        `json:"run_id"`
	NodesWritten int           `json:"nodes_written"`
	Duration     time.Duration `json:"duration"`
}

// LookupResult carries either the root node of a context or the children of a parent
type LookupResult struct {
	Node  *TreeNode   `json:"node,omitempty"`
	Nodes []*TreeNode `json:"nodes,omitempty"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// TableInfo represents information about a database table
type TableInfo struct {
	Name     string `json:"name"`
	RowCount int    `json:"row_count"`
	Driver   string `json:"driver"`
}

// Store driver constants
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Default upstream endpoint names
const (
	EndpointTree    = "GetIndexTreeData"
	EndpointPeriods = "GetIndexPeriods"
)
