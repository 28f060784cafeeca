package sdk

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Project-Sylos/IndexTree/internal/config"
	"github.com/Project-Sylos/IndexTree/internal/fetch"
	"github.com/Project-Sylos/IndexTree/internal/indextree"
	"github.com/Project-Sylos/IndexTree/internal/logging"
	"github.com/Project-Sylos/IndexTree/internal/types"
)

// Client is the public SDK interface for the index tree cache.
// This wraps the internal service to provide a clean public API.
type Client struct {
	rt  *indextree.Runtime
	cfg types.Config
	log *logrus.Logger
}

// Option customizes a Client
type Option func(*options)

type options struct {
	httpClient fetch.HTTPClient
	logger     *logrus.Logger
}

// WithHTTPClient sets the transport used against the upstream API
func WithHTTPClient(hc fetch.HTTPClient) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger replaces the logger built from the log configuration
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a client from a config file (JSON or YAML), .env files and INDEXTREE_* variables.
// An empty path uses the defaults.
func New(configPath string, opts ...Option) (*Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(context.Background(), *cfg, opts...)
}

// NewWithConfig creates a client from an explicit configuration
func NewWithConfig(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to configure logging: %w", err)
		}
	}

	var fetchOpts []fetch.Option
	if o.httpClient != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(o.httpClient))
	}

	rt, err := indextree.Open(ctx, cfg, logrus.NewEntry(logger), fetchOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize index tree service: %w", err)
	}

	return &Client{rt: rt, cfg: cfg, log: logger}, nil
}

// BuildAndCache walks the context upstream and caches every node
func (c *Client) BuildAndCache(ctx context.Context, qc QueryContext) (*BuildResult, error) {
	return c.rt.BuildAndCache(ctx, qc)
}

// BuildAndPresent walks the context and merges it with its periods without caching
func (c *Client) BuildAndPresent(ctx context.Context, qc QueryContext) ([]MergedRecord, error) {
	return c.rt.BuildAndPresent(ctx, qc)
}

// LookupCached returns the cached root of the context, or the children of parentFilter when set
func (c *Client) LookupCached(ctx context.Context, qc QueryContext, parentFilter string) (*LookupResult, error) {
	return c.rt.LookupCached(ctx, qc, parentFilter)
}

// CachedTree returns the cached context as a nested tree
func (c *Client) CachedTree(ctx context.Context, qc QueryContext) ([]*TreeNode, error) {
	return c.rt.CachedTree(ctx, qc)
}

// Validate normalizes and checks a query context without touching the network
func (c *Client) Validate(qc QueryContext) (QueryContext, error) {
	return c.rt.Validate(qc)
}

// GetTableInfo returns information about the cache table
func (c *Client) GetTableInfo(ctx context.Context) ([]TableInfo, error) {
	return c.rt.Tables(ctx)
}

// Ping checks the cache store
func (c *Client) Ping(ctx context.Context) error {
	return c.rt.Ping(ctx)
}

// GetConfig returns the current configuration
func (c *Client) GetConfig() Config {
	return c.cfg
}

// Logger returns the logger the client writes to
func (c *Client) Logger() *logrus.Logger {
	return c.log
}

// Close closes the cache store.
// Always call this method during graceful shutdown so file-backed stores are flushed.
func (c *Client) Close() error {
	return c.rt.Close()
}

// StatusCode maps an error returned by the client to an HTTP status
func StatusCode(err error) int {
	return indextree.StatusCode(err)
}

// ErrorMessage returns the caller-facing text of an error returned by the client
func ErrorMessage(err error) string {
	return indextree.Message(err)
}

// Re-export types for convenience
type (
	Config        = types.Config
	QueryContext  = types.QueryContext
	TreeNode      = types.TreeNode
	MergedRecord  = types.MergedRecord
	PeriodDataset = types.PeriodDataset
	BuildResult   = types.BuildResult
	LookupResult  = types.LookupResult
	TableInfo     = types.TableInfo
	APIResponse   = types.APIResponse
)

// Re-export errors
var (
	ErrNotFound       = indextree.ErrNotFound
	ErrInvalidContext = indextree.ErrInvalidContext
)

// UnavailableError is returned by BuildAndCache when nothing could be cached
type UnavailableError = indextree.UnavailableError

// Re-export constants
const (
	DriverDuckDB   = types.DriverDuckDB
	DriverPostgres = types.DriverPostgres
	DriverSQLite   = types.DriverSQLite
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return config.DefaultConfig()
}
