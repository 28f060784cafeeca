// Package indextree composes the fetch client, walker, series fetcher, merger and
// cache store into the three service workflows: build-and-cache, build-and-present
// and cached lookups.
package indextree

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Project-Sylos/IndexTree/internal/fetch"
	"github.com/Project-Sylos/IndexTree/internal/logging"
	"github.com/Project-Sylos/IndexTree/internal/merge"
	"github.com/Project-Sylos/IndexTree/internal/metrics"
	"github.com/Project-Sylos/IndexTree/internal/series"
	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/internal/walker"
)

// Store is the cache the service persists to and reads from; *db.DB implements it
type Store interface {
	UpsertNodes(ctx context.Context, nodes []*types.TreeNode) (int, error)
	GetRoot(ctx context.Context, qc types.QueryContext) (*types.TreeNode, error)
	GetChildren(ctx context.Context, qc types.QueryContext, parentID string) ([]*types.TreeNode, error)
	ListContext(ctx context.Context, qc types.QueryContext) ([]*types.TreeNode, error)
	GetTableInfo(ctx context.Context) ([]types.TableInfo, error)
	Ping(ctx context.Context) error
}

// Service runs the index tree workflows with an explicit configuration
type Service struct {
	cfg      types.Config
	store    Store
	walker   *walker.Walker
	series   *series.Fetcher
	validate *validator.Validate
	log      *logrus.Entry
}

// New creates a service over an already constructed store and fetcher
func New(cfg types.Config, store Store, f fetch.Fetcher, log *logrus.Entry) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		walker:   walker.New(f, cfg.Walker, cfg.Upstream.Endpoints.Tree, log),
		series:   series.New(f, cfg.Upstream.Endpoints.Periods, log),
		validate: validator.New(),
		log:      logging.Component(log, "indextree"),
	}
}

// Config returns the configuration the service was built with
func (s *Service) Config() types.Config {
	return s.cfg
}

// BuildAndCache walks qc and persists every visited node in one transaction.
// Fetch and persist failures come back as *UnavailableError; nothing is written on failure.
func (s *Service) BuildAndCache(ctx context.Context, qc types.QueryContext) (*types.BuildResult, error) {
	qc, err := s.prepare(qc)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"run_id": runID, "index_id": qc.IndexID})
	start := time.Now()
	m := metrics.Get()

	roots, err := s.walk(ctx, qc)
	if err != nil {
		m.BuildTotal.WithLabelValues("fetch_failed").Inc()
		log.WithError(err).Error("walk failed, nothing persisted")
		return nil, &UnavailableError{RunID: runID, Cause: err}
	}

	written, err := s.store.UpsertNodes(ctx, types.Flatten(roots))
	if err != nil {
		m.BuildTotal.WithLabelValues("persist_failed").Inc()
		log.WithError(err).Error("persist failed, batch rolled back")
		return nil, &UnavailableError{RunID: runID, Cause: err}
	}

	m.BuildTotal.WithLabelValues("ok").Inc()
	m.NodesWritten.Add(float64(written))

	result := &types.BuildResult{RunID: runID, NodesWritten: written, Duration: time.Since(start)}
	log.WithFields(logrus.Fields{"nodes": written, "elapsed": result.Duration.String()}).Info("tree cached")
	return result, nil
}

// BuildAndPresent walks qc and fetches its periods concurrently, then merges them.
// Nothing is persisted.
func (s *Service) BuildAndPresent(ctx context.Context, qc types.QueryContext) ([]types.MergedRecord, error) {
	qc, err := s.prepare(qc)
	if err != nil {
		return nil, err
	}

	var roots []*types.TreeNode
	var periods types.PeriodDataset

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roots, err = s.walk(gctx, qc)
		return err
	})
	g.Go(func() error {
		var err error
		periods, err = s.series.FetchPeriods(gctx, qc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := merge.Merge(roots, periods, s.cfg.Merge.Depth)
	s.log.WithFields(logrus.Fields{
		"index_id": qc.IndexID,
		"records":  len(records),
		"periods":  periods.Len(),
	}).Debug("tree presented")
	return records, nil
}

// LookupCached reads the cache: an empty parentFilter returns the root node of qc,
// otherwise the direct children of parentFilter.
func (s *Service) LookupCached(ctx context.Context, qc types.QueryContext, parentFilter string) (*types.LookupResult, error) {
	qc, err := s.prepare(qc)
	if err != nil {
		return nil, err
	}

	if parentFilter == "" {
		root, err := s.store.GetRoot(ctx, qc)
		if err != nil {
			return nil, err
		}
		return &types.LookupResult{Node: root}, nil
	}

	children, err := s.store.GetChildren(ctx, qc, parentFilter)
	if err != nil {
		return nil, err
	}
	return &types.LookupResult{Nodes: children}, nil
}

// CachedTree rebuilds the nested tree of a cached context
func (s *Service) CachedTree(ctx context.Context, qc types.QueryContext) ([]*types.TreeNode, error) {
	qc, err := s.prepare(qc)
	if err != nil {
		return nil, err
	}

	nodes, err := s.store.ListContext(ctx, qc)
	if err != nil {
		return nil, err
	}
	return types.BuildTree(nodes), nil
}

// Tables reports the cache table sizes
func (s *Service) Tables(ctx context.Context) ([]types.TableInfo, error) {
	return s.store.GetTableInfo(ctx)
}

// Ping checks the cache store
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Validate normalizes qc and checks it
func (s *Service) Validate(qc types.QueryContext) (types.QueryContext, error) {
	return s.prepare(qc)
}

func (s *Service) prepare(qc types.QueryContext) (types.QueryContext, error) {
	qc.Normalize()
	if err := s.validate.Struct(qc); err != nil {
		return qc, errors.Wrap(ErrInvalidContext, err.Error())
	}
	return qc, nil
}

func (s *Service) walk(ctx context.Context, qc types.QueryContext) ([]*types.TreeNode, error) {
	if timeout := s.cfg.Walker.Timeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.walker.Walk(ctx, qc)
}
