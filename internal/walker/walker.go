// Package walker expands an index tree by repeatedly querying the upstream API
// with the id of each non-leaf node as parent.
//
// The walk is iterative and level-by-level. Every level's expansions fan out
// through a bounded errgroup, and results are written into slots indexed by the
// parent's position so sibling order always matches the upstream order.
//
// The upstream hierarchy is assumed finite and acyclic. No cycle detection is
// done; MaxDepth and MaxNodes turn a runaway hierarchy into an error.
package walker

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Project-Sylos/IndexTree/internal/fetch"
	"github.com/Project-Sylos/IndexTree/internal/logging"
	"github.com/Project-Sylos/IndexTree/internal/metrics"
	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/internal/upstream"
)

// Limits applied by New when the configuration leaves them at zero
const (
	DefaultMaxDepth    = 32
	DefaultMaxNodes    = 100000
	DefaultConcurrency = 4
)

var (
	// ErrMaxDepth is returned when a node would be expanded below the configured depth
	ErrMaxDepth = errors.New("tree exceeds max depth")
	// ErrTooManyNodes is returned when a walk visits more nodes than allowed
	ErrTooManyNodes = errors.New("tree exceeds max node count")
)

// Walker walks one query context at a time; it holds no per-walk state and is safe for concurrent use
type Walker struct {
	fetcher     fetch.Fetcher
	endpoint    string
	maxDepth    int
	maxNodes    int
	concurrency int
	log         *logrus.Entry
}

// New creates a walker. Zero limits fall back to the package defaults.
func New(f fetch.Fetcher, cfg types.WalkerConfig, endpoint string, log *logrus.Entry) *Walker {
	w := &Walker{
		fetcher:     f,
		endpoint:    endpoint,
		maxDepth:    cfg.MaxDepth,
		maxNodes:    cfg.MaxNodes,
		concurrency: cfg.Concurrency,
		log:         logging.Component(log, "walker"),
	}
	if w.endpoint == "" {
		w.endpoint = types.EndpointTree
	}
	if w.maxDepth <= 0 {
		w.maxDepth = DefaultMaxDepth
	}
	if w.maxNodes <= 0 {
		w.maxNodes = DefaultMaxNodes
	}
	if w.concurrency <= 0 {
		w.concurrency = DefaultConcurrency
	}
	return w
}

// Walk returns the nested top-level nodes of qc.
// Any failure aborts the whole walk and no partial tree is returned.
func (w *Walker) Walk(ctx context.Context, qc types.QueryContext) ([]*types.TreeNode, error) {
	start := time.Now()

	roots, err := w.expand(ctx, qc, "", 0)
	if err != nil {
		return nil, err
	}

	visited := len(roots)
	if visited > w.maxNodes {
		return nil, errors.Wrapf(ErrTooManyNodes, "%d nodes at top level", visited)
	}

	frontier := expandable(roots)
	levels := 1
	for len(frontier) > 0 {
		depth := frontier[0].Depth + 1
		if depth > w.maxDepth {
			return nil, errors.Wrapf(ErrMaxDepth, "node %s at depth %d has children", frontier[0].ID, frontier[0].Depth)
		}

		children, err := w.expandLevel(ctx, qc, frontier, depth)
		if err != nil {
			return nil, err
		}

		var next []*types.TreeNode
		for i, parent := range frontier {
			parent.Children = children[i]
			visited += len(children[i])
			next = append(next, expandable(children[i])...)
		}
		if visited > w.maxNodes {
			return nil, errors.Wrapf(ErrTooManyNodes, "%d nodes after depth %d", visited, depth)
		}

		w.log.WithFields(logrus.Fields{
			"depth":   depth,
			"parents": len(frontier),
			"visited": visited,
		}).Debug("level expanded")

		frontier = next
		levels++
	}

	metrics.Get().WalkNodes.Observe(float64(visited))
	w.log.WithFields(logrus.Fields{
		"index_id": qc.IndexID,
		"nodes":    visited,
		"levels":   levels,
		"elapsed":  time.Since(start).String(),
	}).Info("walk finished")

	return roots, nil
}

// expandLevel fetches the children of every frontier node, result i belonging to frontier[i]
func (w *Walker) expandLevel(ctx context.Context, qc types.QueryContext, frontier []*types.TreeNode, depth int) ([][]*types.TreeNode, error) {
	results := make([][]*types.TreeNode, len(frontier))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, parent := range frontier {
		i, parent := i, parent
		g.Go(func() error {
			children, err := w.expand(gctx, qc, parent.ID, depth)
			if err != nil {
				return err
			}
			results[i] = children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// expand fetches and decodes the direct children of parentID
func (w *Walker) expand(ctx context.Context, qc types.QueryContext, parentID string, depth int) ([]*types.TreeNode, error) {
	raw, err := w.fetcher.Fetch(ctx, w.endpoint, qc.TreeParams(parentID))
	if err != nil {
		return nil, errors.Wrapf(err, "expand parent %q", parentID)
	}

	items, err := upstream.DecodeRecords(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "expand parent %q", parentID)
	}

	nodes := make([]*types.TreeNode, 0, len(items))
	for i, item := range items {
		rec, err := upstream.ParseRecord(item)
		if err != nil {
			return nil, errors.Wrapf(err, "expand parent %q item %d", parentID, i)
		}
		nodes = append(nodes, &types.TreeNode{
			ID:             rec.ID,
			Context:        qc,
			ParentID:       parentID,
			Label:          rec.Text,
			IsLeaf:         rec.Leaf,
			DateAttributes: rec.DateAttributes,
			RawPayload:     rec.Raw,
			Ordinal:        i,
			Depth:          depth,
		})
	}
	return nodes, nil
}

func expandable(nodes []*types.TreeNode) []*types.TreeNode {
	var out []*types.TreeNode
	for _, n := range nodes {
		if !n.IsLeaf {
			out = append(out, n)
		}
	}
	return out
}
