package indextree

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Project-Sylos/IndexTree/internal/db"
	"github.com/Project-Sylos/IndexTree/internal/fetch"
	"github.com/Project-Sylos/IndexTree/internal/types"
)

// Runtime is a service together with the resources it owns
type Runtime struct {
	*Service
	Store *db.DB
}

// Open builds the fetch client and the cache store described by cfg
func Open(ctx context.Context, cfg types.Config, log *logrus.Entry, opts ...fetch.Option) (*Runtime, error) {
	client, err := fetch.New(cfg.Upstream, append([]fetch.Option{fetch.WithLogger(log)}, opts...)...)
	if err != nil {
		return nil, err
	}

	store, err := db.New(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}

	return &Runtime{Service: New(cfg, store, client, log), Store: store}, nil
}

// Close releases the cache store
func (r *Runtime) Close() error {
	return r.Store.Close()
}

var _ io.Closer = (*Runtime)(nil)
