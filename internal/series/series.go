// Package series fetches the period list that labels the date-keyed node attributes.
package series

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/Project-Sylos/IndexTree/internal/fetch"
	"github.com/Project-Sylos/IndexTree/internal/logging"
	"github.com/Project-Sylos/IndexTree/internal/types"
	"github.com/Project-Sylos/IndexTree/internal/upstream"
)

// Fetcher is a single-call wrapper over the fetch client
type Fetcher struct {
	fetcher  fetch.Fetcher
	endpoint string
	log      *logrus.Entry
}

// New creates a period fetcher; an empty endpoint means types.EndpointPeriods
func New(f fetch.Fetcher, endpoint string, log *logrus.Entry) *Fetcher {
	if endpoint == "" {
		endpoint = types.EndpointPeriods
	}
	return &Fetcher{fetcher: f, endpoint: endpoint, log: logging.Component(log, "series")}
}

// FetchPeriods returns the period dataset of qc
func (s *Fetcher) FetchPeriods(ctx context.Context, qc types.QueryContext) (types.PeriodDataset, error) {
	raw, err := s.fetcher.Fetch(ctx, s.endpoint, qc.PeriodParams())
	if err != nil {
		return types.PeriodDataset{}, errors.Wrap(err, "fetch periods")
	}

	ds, err := upstream.DecodePeriods(raw)
	if err != nil {
		return types.PeriodDataset{}, errors.Wrap(err, "fetch periods")
	}

	s.log.WithField("periods", ds.Len()).Debug("periods fetched")
	return ds, nil
}
