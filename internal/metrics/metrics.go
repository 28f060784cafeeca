// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups every metric the service records
type Collectors struct {
	FetchAttempts *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	WalkNodes     prometheus.Histogram
	NodesWritten  prometheus.Counter
	BuildTotal    *prometheus.CounterVec
}

var singleton = sync.OnceValue(func() *Collectors {
	return &Collectors{
		FetchAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indextree",
			Name:      "fetch_attempts_total",
			Help:      "Upstream fetch attempts by endpoint and result.",
		}, []string{"endpoint", "result"}),
		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "indextree",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a logical upstream fetch, retries included.",
			Buckets: []float64{
				0.005, 0.01, 0.025, 0.05,
				0.1, 0.25, 0.5,
				1, 2.5, 5, 10, 30,
			},
		}, []string{"endpoint"}),
		WalkNodes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "indextree",
			Name:      "walk_nodes",
			Help:      "Nodes visited per completed tree walk.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		NodesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "indextree",
			Name:      "nodes_written_total",
			Help:      "Nodes upserted into the cache store.",
		}),
		BuildTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indextree",
			Name:      "build_total",
			Help:      "Build-and-cache runs by result.",
		}, []string{"result"}),
	}
})

// Get returns the process collectors, registering them on first use
func Get() *Collectors {
	return singleton()
}

// Handler serves the default registry
func Handler() http.Handler {
	Get()
	return promhttp.Handler()
}
