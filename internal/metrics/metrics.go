// Package metrics exposes Prometheus collectors for search and CDS trigger handling.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pama"

// Collector holds every metric of the process on its own registry.
type Collector struct {
	registry *prometheus.Registry

	SearchQueriesTotal    *prometheus.CounterVec
	SearchSupersededTotal *prometheus.CounterVec
	SearchResults         *prometheus.HistogramVec

	CDSEventsTotal           *prometheus.CounterVec
	CDSRatingsDispatched     *prometheus.CounterVec
	CDSRatingsDiscardedTotal *prometheus.CounterVec

	TerminologyRebuildsTotal *prometheus.CounterVec
	TerminologyCodings       *prometheus.GaugeVec
}

// NewCollector creates and registers all collectors on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,

		SearchQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Debounced terminology searches that reached the index, by terminology kind.",
		}, []string{"kind"}),

		SearchSupersededTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "superseded_total",
			Help:      "Search calls discarded because a newer call replaced them or the caller went away.",
		}, []string{"kind"}),

		SearchResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of options delivered per search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50},
		}, []string{"kind"}),

		CDSEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cds",
			Name:      "events_total",
			Help:      "Event batches received from the CDS host, by trigger point and channel.",
		}, []string{"trigger_point", "channel"}),

		CDSRatingsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cds",
			Name:      "ratings_dispatched_total",
			Help:      "Ratings dispatched to the state store, by trigger point and rating.",
		}, []string{"trigger_point", "rating"}),

		CDSRatingsDiscardedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cds",
			Name:      "ratings_discarded_total",
			Help:      "Extracted ratings dropped because an earlier rating in the same batch won, by trigger mode.",
		}, []string{"trigger_mode"}),

		TerminologyRebuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "terminology",
			Name:      "rebuilds_total",
			Help:      "Code index builds by terminology kind and outcome.",
		}, []string{"kind", "outcome"}),

		TerminologyCodings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "terminology",
			Name:      "codings",
			Help:      "Codings in the active index, by terminology kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.SearchQueriesTotal,
		c.SearchSupersededTotal,
		c.SearchResults,
		c.CDSEventsTotal,
		c.CDSRatingsDispatched,
		c.CDSRatingsDiscardedTotal,
		c.TerminologyRebuildsTotal,
		c.TerminologyCodings,
	)
	return c
}

// Registry returns the registry the collectors are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
