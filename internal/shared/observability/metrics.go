package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "semtree_build_seconds",
		Help:    "Time spent building one module.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semtree_builds_total",
		Help: "Total number of module builds by outcome.",
	}, []string{"mode", "status"})

	DeferredRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "semtree_deferred_records_total",
		Help: "Deferred records processed during resolution, by queue and outcome.",
	}, []string{"queue", "outcome"})

	RegistryModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "semtree_registry_modules",
		Help: "Number of modules currently registered in the session registry.",
	})

	ParseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "semtree_parse_seconds",
		Help:    "Time spent in the raw syntax parser.",
		Buckets: prometheus.DefBuckets,
	})
)
