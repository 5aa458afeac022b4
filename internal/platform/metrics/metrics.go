package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds application-level Prometheus metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec

	RegistrationsCreated prometheus.Counter
	RegistrationsFailed  prometheus.Counter
	StepAdvanced         prometheus.Counter
	StepRetreated        prometheus.Counter
	// StepNoOp counts progress calls that matched no active step, by
	// operation ("advance" or "retreat").
	StepNoOp *prometheus.CounterVec

	CatalogCacheHits      prometheus.Counter
	CatalogCacheMisses    prometheus.Counter
	CatalogLookupDuration prometheus.Histogram
}

// New creates and registers all application-level Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "manasik_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		RegistrationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "manasik_registrations_created_total",
			Help: "Progress records created lazily on first lookup",
		}),
		RegistrationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "manasik_registrations_failed_total",
			Help: "Registrations moved to the terminal failed status",
		}),
		StepAdvanced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "manasik_registration_step_advanced_total",
			Help: "Successful step advances",
		}),
		StepRetreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "manasik_registration_step_retreated_total",
			Help: "Successful step retreats",
		}),
		StepNoOp: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registration_step_noop_total",
			Help: "Progress calls skipped because the current step is not in the active sequence",
		}, []string{"op"}),
		CatalogCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "manasik_catalog_cache_hits_total",
			Help: "Active-step snapshot reads served from cache",
		}),
		CatalogCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "manasik_catalog_cache_misses_total",
			Help: "Active-step snapshot reads that fell through to the store",
		}),
		CatalogLookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "manasik_catalog_lookup_duration_seconds",
			Help:    "Latency of active-step snapshot lookups, cache and store combined",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
