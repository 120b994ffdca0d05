// Package metrics exposes Prometheus instrumentation for the extraction
// pipeline, the HTTP API and the NATS publisher.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry so tests and embedders never collide
// with the default global one.
type Collector struct {
	reg *prometheus.Registry

	Extractions      prometheus.Counter
	ExtractionErrors prometheus.Counter
	TripsSelected    prometheus.Gauge

	FeedLoadSeconds   prometheus.Histogram
	ExtractionSeconds prometheus.Histogram

	HTTPRequests *prometheus.CounterVec // route label: health|routes|timetable|alerts|runs
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishSeconds  prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Extractions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetables_extractions_total",
			Help: "Total timetable extractions run.",
		}),
		ExtractionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetables_extraction_errors_total",
			Help: "Total timetable extractions that failed.",
		}),
		TripsSelected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timetables_trips_selected",
			Help: "Trips selected by the most recent extraction.",
		}),
		FeedLoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetables_feed_load_duration_seconds",
			Help:    "Duration of GTFS feed loading.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		ExtractionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetables_extraction_duration_seconds",
			Help:    "Duration of one extraction run.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetables_http_requests_total",
			Help: "HTTP API requests by route.",
		}, []string{"route"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetables_cache_hits_total",
			Help: "HTTP responses served from the memo cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetables_cache_misses_total",
			Help: "HTTP responses computed fresh.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetables_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetables_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timetables_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetables_nats_publish_duration_seconds",
			Help:    "Duration to marshal and publish one NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.Extractions, c.ExtractionErrors, c.TripsSelected,
		c.FeedLoadSeconds, c.ExtractionSeconds,
		c.HTTPRequests, c.CacheHits, c.CacheMisses,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishSeconds,
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// The four methods below satisfy publisher.Metrics.

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }

func (c *Collector) PublishObserve(d time.Duration) { c.PublishSeconds.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
