package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const namespace = "rankwatch"

var (
	// CollectorPages counts search page requests by outcome (ok, retry, error).
	CollectorPages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collector_page_requests_total",
		Help:      "Search page requests by outcome",
	}, []string{"outcome"})

	// CacheLookups counts rank cache reads by result (hit, miss, error).
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Keyword snapshot cache lookups by result",
	}, []string{"result"})

	// CacheWriteErrors counts failed snapshot writes.
	CacheWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_write_errors_total",
		Help:      "Keyword snapshot cache writes that failed",
	})

	// FanoutItems counts tracked items updated by fan-out passes.
	FanoutItems = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_items_updated_total",
		Help:      "Tracked items updated by fan-out",
	})

	// KeywordFailures counts keyword units that failed, by source (refresh, sweep).
	KeywordFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "keyword_failures_total",
		Help:      "Keyword refresh units that failed",
	}, []string{"source"})

	// RunDuration observes whole refresh and sweep runs, by source.
	RunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of owner refreshes and system sweeps",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"source"})
)

var (
	trackedItemsDesc = prometheus.NewDesc(
		namespace+"_tracked_items",
		"Number of tracked items",
		nil, nil,
	)
	trackedKeywordsDesc = prometheus.NewDesc(
		namespace+"_tracked_keywords",
		"Number of distinct tracked keywords",
		nil, nil,
	)
)

// TrackingCounter reports current tracking totals.
type TrackingCounter interface {
	CountTracking(ctx context.Context) (items int64, keywords int64, err error)
}

// TrackingCollector is a custom Prometheus collector that reads tracking
// totals from the database on each scrape.
type TrackingCollector struct {
	source TrackingCounter
	logger *logrus.Logger
}

// Describe sends the metric descriptors to the channel.
func (c *TrackingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- trackedItemsDesc
	ch <- trackedKeywordsDesc
}

// Collect queries the database and emits the totals as gauges.
func (c *TrackingCollector) Collect(ch chan<- prometheus.Metric) {
	items, keywords, err := c.source.CountTracking(context.Background())
	if err != nil {
		c.logger.WithError(err).Error("failed to collect tracking metrics")
		return
	}
	ch <- prometheus.MustNewConstMetric(trackedItemsDesc, prometheus.GaugeValue, float64(items))
	ch <- prometheus.MustNewConstMetric(trackedKeywordsDesc, prometheus.GaugeValue, float64(keywords))
}

var initOnce sync.Once

// Init registers every metric with the default registry.
// Must be called once at startup.
func Init(source TrackingCounter, logger *logrus.Logger) {
	initOnce.Do(func() {
		prometheus.MustRegister(
			CollectorPages,
			CacheLookups,
			CacheWriteErrors,
			FanoutItems,
			KeywordFailures,
			RunDuration,
			&TrackingCollector{source: source, logger: logger},
		)
	})
}
