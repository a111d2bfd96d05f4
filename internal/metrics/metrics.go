package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the Prometheus instruments for the scan pipeline.
// Each Registry owns its own prometheus.Registry so independent
// instances never collide on metric names.
type Registry struct {
	reg *prometheus.Registry

	ScanDuration   prometheus.Histogram
	TickerDuration *prometheus.HistogramVec

	TickersScanned  *prometheus.CounterVec
	ContractsScored prometheus.Counter

	SentimentMethod    *prometheus.CounterVec
	ClassifierFallback prometheus.Counter

	HeadlineCacheHits   prometheus.Counter
	HeadlineCacheMisses prometheus.Counter

	ActiveScans prometheus.Gauge
	TotalScans  prometheus.Counter
}

// NewRegistry creates and registers all pipeline metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "optrank_scan_duration_seconds",
				Help:    "Duration of a full scan run in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		TickerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optrank_ticker_duration_seconds",
				Help:    "Duration of a single ticker evaluation in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"result"},
		),

		TickersScanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optrank_tickers_total",
				Help: "Total tickers processed by terminal state",
			},
			[]string{"state"},
		),

		ContractsScored: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "optrank_contracts_scored_total",
				Help: "Total option contracts scored",
			},
		),

		SentimentMethod: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optrank_sentiment_batches_total",
				Help: "Sentiment batches scored by method",
			},
			[]string{"method"},
		),

		ClassifierFallback: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "optrank_classifier_fallbacks_total",
				Help: "Times the classifier was abandoned for the lexicon",
			},
		),

		HeadlineCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "optrank_headline_cache_hits_total",
				Help: "Headline cache hits",
			},
		),

		HeadlineCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "optrank_headline_cache_misses_total",
				Help: "Headline cache misses",
			},
		),

		ActiveScans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "optrank_active_scans",
				Help: "Number of scans currently running",
			},
		),

		TotalScans: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "optrank_scans_total",
				Help: "Total scans started",
			},
		),
	}

	r.reg.MustRegister(
		r.ScanDuration,
		r.TickerDuration,
		r.TickersScanned,
		r.ContractsScored,
		r.SentimentMethod,
		r.ClassifierFallback,
		r.HeadlineCacheHits,
		r.HeadlineCacheMisses,
		r.ActiveScans,
		r.TotalScans,
	)

	return r
}

// TickerTimer times one ticker evaluation.
type TickerTimer struct {
	metrics *Registry
	start   time.Time
}

// StartTicker begins timing a ticker evaluation.
func (r *Registry) StartTicker() *TickerTimer {
	return &TickerTimer{metrics: r, start: time.Now()}
}

// Stop records the elapsed time and terminal state for the ticker.
func (t *TickerTimer) Stop(state string) {
	t.metrics.TickerDuration.WithLabelValues(state).Observe(time.Since(t.start).Seconds())
	t.metrics.TickersScanned.WithLabelValues(state).Inc()
}

// ScanStarted marks a scan as in flight.
func (r *Registry) ScanStarted() {
	r.ActiveScans.Inc()
	r.TotalScans.Inc()
}

// ScanFinished records the scan duration and releases the in-flight slot.
func (r *Registry) ScanFinished(d time.Duration) {
	r.ScanDuration.Observe(d.Seconds())
	r.ActiveScans.Dec()
}

// RecordSentiment counts a scored batch by method name.
func (r *Registry) RecordSentiment(method string) {
	r.SentimentMethod.WithLabelValues(method).Inc()
}

// Handler exposes the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
