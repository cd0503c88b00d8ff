package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ScoreDuration     *prometheus.HistogramVec
	ScoreFailures     *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	CollectionRuns    *prometheus.CounterVec
	CollectionRecords *prometheus.CounterVec
	ExtremeSignals    *prometheus.GaugeVec
	HTTPDuration      *prometheus.HistogramVec
	WSClients         prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ScoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cot_score_duration_seconds",
				Help:    "Time spent scoring a single market or the whole universe",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"scope"},
		),
		ScoreFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cot_score_failures_total",
				Help: "Markets that could not be scored, by reason",
			},
			[]string{"reason"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cot_cache_lookups_total",
				Help: "Score cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		CollectionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cot_collection_runs_total",
				Help: "Per-market collection runs by source and status",
			},
			[]string{"source", "status"},
		),
		CollectionRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cot_collection_records_total",
				Help: "Collected records by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		ExtremeSignals: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cot_extreme_signals",
				Help: "Markets currently flagged in each extreme bucket",
			},
			[]string{"bucket"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cot_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cot_ws_clients",
				Help: "Connected scoreboard websocket clients",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScoreDuration,
		m.ScoreFailures,
		m.CacheLookups,
		m.CollectionRuns,
		m.CollectionRecords,
		m.ExtremeSignals,
		m.HTTPDuration,
		m.WSClients,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveScore(scope string, started time.Time) {
	if m == nil {
		return
	}
	m.ScoreDuration.WithLabelValues(scope).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ScoreFailed(reason string) {
	if m == nil {
		return
	}
	m.ScoreFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) CollectionRun(source string, success bool, inserted, skipped int) {
	if m == nil {
		return
	}
	status := "failed"
	if success {
		status = "ok"
	}
	m.CollectionRuns.WithLabelValues(source, status).Inc()
	m.CollectionRecords.WithLabelValues(source, "inserted").Add(float64(inserted))
	m.CollectionRecords.WithLabelValues(source, "skipped").Add(float64(skipped))
}

func (m *Metrics) SetExtremes(buys, sells, highConfidence int) {
	if m == nil {
		return
	}
	m.ExtremeSignals.WithLabelValues("buy").Set(float64(buys))
	m.ExtremeSignals.WithLabelValues("sell").Set(float64(sells))
	m.ExtremeSignals.WithLabelValues("high_confidence").Set(float64(highConfidence))
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) AddWSClients(delta int) {
	if m == nil {
		return
	}
	m.WSClients.Add(float64(delta))
}
