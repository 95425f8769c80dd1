package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scansTotal     prometheus.Counter
	scanSymbols    prometheus.Histogram
	scanSignals    prometheus.Histogram
	backtestsTotal prometheus.Counter
	backtestTrades prometheus.Histogram
	fetchBatches   *prometheus.CounterVec
	fetchSymbols   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		scansTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marketsweep_scans_total",
				Help: "Total number of completed scans",
			},
		),
		scanSymbols: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketsweep_scan_symbols",
				Help:    "Universe size per scan",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
		scanSignals: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketsweep_scan_signals",
				Help:    "Signals emitted per scan",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		backtestsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marketsweep_backtests_total",
				Help: "Total number of completed backtests",
			},
		),
		backtestTrades: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketsweep_backtest_trades",
				Help:    "Trades produced per backtest",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		fetchBatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsweep_fetch_batches_total",
				Help: "Grouped fetch batches by result",
			},
			[]string{"result"},
		),
		fetchSymbols: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsweep_fetch_symbols_total",
				Help: "Symbols requested from the provider by batch result",
			},
			[]string{"result"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsweep_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketsweep_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordScan records one completed scan.
func (r *Recorder) RecordScan(symbols, signals, failed int, seconds float64) {
	r.scansTotal.Inc()
	r.scanSymbols.Observe(float64(symbols))
	r.scanSignals.Observe(float64(signals))
	if failed > 0 {
		r.errorsTotal.WithLabelValues("fetch_symbol").Add(float64(failed))
	}
	r.latency.WithLabelValues("scan").Observe(seconds)
}

// RecordBacktest records one completed backtest run.
func (r *Recorder) RecordBacktest(trades int, seconds float64) {
	r.backtestsTotal.Inc()
	r.backtestTrades.Observe(float64(trades))
	r.latency.WithLabelValues("backtest").Observe(seconds)
}

// RecordFetchBatch records one grouped provider call.
func (r *Recorder) RecordFetchBatch(result string, symbols int) {
	r.fetchBatches.WithLabelValues(result).Inc()
	r.fetchSymbols.WithLabelValues(result).Add(float64(symbols))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
