package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketstate"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsProcessed   prometheus.Counter
	oracleFallbacks *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	throughput      prometheus.Gauge
}

// New registers the recorder's collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		barsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bars_processed_total",
			Help:      "Total number of bars fed through the engine",
		}),
		oracleFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_fallbacks_total",
			Help:      "Prediction oracle calls answered with neutral defaults",
		}, []string{"mode"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors encountered",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		throughput: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_bars_per_second",
			Help:      "Bars per second of the most recent analysis",
		}),
	}
}

func (r *Recorder) RecordBarsProcessed(n int) {
	if n > 0 {
		r.barsProcessed.Add(float64(n))
	}
}

func (r *Recorder) RecordOracleFallback(mode string) {
	r.oracleFallbacks.WithLabelValues(mode).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordThroughput(barsPerSecond float64) {
	r.throughput.Set(barsPerSecond)
}
