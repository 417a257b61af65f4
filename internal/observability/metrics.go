package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	turnTotal    *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	modelCallTotal    *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec
	modelTokensTotal  *prometheus.CounterVec

	turnRetriesTotal *prometheus.CounterVec

	storeOpTotal    *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	activeStreams     prometheus.Gauge
	streamDeltasTotal prometheus.Counter

	personaCompileTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "turn_total",
					Help: "Total conversation turns by mode and status.",
				},
				[]string{"mode", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "turn_duration_seconds",
					Help:    "Conversation turn duration in seconds by mode.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"mode"},
			),
			modelCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_call_total",
					Help: "Total model invocations by provider and status.",
				},
				[]string{"provider", "status"},
			),
			modelCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "model_call_duration_seconds",
					Help:    "Model invocation duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			turnRetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "turn_retries_total",
					Help: "Total whole-turn retries by provider.",
				},
				[]string{"provider"},
			),
			modelTokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_tokens_total",
					Help: "Total tokens consumed by provider and direction.",
				},
				[]string{"provider", "direction"},
			),
			storeOpTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "store_op_total",
					Help: "Total store operations by operation and status.",
				},
				[]string{"op", "status"},
			),
			storeOpDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "store_op_duration_seconds",
					Help:    "Store operation duration in seconds by operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op"},
			),
			activeStreams: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_streams",
					Help: "Current number of open streaming turns.",
				},
			),
			streamDeltasTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "stream_deltas_total",
					Help: "Total streamed text deltas emitted.",
				},
			),
			personaCompileTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "persona_compile_total",
					Help: "Total persona profile compilations by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.turnTotal,
			m.turnDuration,
			m.modelCallTotal,
			m.modelCallDuration,
			m.turnRetriesTotal,
			m.modelTokensTotal,
			m.storeOpTotal,
			m.storeOpDuration,
			m.activeStreams,
			m.streamDeltasTotal,
			m.personaCompileTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordTurn(mode string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.turnTotal.WithLabelValues(mode, status).Inc()
	m.turnDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func RecordModelCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.modelCallTotal.WithLabelValues(provider, status).Inc()
	m.modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordTurnRetry(provider string) {
	m := getMetrics()
	m.turnRetriesTotal.WithLabelValues(provider).Inc()
}

func RecordTokens(provider string, input, output int64) {
	m := getMetrics()
	if input > 0 {
		m.modelTokensTotal.WithLabelValues(provider, "input").Add(float64(input))
	}
	if output > 0 {
		m.modelTokensTotal.WithLabelValues(provider, "output").Add(float64(output))
	}
}

func RecordStoreOp(op string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.storeOpTotal.WithLabelValues(op, status).Inc()
	m.storeOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func IncActiveStreams() {
	m := getMetrics()
	m.activeStreams.Inc()
}

func DecActiveStreams() {
	m := getMetrics()
	m.activeStreams.Dec()
}

func RecordStreamDelta() {
	m := getMetrics()
	m.streamDeltasTotal.Inc()
}

func RecordPersonaCompile(success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.personaCompileTotal.WithLabelValues(status).Inc()
}
