package metrics

import (
	"sync"

	"SigCast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	signalsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigcast",
			Subsystem: "engine",
			Name:      "signals_received_total",
			Help:      "Signals admitted for execution, by source",
		},
		[]string{"source"},
	)

	gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigcast",
			Subsystem: "engine",
			Name:      "gate_decisions_total",
			Help:      "Gate decisions by result",
		},
		[]string{"result"},
	)

	attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigcast",
			Subsystem: "engine",
			Name:      "execution_attempts_total",
			Help:      "Per-account execution attempts by outcome and exchange",
		},
		[]string{"outcome", "exchange"},
	)

	dispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sigcast",
			Subsystem: "engine",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of a single account dispatch",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"exchange"},
	)

	executeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sigcast",
			Subsystem: "engine",
			Name:      "execute_duration_seconds",
			Help:      "End-to-end duration of one signal execution",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 45, 60},
		},
	)

	engineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigcast",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Engine errors by kind",
		},
		[]string{"kind"},
	)
)

// Register installs the engine collectors into the default registry.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			signalsReceived,
			gateDecisions,
			attempts,
			dispatchLatency,
			executeDuration,
			engineErrors,
		)
	})
}

// Recorder adapts the Prometheus collectors to the engine's Metrics
// interface.
type Recorder struct{}

func NewRecorder() *Recorder {
	Register()
	return &Recorder{}
}

func (Recorder) RecordSignalReceived(source string) {
	signalsReceived.WithLabelValues(source).Inc()
}

func (Recorder) RecordGateDecision(approved bool) {
	result := "rejected"
	if approved {
		result = "approved"
	}
	gateDecisions.WithLabelValues(result).Inc()
}

func (Recorder) RecordAttempt(outcome models.Outcome, exchange string) {
	attempts.WithLabelValues(string(outcome), exchange).Inc()
}

func (Recorder) RecordDispatchLatency(exchange string, seconds float64) {
	dispatchLatency.WithLabelValues(exchange).Observe(seconds)
}

func (Recorder) RecordExecuteDuration(seconds float64) {
	executeDuration.Observe(seconds)
}

func (Recorder) RecordError(kind string) {
	engineErrors.WithLabelValues(kind).Inc()
}
