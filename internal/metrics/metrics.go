// Package metrics exposes prometheus instruments for query streams and remote calls.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	// OutcomeStale counts responses dropped because a newer request was issued.
	OutcomeStale = "stale"
)

const (
	StreamUnits     = "units"
	StreamRollup    = "rollup"
	StreamHierarchy = "hierarchy"
)

type Config struct {
	ServiceName string
	Environment string
}

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	streamResponses *prometheus.CounterVec
	streamLatency   *prometheus.HistogramVec
	remoteCalls     *prometheus.CounterVec
	remoteLatency   *prometheus.HistogramVec
}

func New(registerer prometheus.Registerer, cfg Config) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "survey-bknd"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	r := &Recorder{
		streamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "survey_stream_responses_total",
			Help:        "Responses received by query streams, by outcome.",
			ConstLabels: constLabels,
		}, []string{"stream", "outcome"}),
		streamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "survey_stream_request_duration_seconds",
			Help:        "Time from dispatch to response for query stream requests.",
			Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}, []string{"stream"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "survey_remote_calls_total",
			Help:        "Aggregation service calls by operation and outcome.",
			ConstLabels: constLabels,
		}, []string{"op", "outcome"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "survey_remote_call_duration_seconds",
			Help:        "Aggregation service call latency by operation.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120},
			ConstLabels: constLabels,
		}, []string{"op"}),
	}

	registerer.MustRegister(r.streamResponses, r.streamLatency, r.remoteCalls, r.remoteLatency)
	return r
}

// StreamResponse records a response that reached a stream.
func (r *Recorder) StreamResponse(stream, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.streamResponses.WithLabelValues(stream, outcome).Inc()
	if outcome != OutcomeStale {
		r.streamLatency.WithLabelValues(stream).Observe(elapsed.Seconds())
	}
}

// RemoteCall records one aggregation service call.
func (r *Recorder) RemoteCall(op string, err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	r.remoteCalls.WithLabelValues(op, outcome).Inc()
	r.remoteLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}
