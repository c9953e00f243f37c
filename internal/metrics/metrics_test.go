package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStreamResponseCounts(t *testing.T) {
	r := New(prometheus.NewRegistry(), Config{Environment: "test"})

	r.StreamResponse(StreamUnits, OutcomeSuccess, 20*time.Millisecond)
	r.StreamResponse(StreamUnits, OutcomeStale, 0)
	r.StreamResponse(StreamUnits, OutcomeStale, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.streamResponses.WithLabelValues(StreamUnits, OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.streamResponses.WithLabelValues(StreamUnits, OutcomeStale)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.streamLatency))
}

func TestRemoteCallOutcome(t *testing.T) {
	r := New(prometheus.NewRegistry(), Config{})

	r.RemoteCall("units", nil, time.Millisecond)
	r.RemoteCall("units", errors.New("down"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.remoteCalls.WithLabelValues("units", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.remoteCalls.WithLabelValues("units", OutcomeFailure)))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.StreamResponse(StreamRollup, OutcomeFailure, time.Second)
		r.RemoteCall("totals", nil, time.Second)
	})
}
