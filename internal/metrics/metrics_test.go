package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.BatchIngested(3)
	m.BatchIngested(2)
	m.EpochClosed()
	m.EpochSummarized()
	m.UnknownProtocol(47)
	m.UnknownProtocol(47)
	m.SendFailed("osc")
	m.SetPendingBatches(4)
	m.ObserveMetric("tcp_pps", 12, 6)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.batchesIngested))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.recordsIngested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.epochsClosed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.epochsSummarized))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.unknownProtocol.WithLabelValues("47")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sendErrors.WithLabelValues("osc")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pendingBatches))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.metricValue.WithLabelValues("tcp_pps")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.metricThreshold.WithLabelValues("tcp_pps")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.BatchIngested(1)
		m.EpochClosed()
		m.EpochSummarized()
		m.EpochAborted()
		m.UnknownProtocol(1)
		m.SetPendingBatches(1)
		m.ObserveMetric("x", 1, 1)
		m.SendFailed("x")
		m.DecodeFailed("x")
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.EpochClosed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gons_epoch_closed_total 1")
}
