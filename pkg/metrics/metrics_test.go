package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEmbedding(OutcomeSuccess, 1, 0, time.Millisecond)
		m.ObserveChat(OutcomeSuccess)
		m.ObserveRepair()
		m.ObserveCache(1, 1)
		m.ObserveBreaker("chat", "open")
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := New(Config{Namespace: "test"})

	m.ObserveEmbedding(OutcomeFailure, 2, 1, 10*time.Millisecond)
	m.ObserveEmbedding(OutcomeSuccess, 3, 0, 10*time.Millisecond)
	m.ObserveChat(OutcomeRetryable)
	m.ObserveRepair()
	m.ObserveCache(4, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.embedRequests.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.embedGroups.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embedGroups.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatRequests.WithLabelValues(OutcomeRetryable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repairs))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(Config{Namespace: "test", ServiceName: "azurellm"})
	m.ObserveChat(OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_chat_requests_total{outcome="success",service="azurellm"} 1`)
}
