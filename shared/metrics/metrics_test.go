package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New(Config{Namespace: "relayer", ServiceName: "test"})

	m.RecordJob("CONFIRMED")
	m.RecordJob("CONFIRMED")
	m.RecordJob("FAILED")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("CONFIRMED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("FAILED")))

	done := m.JobStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsInFlight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.JobsInFlight))

	m.RecordStage("fee", nil, time.Millisecond)
	m.RecordStage("fee", errors.New("boom"), time.Millisecond)
	assert.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))

	m.RecordDependencyError("pinata")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DependencyErrors.WithLabelValues("pinata")))

	m.RecordSenderBalance(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SenderBalanceOK))
	m.RecordSenderBalance(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SenderBalanceOK))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(Config{Namespace: "relayer", ServiceName: "test"})
	m.RecordRequest(http.MethodGet, "/status", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relayer_request_total")
}
