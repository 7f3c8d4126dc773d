package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SIR2425/go-oauth20/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.IncrementFlowStarted()
	m.IncrementFlowStarted()
	m.IncrementFlowCompleted("authenticated")
	m.IncrementFlowCompleted("failed")
	m.IncrementLoginFailure("state_mismatch")
	m.IncrementGuardDecision("allow")
	m.ObserveExchange(time.Now())

	require.Equal(t, 2.0, testutil.ToFloat64(m.FlowsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FlowsCompleted.WithLabelValues("authenticated")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LoginFailures.WithLabelValues("state_mismatch")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("allow")))
	require.Equal(t, 1, testutil.CollectAndCount(m.ExchangeDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.IncrementFlowStarted()
		m.IncrementFlowCompleted("failed")
		m.IncrementLoginFailure("missing_code")
		m.IncrementGuardDecision("deny")
		m.ObserveExchange(time.Now())
	})
	require.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.IncrementFlowStarted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "oauth_login_flows_started_total 1"))
}
