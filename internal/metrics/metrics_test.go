package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-bridge/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestCollector_AuthOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordAuthOperation("signin", "success")
	c.RecordAuthOperation("signin", "success")
	c.RecordAuthOperation("signin", "invalid_credentials")
	c.RecordAuthOperation("signup", "")

	mf := findMetric(t, reg, "authbridge_auth_operations_total")
	values := map[string]float64{}
	for _, m := range mf.GetMetric() {
		values[labelValue(m, "operation")+"/"+labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	require.Equal(t, map[string]float64{
		"signin/success":             2,
		"signin/invalid_credentials": 1,
		"signup/error":               1,
	}, values)
}

func TestCollector_SessionChecks(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordSessionCheck(metrics.SessionAnonymous, time.Millisecond)
	c.RecordSessionCheck(metrics.SessionRefreshed, 20*time.Millisecond)

	mf := findMetric(t, reg, "authbridge_session_checks_total")
	require.Len(t, mf.GetMetric(), 2)

	latency := findMetric(t, reg, "authbridge_session_check_seconds")
	require.Equal(t, uint64(2), latency.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestCollector_RateLimited(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordRateLimited("/auth/signin")

	mf := findMetric(t, reg, "authbridge_rate_limited_total")
	require.Equal(t, "/auth/signin", labelValue(mf.GetMetric()[0], "route"))
	require.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.RecordAuthOperation("signout", "success")

	w := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "authbridge_auth_operations_total")
}
