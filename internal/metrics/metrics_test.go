package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.Observe(ResultPublished, 90*time.Second, 1000, 400)
	m.Observe(ResultFailed, 10*time.Second, 500, 0)
	m.Observe(ResultPrecondition, 0, 0, 0)
	m.SetKnownBad(1)
	m.ScanDone()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues(ResultPublished)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues(ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues(ResultPrecondition)))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.InputBytes))
	assert.Equal(t, 400.0, testutil.ToFloat64(m.OutputBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KnownBad))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Scans))
	assert.Equal(t, uint64(2), histogramCount(t, m, "encloop_encode_duration_seconds"))
}

func histogramCount(t *testing.T, m *Metrics, name string) uint64 {
	t.Helper()
	mfs, err := m.reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe(ResultPublished, time.Second, 1, 1)
		m.SetKnownBad(3)
		m.ScanDone()
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Observe(ResultPublished, time.Second, 10, 5)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `encloop_attempts_total{result="published"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
