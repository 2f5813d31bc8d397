package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.IncPage("acme")
	m.IncPage("acme")
	m.AddItems("acme", 5)
	m.AddItems("acme", 0)
	m.IncError("timeout")
	m.IncJob("succeeded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesVisited.WithLabelValues("acme")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ItemsExtracted.WithLabelValues("acme")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsTotal.WithLabelValues("succeeded")))
}

func TestGauges(t *testing.T) {
	m := New()

	m.JobStarted()
	m.JobStarted()
	m.JobFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveJobs))

	m.SetPoolInUse(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PoolSessionsUse))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.IncPage("acme")
	m.AddItems("acme", 3)
	m.IncError("network")
	m.IncJob("failed")
	m.ObserveRateLimitDelay(time.Second)
	m.JobStarted()
	m.JobFinished()
	m.SetPoolInUse(1)
}

func TestHandler(t *testing.T) {
	m := New()
	m.IncPage("acme")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "crawler_pages_visited_total"), "exposition should carry engine metrics")
}
