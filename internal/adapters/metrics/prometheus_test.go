package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/stakeshare/internal/ports"
)

var _ ports.Metrics = (*Prometheus)(nil)

func TestPrometheusCounters(t *testing.T) {
	p := NewPrometheus("test")
	p.ClickRecorded("success")
	p.ClickRecorded("success")
	p.ConversionIngested("duplicate")
	p.TerminationTransitioned("approved")
	p.ObserveHTTP("/r/{code}", "GET", "302", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.clicks.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.conversions.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.terminations.WithLabelValues("approved")))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_clicks_total{outcome="success"} 2`)
	assert.Contains(t, string(body), `test_http_requests_total{code="302",method="GET",route="/r/{code}"} 1`)
}
