package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-radiology-reporter/internal/normalizer"
	"go-radiology-reporter/internal/observer"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserver_CompletedAnalysis(t *testing.T) {
	m := New()
	obs := m.Observer()

	obs.OnEvent(context.Background(), observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		ProcessingTime: 3 * time.Second,
		Schema: &normalizer.Stats{
			LegacyFindings:         2,
			CurrentFindings:        1,
			CurrentRecommendations: 3,
			Impression:             normalizer.ImpressionText,
		},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.schemaRecords.WithLabelValues("finding", "legacy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.schemaRecords.WithLabelValues("finding", "current")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.schemaRecords.WithLabelValues("recommendation", "current")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.impressionForms.WithLabelValues("text")))
}

func TestObserver_FailuresAndUpstream(t *testing.T) {
	m := New()
	obs := m.Observer()
	ctx := context.Background()

	obs.OnEvent(ctx, observer.AnalysisEvent{EventType: observer.UpstreamResponded, UpstreamStatus: 500})
	obs.OnEvent(ctx, observer.AnalysisEvent{EventType: observer.AnalysisFailed, ErrorType: "upstream"})
	obs.OnEvent(ctx, observer.AnalysisEvent{EventType: observer.AnalysisFailed})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamResponses.WithLabelValues("500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("upstream")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("unknown")))
	assert.Equal(t, "prometheus_observer", obs.GetObserverName())
}

func TestBreakerState(t *testing.T) {
	m := New()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("closed")))

	m.SetBreakerState("open")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.breakerState.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("open")))
}

func TestHandler(t *testing.T) {
	m := New()
	done := m.RequestStarted()
	m.ObserveRequest(http.MethodPost, "/api/analyze", 200, 150*time.Millisecond)
	m.RateLimited()
	done()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `http_requests_total{method="POST",path="/api/analyze",status="200"} 1`))
	assert.Contains(t, text, "http_rate_limited_total 1")
	assert.Contains(t, text, "http_requests_in_flight 0")
	assert.Contains(t, text, "go_goroutines")
}
