package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	apperrors "go-radiology-reporter/internal/errors"
	"go-radiology-reporter/internal/normalizer"
	"go-radiology-reporter/internal/observer"
	"go-radiology-reporter/internal/repository"
	"go-radiology-reporter/internal/upstream"
	"go-radiology-reporter/pkg/models"
	"go-radiology-reporter/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const image = "aGVsbG8gd29ybGQ="

type fakeUpstream struct {
	resp  *upstream.Response
	err   error
	calls int
	last  models.UpstreamRequest
}

func (f *fakeUpstream) Analyze(_ context.Context, req models.UpstreamRequest) (*upstream.Response, error) {
	f.calls++
	f.last = req
	return f.resp, f.err
}

type recorder struct {
	mu     sync.Mutex
	events []observer.AnalysisEvent
}

func (r *recorder) OnEvent(_ context.Context, ev observer.AnalysisEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) GetObserverName() string { return "recorder" }

func (r *recorder) byType(t observer.EventType) []observer.AnalysisEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []observer.AnalysisEvent
	for _, ev := range r.events {
		if ev.EventType == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestService(up upstream.Analyzer) (AnalysisService, *observer.EventPublisher, *recorder) {
	pub := observer.NewEventPublisher()
	rec := &recorder{}
	pub.Subscribe(rec)
	svc := NewAnalysisService(
		repository.NewImageRepository(nil),
		validation.NewRequestValidator(),
		up,
		normalizer.New(),
		pub,
	)
	return svc, pub, rec
}

func ok(body string) *upstream.Response {
	return &upstream.Response{StatusCode: http.StatusOK, Body: []byte(body), Duration: 2 * time.Second}
}

func TestAnalyze_Success(t *testing.T) {
	up := &fakeUpstream{resp: ok(`[{"report": {"findings": [{"observation": "Opacity in right lung", "severity": "critical"}]}}]`)}
	svc, pub, rec := newTestService(up)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	out, err := svc.Analyze(ctx, models.AnalysisRequest{ImageBase64: image, Modality: "CT"})
	require.NoError(t, err)
	pub.Flush()

	assert.True(t, out.Success)
	require.Len(t, out.Report.Findings, 1)
	assert.Equal(t, models.UrgencyCritical, out.Report.Findings[0].Urgency)
	assert.True(t, out.Report.Safety.NotADiagnosis)

	assert.Equal(t, 1, up.calls)
	assert.Equal(t, models.UpstreamRequest{
		ImageBase64: image, ImageName: "scan.png", Modality: "ct", BodyPart: "chest",
	}, up.last)

	completed := rec.byType(observer.AnalysisCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "req-1", completed[0].RequestID)
	require.NotNil(t, completed[0].Schema)
	assert.Equal(t, 1, completed[0].Schema.LegacyFindings)
	assert.True(t, completed[0].Schema.Unwrapped)
	assert.Len(t, rec.byType(observer.AnalysisStarted), 1)
	assert.Len(t, rec.byType(observer.UpstreamResponded), 1)
}

func TestAnalyze_EmptyObjectNormalizes(t *testing.T) {
	svc, _, _ := newTestService(&fakeUpstream{resp: ok(`{}`)})

	out, err := svc.Analyze(context.Background(), models.AnalysisRequest{ImageBase64: image})
	require.NoError(t, err)
	assert.Empty(t, out.Report.Findings)
	assert.Equal(t, normalizer.DefaultDisclaimer, out.Disclaimer)
}

func TestAnalyze_ValidationFailsBeforeUpstream(t *testing.T) {
	up := &fakeUpstream{resp: ok(`{}`)}
	svc, pub, rec := newTestService(up)

	_, err := svc.Analyze(context.Background(), models.AnalysisRequest{})
	pub.Flush()

	require.Error(t, err)
	appErr, isApp := apperrors.As(err)
	require.True(t, isApp)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Equal(t, apperrors.MsgImageRequired, appErr.Message)
	assert.Zero(t, up.calls)

	failed := rec.byType(observer.AnalysisFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "validation", failed[0].ErrorType)
}

func TestAnalyze_BlobWithoutStorage(t *testing.T) {
	up := &fakeUpstream{resp: ok(`{}`)}
	svc, pub, rec := newTestService(up)

	_, err := svc.Analyze(context.Background(), models.AnalysisRequest{
		ImageBlobURL: "https://scans.blob.core.windows.net/c/x.png",
	})
	pub.Flush()

	assert.Equal(t, http.StatusBadRequest, apperrors.GetStatusCode(err))
	assert.Zero(t, up.calls)
	assert.Len(t, rec.byType(observer.BlobFetchFailed), 1)
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		up      *fakeUpstream
		status  int
		errType apperrors.ErrorType
		message string
	}{
		{
			name:    "upstream non-success",
			up:      &fakeUpstream{resp: &upstream.Response{StatusCode: 500, Body: []byte("Workflow failed")}},
			status:  http.StatusBadGateway,
			errType: apperrors.ErrorTypeUpstream,
			message: apperrors.MsgUpstream,
		},
		{
			name:    "upstream client error",
			up:      &fakeUpstream{resp: &upstream.Response{StatusCode: 404, Body: []byte("not registered")}},
			status:  http.StatusBadGateway,
			errType: apperrors.ErrorTypeUpstream,
			message: apperrors.MsgUpstream,
		},
		{
			name:    "empty body",
			up:      &fakeUpstream{resp: ok("  \n")},
			status:  http.StatusBadGateway,
			errType: apperrors.ErrorTypeUpstream,
			message: apperrors.MsgUpstream,
		},
		{
			name:    "malformed json",
			up:      &fakeUpstream{resp: ok(`{"report": `)},
			status:  http.StatusBadGateway,
			errType: apperrors.ErrorTypeUpstream,
			message: apperrors.MsgUpstream,
		},
		{
			name:    "pipeline error passthrough",
			up:      &fakeUpstream{resp: ok(`{"message": "Error in workflow"}`)},
			status:  http.StatusBadGateway,
			errType: apperrors.ErrorTypeUpstream,
			message: apperrors.MsgUpstream,
		},
		{
			name:    "pipeline error with null report",
			up:      &fakeUpstream{resp: ok(`{"message": "Error in workflow", "report": null}`)},
			status:  http.StatusBadGateway,
			errType: apperrors.ErrorTypeUpstream,
			message: apperrors.MsgUpstream,
		},
		{
			name:    "transport failure",
			up:      &fakeUpstream{err: &upstream.TransportError{Err: errors.New("connection refused")}},
			status:  http.StatusBadGateway,
			errType: apperrors.ErrorTypeTransport,
			message: apperrors.MsgTransport,
		},
		{
			name:    "transport timeout",
			up:      &fakeUpstream{err: &upstream.TransportError{Err: context.DeadlineExceeded, Timeout: true}},
			status:  http.StatusGatewayTimeout,
			errType: apperrors.ErrorTypeTimeout,
			message: apperrors.MsgTimeout,
		},
		{
			name:    "oversized response",
			up:      &fakeUpstream{err: upstream.ErrResponseTooLarge},
			status:  http.StatusBadGateway,
			errType: apperrors.ErrorTypeUpstream,
			message: apperrors.MsgUpstream,
		},
		{
			name:    "unexpected error",
			up:      &fakeUpstream{err: errors.New("encode failed")},
			status:  http.StatusInternalServerError,
			errType: apperrors.ErrorTypeInternal,
			message: apperrors.MsgInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, pub, rec := newTestService(tt.up)

			out, err := svc.Analyze(context.Background(), models.AnalysisRequest{ImageBase64: image})
			pub.Flush()

			assert.Nil(t, out)
			appErr, isApp := apperrors.As(err)
			require.True(t, isApp)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.errType, appErr.Type)
			assert.Equal(t, tt.message, appErr.Message)
			assert.Equal(t, 1, tt.up.calls, "exactly one upstream call")

			failed := rec.byType(observer.AnalysisFailed)
			require.Len(t, failed, 1)
			assert.Equal(t, string(tt.errType), failed[0].ErrorType)
			assert.Empty(t, rec.byType(observer.AnalysisCompleted))
		})
	}
}

func TestAnalyze_PassthroughDetailsAreKept(t *testing.T) {
	svc, _, _ := newTestService(&fakeUpstream{resp: ok(`[{"message": "Workflow could not be started!"}]`)})

	_, err := svc.Analyze(context.Background(), models.AnalysisRequest{ImageBase64: image})
	appErr, isApp := apperrors.As(err)
	require.True(t, isApp)
	assert.Equal(t, "Workflow could not be started!", appErr.Details)
	assert.NotContains(t, appErr.Message, "Workflow")
}

func TestRequestIDContext(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	assert.Equal(t, "abc", RequestIDFromContext(ContextWithRequestID(context.Background(), "abc")))
}
