package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "go-radiology-reporter/internal/errors"
	"go-radiology-reporter/internal/normalizer"
	"go-radiology-reporter/internal/observer"
	"go-radiology-reporter/internal/repository"
	"go-radiology-reporter/internal/storage"
	"go-radiology-reporter/internal/upstream"
	"go-radiology-reporter/pkg/models"
	"go-radiology-reporter/pkg/validation"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxDetailBytes bounds how much of an upstream error body is kept for logs.
const maxDetailBytes = 512

// AnalysisService runs the analyze operation end to end.
type AnalysisService interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error)
}

type analysisService struct {
	images     repository.ImageRepository
	validator  *validation.RequestValidator
	upstream   upstream.Analyzer
	normalizer *normalizer.Normalizer
	events     observer.Subject
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	images repository.ImageRepository,
	validator *validation.RequestValidator,
	client upstream.Analyzer,
	norm *normalizer.Normalizer,
	events observer.Subject,
) AnalysisService {
	return &analysisService{
		images:     images,
		validator:  validator,
		upstream:   client,
		normalizer: norm,
		events:     events,
	}
}

// Analyze validates req, makes exactly one upstream call and normalizes the
// result. Every returned error is an *apperrors.AppError.
func (s *analysisService) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	start := time.Now()
	base := observer.AnalysisEvent{RequestID: RequestIDFromContext(ctx)}

	resolved, src, err := s.images.ResolveImage(ctx, req)
	if src == repository.SourceBlob {
		ev := base
		ev.EventType = observer.BlobFetched
		ev.Success = err == nil
		if err != nil {
			ev.EventType = observer.BlobFetchFailed
			ev.ErrorMessage = err.Error()
		}
		s.notify(ctx, ev)
	}
	if err != nil {
		return nil, s.fail(ctx, base, start, classifyImageError(err))
	}

	upReq, err := s.validator.Validate(resolved)
	if err != nil {
		return nil, s.fail(ctx, base, start, err)
	}
	base.Modality = upReq.Modality
	base.BodyPart = upReq.BodyPart

	started := base
	started.EventType = observer.AnalysisStarted
	s.notify(ctx, started)

	resp, err := s.upstream.Analyze(ctx, upReq)
	if err != nil {
		return nil, s.fail(ctx, base, start, classifyUpstreamError(err))
	}

	responded := base
	responded.EventType = observer.UpstreamResponded
	responded.UpstreamStatus = resp.StatusCode
	responded.ProcessingTime = resp.Duration
	responded.Success = resp.OK()
	s.notify(ctx, responded)
	base.UpstreamStatus = resp.StatusCode

	payload, err := decodePayload(resp)
	if err != nil {
		return nil, s.fail(ctx, base, start, err)
	}

	if msg, ok := normalizer.IsErrorPassthrough(payload); ok {
		return nil, s.fail(ctx, base, start,
			apperrors.NewUpstreamError(errors.New("pipeline reported an error")).WithDetails("%s", truncate(msg)))
	}

	out, stats := s.normalizer.Normalize(payload)

	done := base
	done.EventType = observer.AnalysisCompleted
	done.Success = true
	done.ProcessingTime = time.Since(start)
	done.Schema = &stats
	s.notify(ctx, done)

	return out, nil
}

// decodePayload turns an upstream response into a JSON value, rejecting
// non-2xx, empty and malformed bodies.
func decodePayload(resp *upstream.Response) (any, error) {
	if !resp.OK() {
		return nil, apperrors.NewUpstreamError(fmt.Errorf("upstream status %d", resp.StatusCode)).
			WithDetails("%s", truncate(string(resp.Body)))
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return nil, apperrors.NewUpstreamError(errors.New("empty upstream response"))
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewUpstreamError(fmt.Errorf("decode upstream response: %w", err)).
			WithDetails("%s", truncate(string(body)))
	}
	return payload, nil
}

func classifyImageError(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrImageMissing), errors.Is(err, repository.ErrBlobSourceDisabled):
		return apperrors.NewValidationError(apperrors.MsgImageRequired, err)
	case errors.Is(err, storage.ErrBlobNotFound):
		return apperrors.NewValidationError("Image blob not found", err)
	case errors.Is(err, storage.ErrBlobTooLarge):
		return apperrors.NewValidationError("Image exceeds the size limit", err)
	}
	return apperrors.NewInternalError(err)
}

func classifyUpstreamError(err error) error {
	var te *upstream.TransportError
	switch {
	case errors.As(err, &te) && te.Timeout:
		return apperrors.NewTimeoutError(err)
	case errors.As(err, &te):
		return apperrors.NewTransportError(err)
	case errors.Is(err, upstream.ErrResponseTooLarge):
		return apperrors.NewUpstreamError(err)
	}
	return apperrors.NewInternalError(err)
}

func (s *analysisService) fail(ctx context.Context, ev observer.AnalysisEvent, start time.Time, err error) error {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternalError(err)
	}

	ev.EventType = observer.AnalysisFailed
	ev.ProcessingTime = time.Since(start)
	ev.ErrorType = string(appErr.Type)
	ev.ErrorMessage = appErr.Error()
	if appErr.Details != "" {
		ev.Metadata = map[string]any{"details": appErr.Details}
	}
	s.notify(ctx, ev)
	return appErr
}

func (s *analysisService) notify(ctx context.Context, ev observer.AnalysisEvent) {
	if s.events != nil {
		s.events.NotifyObservers(ctx, ev)
	}
}

func truncate(s string) string {
	if len(s) <= maxDetailBytes {
		return s
	}
	return s[:maxDetailBytes] + "..."
}
