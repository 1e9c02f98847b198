package observer

import (
	"context"
	"sync"
	"time"

	"go-radiology-reporter/internal/normalizer"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent represents an analysis event. Image data is never attached.
type AnalysisEvent struct {
	EventType      EventType         `json:"event_type"`
	Timestamp      time.Time         `json:"timestamp"`
	RequestID      string            `json:"request_id,omitempty"`
	Modality       string            `json:"modality,omitempty"`
	BodyPart       string            `json:"body_part,omitempty"`
	ProcessingTime time.Duration     `json:"processing_time"`
	UpstreamStatus int               `json:"upstream_status,omitempty"`
	Success        bool              `json:"success"`
	ErrorType      string            `json:"error_type,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Schema         *normalizer.Stats `json:"schema,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when a validated request is about to be sent upstream
	AnalysisStarted EventType = "analysis_started"
	// UpstreamResponded when the workflow returned any HTTP response
	UpstreamResponded EventType = "upstream_responded"
	// AnalysisCompleted when a normalized report was produced
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when the request ended in an error
	AnalysisFailed EventType = "analysis_failed"
	// BlobFetched when an image was resolved from blob storage
	BlobFetched EventType = "blob_fetched"
	// BlobFetchFailed when blob storage could not supply the image
	BlobFetchFailed EventType = "blob_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"request_id":      event.RequestID,
		"processing_time": event.ProcessingTime.String(),
		"success":         event.Success,
	}
	if event.Modality != "" {
		fields["modality"] = event.Modality
		fields["body_part"] = event.BodyPart
	}
	if event.UpstreamStatus != 0 {
		fields["upstream_status"] = event.UpstreamStatus
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_type"] = event.ErrorType
	}
	if s := event.Schema; s != nil {
		fields["legacy_findings"] = s.LegacyFindings
		fields["current_findings"] = s.CurrentFindings
		fields["legacy_recommendations"] = s.LegacyRecommendations
		fields["current_recommendations"] = s.CurrentRecommendations
		fields["impression_form"] = s.Impression
		fields["unwrapped"] = s.Unwrapped
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Info("Report analysis started")
	case UpstreamResponded:
		entry.Debug("Analysis workflow responded")
	case AnalysisCompleted:
		entry.Info("Report analysis completed")
	case AnalysisFailed:
		entry.Error("Report analysis failed")
	case BlobFetched:
		entry.Debug("Image fetched from blob storage")
	case BlobFetchFailed:
		entry.Error("Blob image fetch failed")
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// StatsObserver keeps running totals for the health endpoint.
type StatsObserver struct {
	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	legacyReports       int64
	totalProcessingTime time.Duration
	failuresByType      map[string]int64
}

// NewStatsObserver creates a new stats observer
func NewStatsObserver() *StatsObserver {
	return &StatsObserver{failuresByType: make(map[string]int64)}
}

// OnEvent handles analysis events by updating the totals
func (o *StatsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
		if s := event.Schema; s != nil && (s.LegacyFindings > 0 || s.LegacyRecommendations > 0) {
			o.legacyReports++
		}
	case AnalysisFailed:
		o.failedAnalyses++
		o.failuresByType[event.ErrorType]++
	}
}

// GetObserverName returns the observer name
func (o *StatsObserver) GetObserverName() string {
	return "stats_observer"
}

// Snapshot is a point-in-time copy of the totals.
type Snapshot struct {
	TotalAnalyses      int64            `json:"total_analyses"`
	SuccessfulAnalyses int64            `json:"successful_analyses"`
	FailedAnalyses     int64            `json:"failed_analyses"`
	LegacyReports      int64            `json:"legacy_reports"`
	AvgProcessingTime  string           `json:"avg_processing_time"`
	FailuresByType     map[string]int64 `json:"failures_by_type"`
}

// Snapshot returns current totals
func (o *StatsObserver) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := time.Duration(0)
	if o.successfulAnalyses > 0 {
		avg = o.totalProcessingTime / time.Duration(o.successfulAnalyses)
	}
	failures := make(map[string]int64, len(o.failuresByType))
	for k, v := range o.failuresByType {
		failures[k] = v
	}

	return Snapshot{
		TotalAnalyses:      o.totalAnalyses,
		SuccessfulAnalyses: o.successfulAnalyses,
		FailedAnalyses:     o.failedAnalyses,
		LegacyReports:      o.legacyReports,
		AvgProcessingTime:  avg.String(),
		FailuresByType:     failures,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event concurrently.
// The request context may already be done when an observer runs, so the
// event is delivered with a detached context.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, observer := range observers {
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(detached, event)
		}(observer)
	}
}

// Flush blocks until every delivered event has been handled.
func (p *EventPublisher) Flush() {
	p.pending.Wait()
}
