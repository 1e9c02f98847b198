package container

import (
	"fmt"
	"net/http"

	"go-radiology-reporter/internal/config"
	"go-radiology-reporter/internal/logger"
	"go-radiology-reporter/internal/metrics"
	"go-radiology-reporter/internal/normalizer"
	"go-radiology-reporter/internal/observer"
	"go-radiology-reporter/internal/repository"
	"go-radiology-reporter/internal/service"
	"go-radiology-reporter/internal/storage"
	"go-radiology-reporter/internal/transport"
	"go-radiology-reporter/internal/upstream"
	"go-radiology-reporter/pkg/validation"

	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	metrics         *metrics.Metrics
	events          *observer.EventPublisher
	upstreamClient  *upstream.Client
	imageRepository repository.ImageRepository
	analysisService service.AnalysisService
	handler         http.Handler
}

// NewContainer builds the dependency graph from cfg.
func NewContainer(cfg *config.Config) (*Container, error) {
	tables, err := normalizer.LoadTables(cfg.MappingTablesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping tables: %w", err)
	}
	norm := normalizer.New(
		normalizer.WithTables(tables),
		normalizer.WithDisclaimer(cfg.DefaultDisclaimer),
	)

	m := metrics.New()
	stats := observer.NewStatsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(stats)
	events.Subscribe(m.Observer())

	client := upstream.NewClient(upstream.Options{
		URL:                cfg.UpstreamURL,
		AuthHeader:         cfg.UpstreamAuthHeader,
		AuthToken:          cfg.UpstreamAuthToken,
		Timeout:            cfg.UpstreamTimeout,
		MaxResponseBytes:   cfg.UpstreamMaxResponseBytes,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
		OnBreakerChange:    m.SetBreakerState,
	})

	var blobs storage.BlobStorage
	if cfg.AzureEnabled() {
		blobs, err = storage.NewAzureStorage(cfg.AzureStorageAccount, cfg.AzureStorageKey, cfg.MaxImageBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize blob storage: %w", err)
		}
	}
	imageRepository := repository.NewImageRepository(blobs)

	analysisService := service.NewAnalysisService(
		imageRepository,
		validation.NewRequestValidatorWithLimit(cfg.MaxImageBytes),
		client,
		norm,
		events,
	)

	handler := transport.NewHandler(transport.Deps{
		Service:      analysisService,
		Config:       cfg,
		Metrics:      m,
		Stats:        stats,
		BreakerState: client.BreakerState,
	})

	logger.WithFields(logrus.Fields{
		"upstream":        cfg.UpstreamURL,
		"blob_source":     blobs != nil,
		"mapping_tables":  cfg.MappingTablesFile,
		"max_image_bytes": cfg.MaxImageBytes,
	}).Info("Dependencies initialized")

	return &Container{
		config:          cfg,
		metrics:         m,
		events:          events,
		upstreamClient:  client,
		imageRepository: imageRepository,
		analysisService: analysisService,
		handler:         handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close waits for in-flight observer deliveries.
func (c *Container) Close() {
	c.events.Flush()
}
