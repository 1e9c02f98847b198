package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-radiology-reporter/internal/config"
	apperrors "go-radiology-reporter/internal/errors"
	"go-radiology-reporter/internal/logger"
	"go-radiology-reporter/internal/metrics"
	"go-radiology-reporter/internal/observer"
	"go-radiology-reporter/internal/service"
	"go-radiology-reporter/pkg/models"
	"go-radiology-reporter/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const version = "1.0.0"

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Service service.AnalysisService
	Config  *config.Config
	Metrics *metrics.Metrics
	Stats   *observer.StatsObserver
	// BreakerState reports the upstream circuit breaker state for /health.
	BreakerState func() string
}

func NewHandler(deps Deps) http.Handler {
	cfg := deps.Config
	r := gin.New()

	r.Use(
		recovery(),
		requestID(),
		accessLog(),
		prometheusMetrics(deps.Metrics),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	limiter := NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	analyze := analyzeReport(deps.Service, cfg.RequestTimeout)

	r.GET("/health", healthCheck(deps))
	r.GET("/api/options", listOptions)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.POST("/api/analyze", limiter.Middleware(deps.Metrics), analyze)
	r.POST("/analyze", limiter.Middleware(deps.Metrics), analyze)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, apperrors.NewNotFoundError("Route not found"))
	})

	return r
}

func analyzeReport(svc service.AnalysisService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		var req models.AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				respondError(c, err)
				return
			}
			respondError(c, apperrors.NewValidationError("Invalid request body", err))
			return
		}

		logger.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"ip":         c.ClientIP(),
			"image_name": req.ImageName,
			"modality":   req.Modality,
			"body_part":  req.BodyPart,
			"blob":       req.ImageBlobURL != "",
		}).Debug("Processing analysis request")

		out, err := svc.Analyze(ctx, req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, out)
	}
}

func listOptions(c *gin.Context) {
	c.JSON(http.StatusOK, validation.Options())
}

func healthCheck(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":  "available",
			"version": version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		}
		if deps.BreakerState != nil {
			body["upstream_breaker"] = deps.BreakerState()
		}
		if deps.Stats != nil {
			body["analyses"] = deps.Stats.Snapshot()
		}
		c.JSON(http.StatusOK, body)
	}
}
