package repository

import (
	"context"

	"go-radiology-reporter/pkg/models"
)

// ImageRepository resolves the image for an analysis request.
type ImageRepository interface {
	// ResolveImage returns req with ImageBase64 populated. Inline data wins
	// over a blob reference.
	ResolveImage(ctx context.Context, req models.AnalysisRequest) (models.AnalysisRequest, ImageSource, error)
}

// ImageSource records where the image came from.
type ImageSource string

const (
	SourceInline ImageSource = "inline"
	SourceBlob   ImageSource = "blob"
)
