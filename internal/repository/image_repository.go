package repository

import (
	"context"
	"fmt"
	"strings"

	"go-radiology-reporter/internal/storage"
	"go-radiology-reporter/pkg/models"
	"go-radiology-reporter/pkg/validation"
)

// BlobImageRepository implements ImageRepository over inline data and,
// when configured, Azure blob storage.
type BlobImageRepository struct {
	blobs storage.BlobStorage
	urls  *validation.URLValidator
}

// NewImageRepository creates an image repository. blobs may be nil, in which
// case only inline images are accepted.
func NewImageRepository(blobs storage.BlobStorage) ImageRepository {
	r := &BlobImageRepository{blobs: blobs}
	if blobs != nil {
		r.urls = validation.NewURLValidatorWithOptions([]string{"https"}, []string{blobs.Account()})
	}
	return r
}

// ResolveImage populates ImageBase64 from the blob reference when no inline
// data was sent.
func (r *BlobImageRepository) ResolveImage(ctx context.Context, req models.AnalysisRequest) (models.AnalysisRequest, ImageSource, error) {
	if strings.TrimSpace(req.ImageBase64) != "" {
		return req, SourceInline, nil
	}
	if strings.TrimSpace(req.ImageBlobURL) == "" {
		return req, SourceInline, ErrImageMissing
	}
	if r.blobs == nil {
		return req, SourceBlob, ErrBlobSourceDisabled
	}

	loc, err := r.urls.ValidateBlobURL(req.ImageBlobURL)
	if err != nil {
		return req, SourceBlob, err
	}

	data, err := r.blobs.GetImageBase64(ctx, loc.Container, loc.Blob)
	if err != nil {
		return req, SourceBlob, fmt.Errorf("fetch %s/%s: %w", loc.Container, loc.Blob, err)
	}

	req.ImageBase64 = data
	if strings.TrimSpace(req.ImageName) == "" {
		req.ImageName = loc.Blob[strings.LastIndex(loc.Blob, "/")+1:]
	}
	return req, SourceBlob, nil
}
