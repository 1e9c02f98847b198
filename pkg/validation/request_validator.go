package validation

import (
	"encoding/base64"
	"fmt"
	"strings"

	apperrors "go-radiology-reporter/internal/errors"
	"go-radiology-reporter/pkg/models"
)

const (
	DefaultImageName       = "scan.png"
	DefaultModality        = "xray"
	DefaultBodyPart        = "chest"
	DefaultMaxImageBytes   = 20 * 1024 * 1024
	dataURLPrefix          = "data:"
	dataURLBase64Separator = ";base64,"
)

// Modalities are the imaging modalities offered to clients.
var Modalities = []models.Option{
	{Value: "xray", Label: "X-Ray"},
	{Value: "ct", Label: "CT Scan"},
	{Value: "mri", Label: "MRI"},
	{Value: "ultrasound", Label: "Ultrasound"},
	{Value: "mammography", Label: "Mammography"},
}

// BodyParts are the anatomical regions offered to clients.
var BodyParts = []models.Option{
	{Value: "chest", Label: "Chest"},
	{Value: "abdomen", Label: "Abdomen"},
	{Value: "head", Label: "Head / Brain"},
	{Value: "spine", Label: "Spine"},
	{Value: "pelvis", Label: "Pelvis"},
	{Value: "extremity", Label: "Extremity"},
	{Value: "neck", Label: "Neck"},
	{Value: "cardiac", Label: "Cardiac"},
}

// Options returns the modality and body part lists.
func Options() models.OptionsResponse {
	return models.OptionsResponse{
		Modalities: append([]models.Option(nil), Modalities...),
		BodyParts:  append([]models.Option(nil), BodyParts...),
	}
}

// RequestValidator checks inbound analysis requests and fills defaults.
type RequestValidator struct {
	maxImageBytes int64
}

// NewRequestValidator creates a validator with the default image size limit
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{maxImageBytes: DefaultMaxImageBytes}
}

// NewRequestValidatorWithLimit creates a validator with a custom decoded image limit
func NewRequestValidatorWithLimit(maxImageBytes int64) *RequestValidator {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &RequestValidator{maxImageBytes: maxImageBytes}
}

// Validate returns the upstream request for req. The image is forwarded as
// the client sent it; decoding only checks that it is well formed.
func (v *RequestValidator) Validate(req models.AnalysisRequest) (models.UpstreamRequest, error) {
	image := strings.TrimSpace(req.ImageBase64)
	if image == "" {
		return models.UpstreamRequest{}, apperrors.NewValidationError(apperrors.MsgImageRequired, nil)
	}

	size, err := v.decodedSize(image)
	if err != nil {
		return models.UpstreamRequest{}, err
	}
	if size == 0 {
		return models.UpstreamRequest{}, apperrors.NewValidationError(apperrors.MsgImageRequired, nil)
	}
	if int64(size) > v.maxImageBytes {
		return models.UpstreamRequest{}, v.tooLarge()
	}

	return models.UpstreamRequest{
		ImageBase64:     image,
		ImageName:       orDefault(req.ImageName, DefaultImageName),
		Modality:        strings.ToLower(orDefault(req.Modality, DefaultModality)),
		BodyPart:        strings.ToLower(orDefault(req.BodyPart, DefaultBodyPart)),
		ClinicalContext: strings.TrimSpace(req.ClinicalContext),
	}, nil
}

// decodedSize validates raw base64 or an image data URL and returns the
// payload size in bytes.
func (v *RequestValidator) decodedSize(image string) (int, error) {
	payload := image
	if strings.HasPrefix(image, dataURLPrefix) {
		header, data, ok := strings.Cut(image[len(dataURLPrefix):], dataURLBase64Separator)
		if !ok {
			return 0, apperrors.NewValidationError("Image data URL must be base64 encoded", nil)
		}
		if !strings.HasPrefix(strings.ToLower(header), "image/") {
			return 0, apperrors.NewValidationError("Please upload an image file (PNG, JPEG, DICOM)", nil)
		}
		payload = data
	}

	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)

	// Reject oversized input before decoding it.
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > v.maxImageBytes+3 {
		return 0, v.tooLarge()
	}

	enc := base64.StdEncoding
	if !strings.HasSuffix(payload, "=") && len(payload)%4 != 0 {
		enc = base64.RawStdEncoding
	}
	decoded, err := enc.DecodeString(payload)
	if err != nil {
		return 0, apperrors.NewValidationError("Image data is not valid base64", err)
	}
	return len(decoded), nil
}

func (v *RequestValidator) tooLarge() error {
	return apperrors.NewValidationError("Image must be under "+formatSize(v.maxImageBytes), nil)
}

// formatSize renders a byte limit in MB, KB or bytes.
func formatSize(n int64) string {
	const kb, mb = 1024, 1024 * 1024
	switch {
	case n >= mb && n%mb == 0:
		return fmt.Sprintf("%dMB", n/mb)
	case n >= mb:
		return fmt.Sprintf("%.1fMB", float64(n)/mb)
	case n >= kb && n%kb == 0:
		return fmt.Sprintf("%dKB", n/kb)
	case n >= kb:
		return fmt.Sprintf("%.1fKB", float64(n)/kb)
	}
	return fmt.Sprintf("%d bytes", n)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
