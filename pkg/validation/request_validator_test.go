package validation

import (
	"encoding/base64"
	"strings"
	"testing"

	apperrors "go-radiology-reporter/internal/errors"
	"go-radiology-reporter/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8/5+hHgAHggJ/PchI7wAAAABJRU5ErkJggg=="

func TestValidate_Defaults(t *testing.T) {
	v := NewRequestValidator()

	out, err := v.Validate(models.AnalysisRequest{ImageBase64: tinyPNG})
	require.NoError(t, err)

	assert.Equal(t, models.UpstreamRequest{
		ImageBase64:     tinyPNG,
		ImageName:       "scan.png",
		Modality:        "xray",
		BodyPart:        "chest",
		ClinicalContext: "",
	}, out)
}

func TestValidate_PassesFieldsThrough(t *testing.T) {
	v := NewRequestValidator()
	dataURL := "data:image/png;base64," + tinyPNG

	out, err := v.Validate(models.AnalysisRequest{
		ImageBase64:     dataURL,
		ImageName:       "cxr-001.png",
		Modality:        "CT",
		BodyPart:        "Abdomen",
		ClinicalContext: "  55-year-old male, persistent cough  ",
	})
	require.NoError(t, err)

	assert.Equal(t, dataURL, out.ImageBase64)
	assert.Equal(t, "cxr-001.png", out.ImageName)
	assert.Equal(t, "ct", out.Modality)
	assert.Equal(t, "abdomen", out.BodyPart)
	assert.Equal(t, "55-year-old male, persistent cough", out.ClinicalContext)
}

func TestValidate_UnknownModalityIsForwarded(t *testing.T) {
	out, err := NewRequestValidator().Validate(models.AnalysisRequest{ImageBase64: tinyPNG, Modality: "PET"})
	require.NoError(t, err)
	assert.Equal(t, "pet", out.Modality)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		image   string
		message string
	}{
		{"empty", "", apperrors.MsgImageRequired},
		{"blank", "  \n ", apperrors.MsgImageRequired},
		{"not base64", "this is not base64!", "Image data is not valid base64"},
		{"non-image data url", "data:application/pdf;base64," + tinyPNG, "Please upload an image file (PNG, JPEG, DICOM)"},
		{"data url without base64", "data:image/png," + tinyPNG, "Image data URL must be base64 encoded"},
		{"empty data url payload", "data:image/png;base64,", apperrors.MsgImageRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequestValidator().Validate(models.AnalysisRequest{ImageBase64: tt.image})
			require.Error(t, err)

			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestValidate_SizeLimit(t *testing.T) {
	v := NewRequestValidatorWithLimit(1024 * 1024)

	within := base64.StdEncoding.EncodeToString(make([]byte, 1024*1024))
	_, err := v.Validate(models.AnalysisRequest{ImageBase64: within})
	assert.NoError(t, err)

	over := base64.StdEncoding.EncodeToString(make([]byte, 1024*1024+1))
	_, err = v.Validate(models.AnalysisRequest{ImageBase64: over})
	require.Error(t, err)
	assert.Equal(t, "Image must be under 1MB", err.(*apperrors.AppError).Message)
}

func TestValidate_WrappedBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 200)))
	wrapped := encoded[:76] + "\n" + encoded[76:152] + "\r\n" + encoded[152:]

	_, err := NewRequestValidator().Validate(models.AnalysisRequest{ImageBase64: wrapped})
	assert.NoError(t, err)
}

func TestValidate_WrappedBase64AtLimit(t *testing.T) {
	v := NewRequestValidatorWithLimit(30)
	encoded := base64.StdEncoding.EncodeToString(make([]byte, 30))

	var wrapped strings.Builder
	for i := 0; i < len(encoded); i += 8 {
		wrapped.WriteString(encoded[i:min(i+8, len(encoded))])
		wrapped.WriteString("\r\n")
	}

	_, err := v.Validate(models.AnalysisRequest{ImageBase64: encoded})
	assert.NoError(t, err)
	_, err = v.Validate(models.AnalysisRequest{ImageBase64: wrapped.String()})
	assert.NoError(t, err)

	over := base64.StdEncoding.EncodeToString(make([]byte, 31))
	_, err = v.Validate(models.AnalysisRequest{ImageBase64: over})
	require.Error(t, err)
	assert.Equal(t, "Image must be under 30 bytes", err.(*apperrors.AppError).Message)
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{20 * 1024 * 1024, "20MB"},
		{1536 * 1024, "1.5MB"},
		{512 * 1024, "512KB"},
		{1536, "1.5KB"},
		{30, "30 bytes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.n))
	}
}

func TestValidate_UnpaddedBase64(t *testing.T) {
	raw := base64.RawStdEncoding.EncodeToString([]byte("abcde"))

	_, err := NewRequestValidator().Validate(models.AnalysisRequest{ImageBase64: raw})
	assert.NoError(t, err)
}

func TestOptions(t *testing.T) {
	opts := Options()

	require.Len(t, opts.Modalities, 5)
	require.Len(t, opts.BodyParts, 8)
	assert.Equal(t, models.Option{Value: "xray", Label: "X-Ray"}, opts.Modalities[0])
	assert.Equal(t, models.Option{Value: "chest", Label: "Chest"}, opts.BodyParts[0])

	// Callers get a copy.
	opts.Modalities[0].Label = "changed"
	assert.Equal(t, "X-Ray", Modalities[0].Label)
}
