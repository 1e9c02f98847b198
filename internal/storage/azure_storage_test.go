package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

type fakeDownloader struct {
	data        []byte
	contentType string
	err         error
	container   string
	blob        string
}

func (f *fakeDownloader) download(_ context.Context, container, blob string) (io.ReadCloser, string, error) {
	f.container, f.blob = container, blob
	if f.err != nil {
		return nil, "", f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), f.contentType, nil
}

func TestGetImageBase64(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		contentType string
		expected    string
	}{
		{
			name:        "declared image type",
			data:        []byte("jpeg-bytes"),
			contentType: "image/jpeg",
			expected:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
		},
		{
			name:        "sniffed png",
			data:        pngHeader,
			contentType: "application/octet-stream",
			expected:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader),
		},
		{
			name:        "unknown content stays bare",
			data:        []byte("DICM dicom payload"),
			contentType: "",
			expected:    base64.StdEncoding.EncodeToString([]byte("DICM dicom payload")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dl := &fakeDownloader{data: tt.data, contentType: tt.contentType}
			s := &azureStorage{account: "scans", maxBytes: 1024, dl: dl}

			out, err := s.GetImageBase64(context.Background(), "uploads", "a/b.png")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
			assert.Equal(t, "uploads", dl.container)
			assert.Equal(t, "a/b.png", dl.blob)
		})
	}
}

func TestGetImageBase64_Errors(t *testing.T) {
	s := &azureStorage{account: "scans", maxBytes: 4, dl: &fakeDownloader{data: []byte("12345"), contentType: "image/png"}}
	_, err := s.GetImageBase64(context.Background(), "c", "b")
	assert.ErrorIs(t, err, ErrBlobTooLarge)

	s = &azureStorage{account: "scans", maxBytes: 4, dl: &fakeDownloader{err: ErrBlobNotFound}}
	_, err = s.GetImageBase64(context.Background(), "c", "b")
	assert.ErrorIs(t, err, ErrBlobNotFound)

	boom := errors.New("boom")
	s = &azureStorage{account: "scans", maxBytes: 4, dl: &fakeDownloader{err: boom}}
	_, err = s.GetImageBase64(context.Background(), "c", "b")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "scans", s.Account())
}

func TestNewAzureStorage_RejectsBadKey(t *testing.T) {
	_, err := NewAzureStorage("scans", "not base64!!", 1024)
	assert.Error(t, err)
}
