package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

var (
	// ErrBlobNotFound indicates the container or blob does not exist
	ErrBlobNotFound = errors.New("blob not found")

	// ErrBlobTooLarge indicates the blob exceeds the image size limit
	ErrBlobTooLarge = errors.New("blob exceeds image size limit")
)

// BlobStorage returns images from blob storage encoded for the upstream request.
type BlobStorage interface {
	GetImageBase64(ctx context.Context, container, blob string) (string, error)
	Account() string
}

// downloader is the slice of the azblob client this package needs.
type downloader interface {
	download(ctx context.Context, container, blob string) (io.ReadCloser, string, error)
}

type azblobDownloader struct {
	client *azblob.Client
}

func (d azblobDownloader) download(ctx context.Context, container, blob string) (io.ReadCloser, string, error) {
	resp, err := d.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
			return nil, "", ErrBlobNotFound
		}
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	contentType := ""
	if resp.ContentType != nil {
		contentType = *resp.ContentType
	}
	return resp.Body, contentType, nil
}

type azureStorage struct {
	account  string
	maxBytes int64
	dl       downloader
}

func NewAzureStorage(accountName string, accountKey string, maxBytes int64) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{account: accountName, maxBytes: maxBytes, dl: azblobDownloader{client: client}}, nil
}

func (s *azureStorage) Account() string {
	return s.account
}

// GetImageBase64 downloads the blob and returns it as an image data URL, or
// as bare base64 when the content is not recognizably an image (DICOM).
func (s *azureStorage) GetImageBase64(ctx context.Context, container, blob string) (string, error) {
	body, contentType, err := s.dl.download(ctx, container, blob)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrBlobTooLarge
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if mediaType, _, _ := strings.Cut(contentType, ";"); strings.HasPrefix(mediaType, "image/") {
		return "data:" + mediaType + ";base64," + encoded, nil
	}
	return encoded, nil
}
