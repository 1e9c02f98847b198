package repository

import "errors"

var (
	// ErrImageMissing indicates the request carried neither inline data nor a usable blob reference
	ErrImageMissing = errors.New("no image supplied")

	// ErrBlobSourceDisabled indicates a blob URL was given but no storage account is configured
	ErrBlobSourceDisabled = errors.New("blob image source not configured")
)
