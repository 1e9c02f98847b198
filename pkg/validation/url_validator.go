package validation

import (
	"net/url"
	"strings"

	apperrors "go-radiology-reporter/internal/errors"
)

const blobHostSuffix = ".blob.core.windows.net"

// BlobLocation identifies a single blob in an Azure storage account.
type BlobLocation struct {
	Account   string
	Container string
	Blob      string
}

// URLValidator handles blob URL validation logic
type URLValidator struct {
	allowedSchemes  []string
	allowedAccounts []string
}

// NewURLValidator creates a validator that accepts https blob URLs for any account
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes:  []string{"https"},
		allowedAccounts: []string{}, // empty means all accounts allowed
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, accounts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes:  schemes,
		allowedAccounts: accounts,
	}
}

// ValidateBlobURL parses https://<account>.blob.core.windows.net/<container>/<blob>.
func (v *URLValidator) ValidateBlobURL(blobURL string) (BlobLocation, error) {
	if strings.TrimSpace(blobURL) == "" {
		return BlobLocation{}, apperrors.NewValidationError("Blob URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(strings.TrimSpace(blobURL))
	if err != nil {
		return BlobLocation{}, apperrors.NewValidationError("Invalid blob URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return BlobLocation{}, apperrors.NewValidationError("Blob URL scheme not allowed", nil)
	}

	host := strings.ToLower(parsedURL.Hostname())
	account, ok := strings.CutSuffix(host, blobHostSuffix)
	if !ok || account == "" || strings.Contains(account, ".") {
		return BlobLocation{}, apperrors.NewValidationError("Blob URL must point to an Azure blob endpoint", nil)
	}

	if !v.isAccountAllowed(account) {
		return BlobLocation{}, apperrors.NewValidationError("Storage account not allowed", nil)
	}

	container, blob, _ := strings.Cut(strings.TrimPrefix(parsedURL.Path, "/"), "/")
	if container == "" || blob == "" {
		return BlobLocation{}, apperrors.NewValidationError("Blob URL must include a container and blob name", nil)
	}

	return BlobLocation{Account: account, Container: container, Blob: blob}, nil
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isAccountAllowed returns true if no account restrictions are set
func (v *URLValidator) isAccountAllowed(account string) bool {
	if len(v.allowedAccounts) == 0 {
		return true
	}
	for _, allowed := range v.allowedAccounts {
		if strings.EqualFold(account, allowed) {
			return true
		}
	}
	return false
}
