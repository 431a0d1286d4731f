package invoice

import (
	"github.com/uzair166/invoiceprocessor/internal/apperr"
)

const (
	// MaxUploadSize is the largest accepted document, in bytes
	MaxUploadSize = 10 << 20

	// PDFContentType is the only accepted media type
	PDFContentType = "application/pdf"
)

// Upload is a document received from a client. It is never persisted.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// Validate checks presence, media type and size of an upload
func Validate(u *Upload) error {
	if u == nil || len(u.Data) == 0 {
		return apperr.Invalid(apperr.ReasonMissingFile)
	}
	if u.ContentType != PDFContentType {
		return apperr.Invalid(apperr.ReasonWrongMediaType)
	}
	if u.Size > MaxUploadSize || int64(len(u.Data)) > MaxUploadSize {
		return apperr.Invalid(apperr.ReasonTooLarge)
	}
	return nil
}
