package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	InvalidInput           Kind = "InvalidInput"
	ExtractionFailed       Kind = "ExtractionFailed"
	EmptyDocument          Kind = "EmptyDocument"
	ModelUnavailable       Kind = "ModelUnavailable"
	EmptyModelResponse     Kind = "EmptyModelResponse"
	MalformedModelResponse Kind = "MalformedModelResponse"
	PersistenceError       Kind = "PersistenceError"
	NotFound               Kind = "NotFound"
	Timeout                Kind = "Timeout"
	Internal               Kind = "Internal"
)

// Reasons carried by InvalidInput errors
const (
	ReasonMissingFile    = "missing-file"
	ReasonWrongMediaType = "wrong-media-type"
	ReasonTooLarge       = "too-large"
	ReasonUnknownMode    = "unknown-mode"
	ReasonMissingID      = "missing-id"
)

// Error is a classified error raised by one pipeline stage
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

// New creates a classified error wrapping err (which may be nil)
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Invalid creates an InvalidInput error with the given reason
func Invalid(reason string) *Error {
	return &Error{Kind: InvalidInput, Reason: reason}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns a short diagnostic suitable for display to the uploader
func (e *Error) Message() string {
	switch e.Kind {
	case InvalidInput:
		switch e.Reason {
		case ReasonMissingFile:
			return "No file uploaded"
		case ReasonWrongMediaType:
			return "Only PDF files are supported"
		case ReasonTooLarge:
			return "File is too large. Maximum size is 10MB"
		case ReasonUnknownMode:
			return "Unknown extraction mode"
		case ReasonMissingID:
			return "Invoice ID required"
		}
		return "Invalid request"
	case ExtractionFailed:
		return "Could not read the PDF document"
	case EmptyDocument:
		return "No extractable text found in document. Please upload a text-based PDF"
	case ModelUnavailable:
		return "Extraction service unavailable. Please try again later"
	case EmptyModelResponse:
		return "Extraction service returned no content. Please try again later"
	case MalformedModelResponse:
		return "Invalid response format from extraction service"
	case PersistenceError:
		return "Error saving invoice"
	case NotFound:
		return "Invoice not found"
	case Timeout:
		return "Invoice processing timed out"
	}
	return "Error processing invoice"
}

// KindOf returns the kind of the first classified error in err's chain,
// or Internal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the display message for err
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return "Error processing invoice"
}
