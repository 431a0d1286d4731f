package scanning

import (
	"context"
	"strings"

	"github.com/uzair166/invoiceprocessor/internal/apperr"
)

// Mode selects which invoice schema governs prompt, parsing and normalization
type Mode string

const (
	// ModeSingle expects one rich invoice object per document
	ModeSingle Mode = "single"
	// ModeMulti expects {"invoices": [...]} with flattened VAT invoices
	ModeMulti Mode = "multi"
)

// ParseMode validates a mode name; the empty string yields def
func ParseMode(s string, def Mode) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case ModeSingle:
		return ModeSingle, nil
	case ModeMulti:
		return ModeMulti, nil
	}
	return "", apperr.Invalid(apperr.ReasonUnknownMode)
}

// Extractor defines the structured extraction capability of a language model
type Extractor interface {
	// Extract sends the extraction instruction for mode plus the document
	// text and returns the model's raw JSON text
	Extract(ctx context.Context, text string, mode Mode) (string, error)
	// Close releases resources held by the client
	Close() error
}
