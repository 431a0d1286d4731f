package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"

	"github.com/uzair166/invoiceprocessor/internal/apperr"
)

// MinTextLength is the shortest extracted text accepted as a document
const MinTextLength = 10

// Converter turns document bytes into plain text
type Converter interface {
	Convert(data []byte) (string, error)
}

// FitzConverter reads the text layer of a PDF with MuPDF
type FitzConverter struct{}

// Convert returns the text of every page, separated by form feeds
func (FitzConverter) Convert(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("reading page %d: %w", i+1, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\f"), nil
}

// TextExtractor classifies conversion failures and rejects documents
// without a usable text layer
type TextExtractor struct {
	converter Converter
	logger    *slog.Logger
}

// NewTextExtractor creates a TextExtractor; a nil converter uses MuPDF
func NewTextExtractor(converter Converter, logger *slog.Logger) *TextExtractor {
	if converter == nil {
		converter = FitzConverter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TextExtractor{converter: converter, logger: logger}
}

type convertResult struct {
	text string
	err  error
}

// Extract converts data to text. The conversion is not interruptible, so a
// context deadline abandons it and reports Timeout.
func (t *TextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	done := make(chan convertResult, 1)
	go func() {
		text, err := t.converter.Convert(data)
		done <- convertResult{text: text, err: err}
	}()

	var res convertResult
	select {
	case <-ctx.Done():
		return "", apperr.New(apperr.Timeout, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		t.logger.Error("text extraction failed", "bytes", len(data), "error", res.err)
		return "", apperr.New(apperr.ExtractionFailed, res.err)
	}

	length := utf8.RuneCountInString(strings.TrimSpace(res.text))
	if length < MinTextLength {
		t.logger.Warn("document has no usable text", "text_length", length)
		return "", apperr.New(apperr.EmptyDocument, fmt.Errorf("extracted %d characters, need at least %d", length, MinTextLength))
	}

	t.logger.Info("text extracted", "text_length", length)
	return res.text, nil
}
