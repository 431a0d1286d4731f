package scanning

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/uzair166/invoiceprocessor/internal/apperr"
)

var (
	singleShape = jsonschema.MustCompileString("single.json", `{"type": "object"}`)
	multiShape  = jsonschema.MustCompileString("multi.json", `{
		"type": "object",
		"required": ["`+InvoicesKey+`"],
		"properties": {
			"`+InvoicesKey+`": {"type": "array", "items": {"type": "object"}}
		}
	}`)
)

// stripFences removes a surrounding markdown code block if present
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Parse decodes a raw model response into candidates, in the order the
// model emitted them. Malformed JSON or a response of the wrong shape for
// mode fails with MalformedModelResponse; nothing is repaired.
func Parse(raw string, mode Mode, logger *slog.Logger) ([]Candidate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	text := stripFences(raw)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		logger.Error("model response is not valid JSON", "error", err, "response_length", len(raw))
		return nil, apperr.New(apperr.MalformedModelResponse, fmt.Errorf("unmarshaling json: %w", err))
	}

	shape := singleShape
	if mode == ModeMulti {
		shape = multiShape
	}
	if err := shape.Validate(doc); err != nil {
		logger.Error("model response has unexpected shape", "mode", mode, "error", err)
		return nil, apperr.New(apperr.MalformedModelResponse, fmt.Errorf("response does not match %s shape: %w", mode, err))
	}

	if mode == ModeMulti {
		return parseMulti(text, logger)
	}

	var single SingleCandidate
	if err := decodeLenient([]byte(text), &single, logger); err != nil {
		return nil, err
	}
	return []Candidate{{Mode: ModeSingle, Single: &single}}, nil
}

func parseMulti(text string, logger *slog.Logger) ([]Candidate, error) {
	var envelope struct {
		Invoices []json.RawMessage `json:"invoices"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, apperr.New(apperr.MalformedModelResponse, fmt.Errorf("unmarshaling invoices: %w", err))
	}

	candidates := make([]Candidate, 0, len(envelope.Invoices))
	for i, raw := range envelope.Invoices {
		var multi MultiCandidate
		if err := decodeLenient(raw, &multi, logger.With("index", i)); err != nil {
			return nil, err
		}
		candidates = append(candidates, Candidate{Mode: ModeMulti, Multi: &multi})
	}
	logger.Info("parsed multi-invoice response", "invoices", len(candidates))
	return candidates, nil
}

// decodeLenient decodes data into v. A value of the wrong JSON type for a
// nested object is left empty; the normalizer turns it into nulls.
func decodeLenient(data []byte, v any, logger *slog.Logger) error {
	err := json.Unmarshal(data, v)
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &typeErr):
		logger.Warn("model response field has unexpected type", "field", typeErr.Field, "value", typeErr.Value)
		return nil
	default:
		return apperr.New(apperr.MalformedModelResponse, fmt.Errorf("decoding candidate: %w", err))
	}
}
