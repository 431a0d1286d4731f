package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/uzair166/invoiceprocessor/internal/apperr"
)

// Gemini implements the Extractor interface using Google Gemini
type Gemini struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(apiKey string, modelName string, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// Extract sends the instruction as the system turn and the document text as
// the user turn, asking for an application/json response
func (g *Gemini) Extract(ctx context.Context, text string, mode Mode) (string, error) {
	start := time.Now()
	log := g.logger.With("provider", "gemini", "model", g.modelName, "mode", mode)

	// The instruction differs per mode, so each call gets its own model handle
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(BuildPrompt(mode))}}

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", apperr.New(apperr.EmptyModelResponse, fmt.Errorf("gemini blocked response: %w", err))
		}
		log.Error("llm extract failed", "error", err)
		return "", unavailable(ctx, fmt.Errorf("generating content: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", apperr.New(apperr.EmptyModelResponse, fmt.Errorf("no response from gemini"))
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}
	if strings.TrimSpace(responseText.String()) == "" {
		return "", apperr.New(apperr.EmptyModelResponse, fmt.Errorf("gemini response has no text"))
	}

	log.Info("llm extract ok", "response_length", responseText.Len(), "elapsed_ms", time.Since(start).Milliseconds())
	return responseText.String(), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
