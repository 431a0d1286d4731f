package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uzair166/invoiceprocessor/internal/apperr"
)

// OpenAIConfig configures the OpenAI chat completions client
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // default https://api.openai.com/v1
	Model       string
	Temperature float32
}

// OpenAI implements the Extractor interface using OpenAI chat completions
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI Extractor instance
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		cfg: cfg,
		// Bounded only by the request context
		client: &http.Client{},
		logger: logger,
	}, nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string            `json:"model"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []openAIMessage   `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// Extract sends the instruction and document text as the only two turns
func (o *OpenAI) Extract(ctx context.Context, text string, mode Mode) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := o.logger.With("llm_req_id", rid, "provider", "openai", "model", o.cfg.Model, "mode", mode)
	log.Info("llm extract start", "text_length", len(text))

	body, err := json.Marshal(openAIRequest{
		Model:          o.cfg.Model,
		Temperature:    o.cfg.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []openAIMessage{
			{Role: "system", Content: BuildPrompt(mode)},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(o.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		log.Error("llm extract http error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", unavailable(ctx, fmt.Errorf("calling openai API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error("llm extract bad status", "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
		return "", apperr.New(apperr.ModelUnavailable, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(msg)))
	}

	var cc openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&cc); err != nil {
		return "", unavailable(ctx, fmt.Errorf("decoding response: %w", err))
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		log.Error("llm extract empty response", "choices", len(cc.Choices))
		return "", apperr.New(apperr.EmptyModelResponse, fmt.Errorf("no content in openai response"))
	}

	content := cc.Choices[0].Message.Content
	log.Info("llm extract ok", "response_length", len(content), "elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}

// Close is a no-op for the HTTP client
func (o *OpenAI) Close() error {
	return nil
}

// unavailable classifies a failed model call, reporting Timeout when the
// request deadline caused it
func unavailable(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.New(apperr.Timeout, err)
	}
	return apperr.New(apperr.ModelUnavailable, err)
}
