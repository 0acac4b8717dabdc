package nl2sql

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

// GeminiCompleter calls the Generative Language generateContent endpoint.
type GeminiCompleter struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func NewGeminiCompleter(cfg Config) (*GeminiCompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperr.New(apperr.ConfigurationError, "gemini api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiCompleter{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeoutOr(cfg.Timeout, 10*time.Second)},
	}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt string) (Completion, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature": c.temperature,
		},
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	headers := map[string]string{"x-goog-api-key": c.apiKey}
	if err := postJSON(ctx, c.client, endpoint, headers, payload, &parsed); err != nil {
		return Completion{}, err
	}
	if parsed.PromptFeedback.BlockReason != "" {
		return Completion{}, apperr.New(apperr.ServiceUnavailable, "prompt blocked by completion service: "+parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return Completion{}, apperr.New(apperr.ServiceUnavailable, "empty generateContent candidates")
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return Completion{}, apperr.New(apperr.ServiceUnavailable, "completion service returned no text")
	}
	return Completion{
		Text:     text.String(),
		Provider: ProviderGemini,
		Model:    c.model,
	}, nil
}
