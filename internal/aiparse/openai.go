package aiparse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4"
	defaultTimeout = 30 * time.Second

	maxResponseBody = 1 << 20
)

const systemPrompt = `You are an order parsing assistant. Extract order information from the user's message and respond with JSON only, no prose and no markdown. The JSON object must have this exact shape:
{"recipient": "<recipient name or unknown>", "items": [{"product_name": "<name>", "quantity": <number>, "unit": "<unit or empty string>"}]}
Use "unknown" as the recipient when the message does not name one. Quantities must be positive numbers.`

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIParser calls the OpenAI chat completions API and decodes the model's
// JSON answer into a Draft.
type OpenAIParser struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAIParser builds a parser with traced outbound HTTP.
func NewOpenAIParser(cfg OpenAIConfig) (*OpenAIParser, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("aiparse: api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAIParser{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Parse sends the message to the model and decodes the structured draft.
func (p *OpenAIParser) Parse(ctx context.Context, text string) (Draft, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Draft{}, errors.New("aiparse: empty message")
	}

	payload, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: trimmed},
		},
		Temperature: 0,
	})
	if err != nil {
		return Draft{}, fmt.Errorf("aiparse: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Draft{}, fmt.Errorf("aiparse: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return Draft{}, fmt.Errorf("aiparse: call provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Draft{}, fmt.Errorf("aiparse: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Draft{}, fmt.Errorf("aiparse: provider returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Draft{}, fmt.Errorf("aiparse: decode response: %w", err)
	}
	if parsed.Error != nil {
		return Draft{}, fmt.Errorf("aiparse: provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Draft{}, errors.New("aiparse: provider returned no choices")
	}

	content := stripMarkdownFences(parsed.Choices[0].Message.Content)
	var draft Draft
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&draft); err != nil {
		return Draft{}, fmt.Errorf("aiparse: model returned unparsable content: %w", err)
	}
	if draft.Recipient == "" {
		draft.Recipient = "unknown"
	}
	return draft, nil
}

// stripMarkdownFences removes a ```json ... ``` wrapper models sometimes add
// despite the JSON-only instruction.
func stripMarkdownFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
