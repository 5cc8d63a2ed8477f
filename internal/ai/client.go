package ai

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

	"github.com/teemow/dayplan/internal/provider"
)

// AI provider names, in fallback preference order.
const (
	ProviderOpenAI = "openai"
	ProviderGrok   = "grok"
)

// TextGenerator is the single capability the rest of the system needs from
// an AI provider.
type TextGenerator interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// chatClient talks to an OpenAI-compatible chat completions endpoint. Both
// OpenAI and Grok expose this surface.
type chatClient struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAI creates a text generator backed by the OpenAI API.
func NewOpenAI(apiKey string) TextGenerator {
	return &chatClient{
		name:       ProviderOpenAI,
		baseURL:    "https://api.openai.com/v1",
		apiKey:     apiKey,
		model:      "gpt-4o-mini",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// NewGrok creates a text generator backed by the xAI API.
func NewGrok(apiKey string) TextGenerator {
	return &chatClient{
		name:       ProviderGrok,
		baseURL:    "https://api.x.ai/v1",
		apiKey:     apiKey,
		model:      "grok-beta",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *chatClient) Name() string { return c.name }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateText sends the prompt as a single-turn chat completion.
func (c *chatClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	op := c.name + " chat_completion"

	if c.apiKey == "" {
		return "", &provider.FatalAuthError{Op: op, Err: errors.New("no api key configured")}
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant in charge of my to-do list."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: encoding request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", provider.ClassifyTransportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", provider.ClassifyTransportError(op, err)
	}
	if err := provider.ClassifyHTTPStatus(op, resp.StatusCode, string(body)); err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &provider.DataError{Op: op, Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &provider.DataError{Op: op, Err: errors.New("response has no choices")}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
