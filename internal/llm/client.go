// Package llm talks to the reasoning backend: a local or remote
// large-language-model endpoint that turns an analysis prompt into a
// structured recommendation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider represents the reasoning backend type.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// ClientConfig holds reasoning-backend configuration.
type ClientConfig struct {
	Provider    Provider      `json:"provider"`
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	BaseURL     string        `json:"base_url"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Provider:    ProviderClaude,
		Model:       "claude-sonnet-4-20250514",
		MaxTokens:   1024,
		Temperature: 0.3,
		Timeout:     60 * time.Second,
	}
}

// Message represents one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the closed interface the engine depends on; the HTTP client
// below is the production implementation, tests substitute their own.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteConversation(ctx context.Context, systemPrompt string, history []Message) (string, error)
	IsConfigured() bool
}

// Client is the reasoning-backend API client.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a client. A nil config picks the defaults.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type claudeRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// Complete sends a single-turn completion request.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.CompleteConversation(ctx, systemPrompt, []Message{{Role: "user", Content: userPrompt}})
}

// CompleteConversation sends a completion request with prior turns attached.
func (c *Client) CompleteConversation(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	switch c.config.Provider {
	case ProviderClaude:
		return c.completeClaude(ctx, systemPrompt, history)
	case ProviderOpenAI:
		return c.completeOpenAI(ctx, systemPrompt, history)
	case ProviderOllama:
		return c.completeOllama(ctx, systemPrompt, history)
	default:
		return "", fmt.Errorf("unsupported provider: %s", c.config.Provider)
	}
}

func (c *Client) completeClaude(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	req := claudeRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		System:      systemPrompt,
		Messages:    history,
	}

	baseURL := c.config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	respBody, err := c.post(ctx, baseURL+"/v1/messages", req, map[string]string{
		"x-api-key":         c.config.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var resp claudeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}

	return resp.Content[0].Text, nil
}

func (c *Client) completeOpenAI(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	messages := append([]Message{{Role: "system", Content: systemPrompt}}, history...)
	req := openAIRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	baseURL := c.config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	respBody, err := c.post(ctx, baseURL+"/v1/chat/completions", req, map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
	})
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) completeOllama(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	messages := append([]Message{{Role: "system", Content: systemPrompt}}, history...)
	req := ollamaRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   false,
		Options:  map[string]any{"temperature": c.config.Temperature},
	}

	baseURL := c.config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	respBody, err := c.post(ctx, baseURL+"/api/chat", req, nil)
	if err != nil {
		return "", err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("API error: %s", resp.Error)
	}
	if resp.Message.Content == "" {
		return "", fmt.Errorf("empty response from ollama")
	}

	return resp.Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return respBody, nil
}

// GetProvider returns the configured provider.
func (c *Client) GetProvider() Provider {
	return c.config.Provider
}

// IsConfigured checks whether a credential is available. Ollama runs locally
// and needs no key.
func (c *Client) IsConfigured() bool {
	if c.config.Provider == ProviderOllama {
		return c.config.Model != ""
	}
	return c.config.APIKey != ""
}
