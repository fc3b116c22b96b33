// Package openrouter provides a backend for OpenRouter and any other
// OpenAI-compatible chat completion endpoint.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alienxp03/tradedebate/provider"
)

const (
	// DefaultBaseURL is the OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is a free model used when none is configured.
	DefaultModel = "nvidia/nemotron-nano-9b-v2:free"

	maxErrorBody = 2048
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// Provider implements provider.Provider over HTTP.
type Provider struct {
	provider.BaseProvider
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a new OpenRouter provider with the given configuration.
func New(cfg provider.Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "openrouter"
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "OpenRouter"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Provider{
		BaseProvider: provider.NewBaseProvider(cfg),
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		client:       &http.Client{},
	}
}

// Available reports whether an API key is configured.
func (p *Provider) Available() bool {
	return p.apiKey != ""
}

// Execute sends one chat completion request.
func (p *Provider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	model := p.ResolveModel(req)

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   p.ResolveMaxTokens(req),
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := p.WithTimeout(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	slog.Debug("Sending chat completion",
		"provider", p.Name(),
		"model", model,
		"prompt_length", len(req.Prompt),
		"json_mode", req.JSONMode,
	)

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &provider.APIError{Provider: p.Name(), Message: fmt.Sprintf("request timed out after %v", p.Timeout()), Err: err}
		}
		return nil, &provider.APIError{Provider: p.Name(), Message: "request failed", Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "..."
		}
		return nil, &provider.APIError{
			Provider:   p.Name(),
			StatusCode: httpResp.StatusCode,
			Message:    msg,
		}
	}

	resp, err := ParseResponse(data, time.Since(start))
	if err != nil {
		return nil, &provider.APIError{Provider: p.Name(), StatusCode: httpResp.StatusCode, Message: "invalid response", Err: err}
	}
	resp.Provider = p.Name()
	if resp.Model == "" {
		resp.Model = model
	}
	return resp, nil
}

// HealthCheck performs a quick health check using the provider execution path.
func (p *Provider) HealthCheck(ctx context.Context) provider.HealthStatus {
	return provider.HealthCheckWithExecute(ctx, p.DefaultModel(), p.Execute)
}
