// Package anthropic provides a backend for the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/alienxp03/tradedebate/provider"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Provider implements provider.Provider with the Anthropic SDK.
type Provider struct {
	provider.BaseProvider
	apiKey string
	client sdk.Client
}

// New creates a new Anthropic provider with the given configuration.
// Retries are left to the debate retry policy.
func New(cfg provider.Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "anthropic"
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "Anthropic"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		BaseProvider: provider.NewBaseProvider(cfg),
		apiKey:       cfg.APIKey,
		client:       sdk.NewClient(opts...),
	}
}

// Available reports whether an API key is configured.
func (p *Provider) Available() bool {
	return p.apiKey != ""
}

// Execute sends one Messages API request.
func (p *Provider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	model := p.ResolveModel(req)

	prompt := req.Prompt
	if req.JSONMode {
		prompt += "\n\nRespond with a single JSON object and nothing else."
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
		MaxTokens:   int64(p.ResolveMaxTokens(req)),
		Temperature: sdk.Float(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	ctx, cancel := p.WithTimeout(ctx)
	defer cancel()

	slog.Debug("Sending messages request",
		"provider", p.Name(),
		"model", model,
		"prompt_length", len(prompt),
	)

	start := time.Now()
	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, &provider.APIError{
				Provider:   p.Name(),
				StatusCode: apiErr.StatusCode,
				Message:    "messages request rejected",
				Err:        err,
			}
		}
		return nil, &provider.APIError{Provider: p.Name(), Message: "messages request failed", Err: err}
	}

	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, fmt.Errorf("%s returned no text content", p.Name())
	}

	in := int(message.Usage.InputTokens)
	out := int(message.Usage.OutputTokens)
	return &provider.Response{
		Content:  strings.TrimSpace(content.String()),
		Model:    string(message.Model),
		Provider: p.Name(),
		Metadata: &provider.Metadata{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
			Duration:     time.Since(start),
			StopReason:   string(message.StopReason),
		},
	}, nil
}

// HealthCheck performs a quick health check using the provider execution path.
func (p *Provider) HealthCheck(ctx context.Context) provider.HealthStatus {
	return provider.HealthCheckWithExecute(ctx, p.DefaultModel(), p.Execute)
}
