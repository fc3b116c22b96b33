package provider

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the default timeout for a single backend request.
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxTokens bounds responses when neither request nor config set it.
	DefaultMaxTokens = 4096
)

// BaseProvider provides common functionality for backends.
// Specific providers embed this to inherit naming, model selection and
// timeout handling.
type BaseProvider struct {
	name         string
	displayName  string
	defaultModel string
	models       []string
	maxTokens    int
	timeout      time.Duration
}

// NewBaseProvider creates a new base provider from configuration.
func NewBaseProvider(cfg Config) BaseProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	displayName := cfg.DisplayName
	if displayName == "" {
		displayName = cfg.Name
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return BaseProvider{
		name:         cfg.Name,
		displayName:  displayName,
		defaultModel: cfg.DefaultModel,
		models:       cfg.Models,
		maxTokens:    maxTokens,
		timeout:      timeout,
	}
}

// Name returns the provider identifier.
func (p *BaseProvider) Name() string {
	return p.name
}

// DisplayName returns the human-friendly name.
func (p *BaseProvider) DisplayName() string {
	return p.displayName
}

// Models returns known models.
func (p *BaseProvider) Models() []string {
	return p.models
}

// DefaultModel returns the default model.
func (p *BaseProvider) DefaultModel() string {
	return p.defaultModel
}

// Timeout returns the configured timeout.
func (p *BaseProvider) Timeout() time.Duration {
	return p.timeout
}

// ResolveModel picks the request model, falling back to the default.
func (p *BaseProvider) ResolveModel(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

// ResolveMaxTokens picks the request bound, falling back to the default.
func (p *BaseProvider) ResolveMaxTokens(req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return p.maxTokens
}

// WithTimeout applies the per-request timeout to ctx.
func (p *BaseProvider) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}
