// Package provider provides a reusable abstraction for LLM backends.
//
// This package wraps chat-completion APIs (OpenRouter and other
// OpenAI-compatible endpoints, Anthropic) and local AI command-line tools
// behind a unified interface, together with the retry policy every
// debate node shares.
package provider

import (
	"context"
	"time"
)

// Provider defines the interface for LLM backends.
type Provider interface {
	// Name returns the provider's unique identifier (e.g., "openrouter", "anthropic").
	Name() string

	// Available reports whether the backend can be used (credentials set, CLI installed).
	Available() bool

	// Execute sends a request to the backend and returns a structured response.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request represents a generation request to an LLM backend.
type Request struct {
	// SystemPrompt sets the role and rules for the model.
	SystemPrompt string

	// Prompt is the user turn.
	Prompt string

	// Model is the specific model to use.
	// If empty, the provider's default model will be used.
	Model string

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens bounds the response length. Zero means provider default.
	MaxTokens int

	// JSONMode asks the backend to return a single JSON object.
	JSONMode bool

	// WorkingDir is the directory to execute a CLI backend in.
	WorkingDir string

	// Args are additional command-line arguments for CLI backends.
	Args []string
}

// Response represents a backend's response with metadata.
type Response struct {
	// Content is the generated text.
	Content string `json:"content"`

	// Model is the model that was used for this response.
	Model string `json:"model,omitempty"`

	// Provider is the name of the provider that generated this response.
	Provider string `json:"provider,omitempty"`

	// Metadata contains usage statistics and additional information.
	Metadata *Metadata `json:"metadata,omitempty"`

	// Raw is the unprocessed response body (for debugging).
	Raw string `json:"-"`
}

// Metadata contains usage statistics and additional response information.
type Metadata struct {
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	TotalTokens  int           `json:"total_tokens,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	StopReason   string        `json:"stop_reason,omitempty"`
}

// Config holds configuration for creating a provider.
type Config struct {
	// Name is the unique identifier for this provider (e.g., "openrouter").
	Name string

	// DisplayName is a human-friendly name for this provider.
	// If empty, Name will be used.
	DisplayName string

	// BaseURL is the API endpoint for HTTP backends.
	BaseURL string

	// APIKey authenticates HTTP backends.
	APIKey string

	// Command is the CLI executable name for command backends.
	Command string

	// Args are default arguments to pass to the CLI command.
	Args []string

	// OutputFormat selects how CLI stdout is decoded ("text", "claude-json",
	// "gemini-json"). Empty means plain text.
	OutputFormat string

	// DefaultModel is the model to use when Request.Model is empty.
	DefaultModel string

	// Models is a list of known models for this provider.
	Models []string

	// MaxTokens is the default response bound.
	MaxTokens int

	// Timeout is the maximum duration for a single request.
	// Default: 5 minutes.
	Timeout time.Duration
}
