package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alienxp03/tradedebate/provider"
)

// ChatResponse is the OpenAI-compatible chat completion body.
type ChatResponse struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code,omitempty"`
	} `json:"error,omitempty"`
}

// ParseResponse converts a chat completion body into a provider response.
func ParseResponse(data []byte, duration time.Duration) (*provider.Response, error) {
	var chat ChatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat completion: %w", err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("backend returned error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("chat completion has no choices")
	}

	choice := chat.Choices[0]
	resp := &provider.Response{
		Content: strings.TrimSpace(choice.Message.Content),
		Model:   chat.Model,
		Raw:     string(data),
		Metadata: &provider.Metadata{
			Duration:   duration,
			StopReason: choice.FinishReason,
		},
	}
	if chat.Usage != nil {
		resp.Metadata.InputTokens = chat.Usage.PromptTokens
		resp.Metadata.OutputTokens = chat.Usage.CompletionTokens
		resp.Metadata.TotalTokens = chat.Usage.TotalTokens
		if resp.Metadata.TotalTokens == 0 {
			resp.Metadata.TotalTokens = chat.Usage.PromptTokens + chat.Usage.CompletionTokens
		}
	}
	return resp, nil
}
