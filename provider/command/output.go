package command

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alienxp03/tradedebate/provider"
)

// Output formats understood by the command backend.
const (
	FormatText       = "text"
	FormatClaudeJSON = "claude-json"
	FormatGeminiJSON = "gemini-json"
)

// claudeOutput is the single object printed by `claude --print --output-format json`.
type claudeOutput struct {
	Type    string `json:"type"`
	Model   string `json:"model,omitempty"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content,omitempty"`
	Result     string `json:"result,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Usage      *struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	} `json:"usage,omitempty"`
}

// geminiOutput is printed by `gemini --output-format json`.
type geminiOutput struct {
	Response string `json:"response,omitempty"`
	Stats    *struct {
		Models map[string]*struct {
			Tokens *struct {
				Prompt     int `json:"prompt"`
				Candidates int `json:"candidates"`
				Total      int `json:"total"`
			} `json:"tokens,omitempty"`
		} `json:"models,omitempty"`
	} `json:"stats,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ValidFormat reports whether format names a known output format.
// The empty string means FormatText.
func ValidFormat(format string) bool {
	switch format {
	case "", FormatText, FormatClaudeJSON, FormatGeminiJSON:
		return true
	}
	return false
}

// parseOutput turns raw CLI stdout into a response. Output that does not
// decode as the expected JSON is kept as plain text.
func parseOutput(format, out string, elapsed time.Duration) (*provider.Response, error) {
	resp := &provider.Response{
		Content:  out,
		Raw:      out,
		Metadata: &provider.Metadata{Duration: elapsed},
	}

	switch format {
	case FormatClaudeJSON:
		var raw claudeOutput
		if err := json.Unmarshal([]byte(out), &raw); err != nil {
			return resp, nil
		}
		if raw.IsError {
			return nil, fmt.Errorf("claude reported an error: %s", raw.Result)
		}
		resp.Model = raw.Model
		if len(raw.Content) > 0 {
			var b strings.Builder
			for _, c := range raw.Content {
				if c.Type == "text" {
					b.WriteString(c.Text)
				}
			}
			resp.Content = b.String()
		} else {
			resp.Content = raw.Result
		}
		resp.Metadata.StopReason = raw.StopReason
		if raw.DurationMs > 0 {
			resp.Metadata.Duration = time.Duration(raw.DurationMs) * time.Millisecond
		}
		if u := raw.Usage; u != nil {
			in := u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
			resp.Metadata.InputTokens = in
			resp.Metadata.OutputTokens = u.OutputTokens
			resp.Metadata.TotalTokens = in + u.OutputTokens
		}

	case FormatGeminiJSON:
		var raw geminiOutput
		if err := json.Unmarshal([]byte(out), &raw); err != nil {
			return resp, nil
		}
		if raw.Error != nil {
			return nil, fmt.Errorf("gemini reported an error: %s", raw.Error.Message)
		}
		resp.Content = raw.Response
		if raw.Stats != nil {
			for model, stats := range raw.Stats.Models {
				resp.Model = model
				if stats != nil && stats.Tokens != nil {
					resp.Metadata.InputTokens += stats.Tokens.Prompt
					resp.Metadata.OutputTokens += stats.Tokens.Candidates
					resp.Metadata.TotalTokens += stats.Tokens.Total
				}
			}
		}
	}

	resp.Content = strings.TrimSpace(resp.Content)
	return resp, nil
}
