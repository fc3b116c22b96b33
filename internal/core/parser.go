package core

import (
	"fmt"
	"strings"
)

// BackendSpec names the backend and model that play a role.
type BackendSpec struct {
	Provider string
	Model    string
}

func (b BackendSpec) String() string {
	if b.Model == "" {
		return b.Provider
	}
	return b.Provider + "/" + b.Model
}

// ParseBackendSpec parses a backend specification string.
// Format: provider[/model]. Only the first '/' separates provider from
// model, so model IDs may themselves contain slashes and colons.
//
// Examples:
//   - "openrouter" -> {Provider: "openrouter", Model: ""}
//   - "openrouter/nvidia/nemotron-nano-9b-v2:free" -> {Provider: "openrouter", Model: "nvidia/nemotron-nano-9b-v2:free"}
//   - "anthropic/claude-sonnet-4-5" -> {Provider: "anthropic", Model: "claude-sonnet-4-5"}
func ParseBackendSpec(spec string) (BackendSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return BackendSpec{}, fmt.Errorf("backend spec cannot be empty")
	}

	parts := strings.SplitN(spec, "/", 2)
	b := BackendSpec{Provider: strings.TrimSpace(parts[0])}
	if b.Provider == "" {
		return BackendSpec{}, fmt.Errorf("provider cannot be empty in spec: %s", spec)
	}
	if len(parts) == 2 {
		b.Model = strings.TrimSpace(parts[1])
		if b.Model == "" {
			return BackendSpec{}, fmt.Errorf("model cannot be empty after '/' in spec: %s", spec)
		}
	}
	return b, nil
}

// NormalizeTicker upper-cases a ticker symbol and rejects anything that
// cannot be part of a report filename.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", fmt.Errorf("ticker cannot be empty")
	}
	for _, r := range t {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' && r != '-' {
			return "", fmt.Errorf("invalid ticker %q", ticker)
		}
	}
	return t, nil
}

// TopicForTicker returns the standard debate question for a ticker.
func TopicForTicker(ticker string) string {
	return fmt.Sprintf("Should we buy shares of %s?", ticker)
}
