package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Environment holds the settings that may come from environment
// variables or a .env file. Empty values leave the config unchanged.
type Environment struct {
	ServerPort      int    `env:"SERVER_PORT"`
	DatabaseDriver  string `env:"DATABASE_DRIVER"`
	DatabaseDSN     string `env:"DATABASE_DSN"`
	ReportsDir      string `env:"REPORTS_DIR"`
	DefaultBuy      string `env:"DEFAULT_BUY"`
	DefaultSell     string `env:"DEFAULT_SELL"`
	DefaultJudge    string `env:"DEFAULT_JUDGE"`
	ProviderTimeout string `env:"PROVIDER_TIMEOUT"`

	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	APIBase          string `env:"OPENAI_API_BASE"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	Model            string `env:"DEBATE_MODEL"`
}

// ParseEnvironment reads Environment from vars instead of the process
// environment, so callers control precedence.
func ParseEnvironment(vars map[string]string) (Environment, error) {
	var e Environment
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return Environment{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return e, nil
}

// Apply copies every non-empty value onto cfg.
func (e Environment) Apply(cfg *Config) {
	if e.ServerPort != 0 {
		cfg.Server.Port = e.ServerPort
	}
	if e.DatabaseDriver != "" {
		cfg.Storage.Driver = e.DatabaseDriver
	}
	if e.DatabaseDSN != "" {
		cfg.Storage.DSN = e.DatabaseDSN
	}
	if e.ReportsDir != "" {
		cfg.Gather.ReportsDir = e.ReportsDir
	}
	if e.DefaultBuy != "" {
		cfg.Debate.Buy = e.DefaultBuy
	}
	if e.DefaultSell != "" {
		cfg.Debate.Sell = e.DefaultSell
	}
	if e.DefaultJudge != "" {
		cfg.Debate.Judge = e.DefaultJudge
	}

	for name, p := range cfg.Providers {
		switch p.Type {
		case TypeOpenRouter:
			if e.OpenRouterAPIKey != "" {
				p.APIKey = e.OpenRouterAPIKey
			}
			if e.APIBase != "" {
				p.BaseURL = e.APIBase
			}
			if e.Model != "" {
				p.DefaultModel = e.Model
			}
		case TypeAnthropic:
			if e.AnthropicAPIKey != "" {
				p.APIKey = e.AnthropicAPIKey
			}
		}
		if e.ProviderTimeout != "" {
			if d, ok := parseTimeout(e.ProviderTimeout); ok {
				p.Timeout = d
			}
		}
		cfg.Providers[name] = p
	}
}
