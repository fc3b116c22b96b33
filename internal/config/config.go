// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/debater"
	"github.com/alienxp03/tradedebate/internal/engine"
	"github.com/alienxp03/tradedebate/internal/gather"
	"github.com/alienxp03/tradedebate/internal/judge"
	"github.com/alienxp03/tradedebate/internal/storage"
	"github.com/alienxp03/tradedebate/internal/workflow"
	"github.com/alienxp03/tradedebate/provider"
	"github.com/alienxp03/tradedebate/provider/anthropic"
	"github.com/alienxp03/tradedebate/provider/command"
	"github.com/alienxp03/tradedebate/provider/mock"
	"github.com/alienxp03/tradedebate/provider/openrouter"
)

// Provider types understood by CreateProvider.
const (
	TypeOpenRouter = "openrouter"
	TypeAnthropic  = "anthropic"
	TypeCommand    = "command"
	TypeMock       = "mock"
)

// Config represents the application configuration.
type Config struct {
	Debate    DebateConfig              `yaml:"debate"`
	Retry     RetryConfig               `yaml:"retry"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Gather    GatherConfig              `yaml:"gather"`
	Storage   StorageConfig             `yaml:"storage"`
	Server    ServerConfig              `yaml:"server,omitempty"`
}

// DebateConfig holds debate defaults. Role backends are "provider/model"
// specs; the model part is optional.
type DebateConfig struct {
	MaxSteps         int     `yaml:"max_steps"`
	MaxTurns         int     `yaml:"max_turns"`
	WebMaxTurns      int     `yaml:"web_max_turns"`
	BuyTemperature   float64 `yaml:"buy_temperature"`
	SellTemperature  float64 `yaml:"sell_temperature"`
	JudgeTemperature float64 `yaml:"judge_temperature"`
	MaxTokens        int     `yaml:"max_tokens,omitempty"`
	Buy              string  `yaml:"buy"`
	Sell             string  `yaml:"sell"`
	Judge            string  `yaml:"judge"`
}

// RetryConfig bounds retries of rate-limited or malformed backend calls.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
}

// ProviderConfig holds provider-specific settings.
type ProviderConfig struct {
	Type         string        `yaml:"type"`
	BaseURL      string        `yaml:"base_url,omitempty"`
	APIKey       string        `yaml:"api_key,omitempty"`
	Command      string        `yaml:"command,omitempty"`
	Args         []string      `yaml:"args,omitempty"`
	OutputFormat string        `yaml:"output_format,omitempty"`
	DefaultModel string        `yaml:"default_model,omitempty"`
	Models       []string      `yaml:"models,omitempty"`
	MaxTokens    int           `yaml:"max_tokens,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	Enabled      bool          `yaml:"enabled"`
}

// GatherConfig configures data gathering.
type GatherConfig struct {
	ReportsDir  string           `yaml:"reports_dir"`
	Concurrency int              `yaml:"concurrency,omitempty"` // 0 runs every pipeline at once
	Pipelines   []PipelineConfig `yaml:"pipelines,omitempty"`
}

// PipelineConfig describes one external analyzer. "{ticker}" in args is
// replaced with the ticker being analyzed.
type PipelineConfig struct {
	Name    string        `yaml:"name"`
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// StorageConfig selects the database.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn,omitempty"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Debate: DebateConfig{
			MaxSteps:         workflow.DefaultMaxSteps,
			MaxTurns:         2,
			WebMaxTurns:      8,
			BuyTemperature:   debater.DefaultTemperature,
			SellTemperature:  debater.DefaultTemperature,
			JudgeTemperature: judge.DefaultTemperature,
			Buy:              TypeOpenRouter,
			Sell:             TypeOpenRouter,
			Judge:            TypeOpenRouter,
		},
		Retry: RetryConfig{
			MaxRetries:     provider.DefaultMaxRetries,
			InitialBackoff: provider.DefaultInitialBackoff,
			Multiplier:     provider.DefaultBackoffMultiplier,
		},
		Providers: map[string]ProviderConfig{
			"openrouter": {
				Type:         TypeOpenRouter,
				BaseURL:      openrouter.DefaultBaseURL,
				DefaultModel: openrouter.DefaultModel,
				Timeout:      2 * time.Minute,
				Enabled:      true,
			},
			"anthropic": {
				Type:         TypeAnthropic,
				DefaultModel: anthropic.DefaultModel,
				Models:       []string{"claude-sonnet-4-5", "claude-haiku-4-5", "claude-opus-4-1"},
				Timeout:      2 * time.Minute,
				Enabled:      true,
			},
			"claude": {
				Type:    TypeCommand,
				Command:      "claude",
				Args:         []string{"--print", "--output-format", "json"},
				OutputFormat: command.FormatClaudeJSON,
				Models:       []string{"opus", "sonnet", "haiku"},
				Timeout:      5 * time.Minute,
				Enabled:      true,
			},
			"gemini": {
				Type:    TypeCommand,
				Command:      "gemini",
				Args:         []string{"--output-format", "json"},
				OutputFormat: command.FormatGeminiJSON,
				Models:       []string{"pro", "flash"},
				Timeout:      5 * time.Minute,
				Enabled:      true,
			},
			"mock": {
				Type:    TypeMock,
				Timeout: 1 * time.Minute,
				Enabled: true,
			},
		},
		Gather: GatherConfig{
			ReportsDir: ".",
		},
		Storage: StorageConfig{
			Driver: storage.DriverSQLite,
		},
		Server: ServerConfig{
			Port: 8182,
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path, then applies the
// .env file in the working directory and the process environment.
// Process environment wins over .env, which wins over the file.
func LoadFrom(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	dotenv, err := LoadEnv(".env")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := ApplyEnvOverrides(cfg, MergeEnv(dotenv, os.Environ())); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ReadFile reads a YAML config over the defaults without applying any
// environment overrides. A missing file yields the defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, proceed with defaults
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Merge with defaults for any missing providers
	defaultCfg := Default()
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for name, defaultProvider := range defaultCfg.Providers {
		if _, exists := cfg.Providers[name]; !exists {
			cfg.Providers[name] = defaultProvider
		}
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks that every role points at an enabled provider and that
// HTTP providers used by a role have an API key.
func (c *Config) Validate() error {
	roles := []struct {
		name string
		spec string
	}{
		{"buy", c.Debate.Buy},
		{"sell", c.Debate.Sell},
		{"judge", c.Debate.Judge},
	}

	var errs []error
	for _, role := range roles {
		bs, err := core.ParseBackendSpec(role.spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("debate.%s: %w", role.name, err))
			continue
		}
		p, ok := c.Providers[bs.Provider]
		if !ok {
			errs = append(errs, fmt.Errorf("debate.%s: provider %s not found in config", role.name, bs.Provider))
			continue
		}
		if !p.Enabled {
			errs = append(errs, fmt.Errorf("debate.%s: provider %s is disabled", role.name, bs.Provider))
			continue
		}
		if p.Type == TypeOpenRouter && p.APIKey == "" {
			errs = append(errs, fmt.Errorf("debate.%s: missing environment variable: OPENROUTER_API_KEY", role.name))
		}
		if p.Type == TypeAnthropic && p.APIKey == "" {
			errs = append(errs, fmt.Errorf("debate.%s: missing environment variable: ANTHROPIC_API_KEY", role.name))
		}
	}
	for _, name := range c.ProviderNames() {
		if f := c.Providers[name].OutputFormat; !command.ValidFormat(f) {
			errs = append(errs, fmt.Errorf("providers.%s: unknown output_format %q", name, f))
		}
	}
	if c.Retry.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be positive"))
	}
	if c.Debate.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("debate.max_steps must be positive"))
	}

	return errors.Join(errs...)
}

// GetProvider returns the configuration for a provider.
func (c *Config) GetProvider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

// ToProviderConfig converts a ProviderConfig to provider.Config.
func (p ProviderConfig) ToProviderConfig(name string) provider.Config {
	return provider.Config{
		Name:         name,
		BaseURL:      p.BaseURL,
		APIKey:       p.APIKey,
		Command:      p.Command,
		Args:         p.Args,
		OutputFormat: p.OutputFormat,
		DefaultModel: p.DefaultModel,
		Models:       p.Models,
		MaxTokens:    p.MaxTokens,
		Timeout:      p.Timeout,
	}
}

// createProvider creates a provider instance based on the provider type.
func createProvider(name string, p ProviderConfig) (provider.Provider, error) {
	cfg := p.ToProviderConfig(name)
	switch p.Type {
	case TypeOpenRouter:
		return openrouter.New(cfg), nil
	case TypeAnthropic:
		return anthropic.New(cfg), nil
	case TypeCommand, "":
		if cfg.Command == "" {
			cfg.Command = name
		}
		return command.New(cfg), nil
	case TypeMock:
		return mock.New(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", p.Type)
	}
}

// CreateProvider creates a provider instance from this configuration.
func (c *Config) CreateProvider(name string) (provider.Provider, error) {
	provCfg, ok := c.GetProvider(name)
	if !ok {
		return nil, fmt.Errorf("provider %s not found in config", name)
	}
	if !provCfg.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}
	return createProvider(name, provCfg)
}

// CreateRegistry creates a provider registry from this configuration.
func (c *Config) CreateRegistry() (*provider.Registry, error) {
	registry := provider.NewRegistry()

	for name, provCfg := range c.Providers {
		if !provCfg.Enabled {
			continue
		}

		p, err := createProvider(name, provCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
		}

		registry.Register(p)
	}

	return registry, nil
}

// RetryPolicy returns the configured retry policy.
func (c *Config) RetryPolicy() provider.RetryPolicy {
	return provider.RetryPolicy{
		MaxRetries:     c.Retry.MaxRetries,
		InitialBackoff: c.Retry.InitialBackoff,
		Multiplier:     c.Retry.Multiplier,
	}
}

// EngineSettings converts the debate section into engine settings.
func (c *Config) EngineSettings() engine.Settings {
	return engine.Settings{
		MaxSteps:         c.Debate.MaxSteps,
		MaxTurns:         c.Debate.MaxTurns,
		BuyTemperature:   c.Debate.BuyTemperature,
		SellTemperature:  c.Debate.SellTemperature,
		JudgeTemperature: c.Debate.JudgeTemperature,
		MaxTokens:        c.Debate.MaxTokens,
		Retry:            c.RetryPolicy(),
		DefaultBuy:       c.Debate.Buy,
		DefaultSell:      c.Debate.Sell,
		DefaultJudge:     c.Debate.Judge,
	}
}

// CreateGatherer builds the data gatherer. Pipelines run in the reports
// directory so their output lands where the loader looks.
func (c *Config) CreateGatherer() *gather.Gatherer {
	pipelines := make([]gather.Pipeline, 0, len(c.Gather.Pipelines))
	for _, p := range c.Gather.Pipelines {
		pipelines = append(pipelines, &gather.CommandPipeline{
			PipelineName: p.Name,
			Command:      p.Command,
			Args:         p.Args,
			Dir:          c.Gather.ReportsDir,
			Timeout:      p.Timeout,
		})
	}
	g := gather.New(c.Gather.ReportsDir, pipelines...)
	g.SetConcurrency(c.Gather.Concurrency)
	return g
}

// OpenStorage opens the configured database, defaulting to the SQLite
// file under the user's home directory.
func (c *Config) OpenStorage() (storage.Storage, error) {
	dsn := c.Storage.DSN
	if dsn == "" && (c.Storage.Driver == "" || strings.HasPrefix(c.Storage.Driver, "sqlite")) {
		dsn = storage.DefaultDBPath()
	}
	return storage.Open(c.Storage.Driver, dsn)
}

// ProviderNames returns configured provider names in sorted order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tradedebate.yaml"
	}
	return filepath.Join(home, ".tradedebate", "config.yaml")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	example := `# tradedebate configuration file
# Place this file at ~/.tradedebate/config.yaml

debate:
  max_steps: 50             # Workflow step bound
  max_turns: 2              # Recorded on each run (CLI)
  web_max_turns: 8          # Recorded on runs started from the web API
  buy_temperature: 0.7
  sell_temperature: 0.7
  judge_temperature: 0.3
  buy: openrouter           # provider or provider/model
  sell: openrouter
  judge: openrouter

retry:
  max_retries: 5
  initial_backoff: 1s
  multiplier: 2

providers:
  openrouter:
    type: openrouter
    base_url: https://openrouter.ai/api/v1
    default_model: nvidia/nemotron-nano-9b-v2:free
    timeout: 2m
    enabled: true           # API key comes from OPENROUTER_API_KEY

  anthropic:
    type: anthropic
    default_model: claude-sonnet-4-5
    timeout: 2m
    enabled: true           # API key comes from ANTHROPIC_API_KEY

  claude:
    type: command
    command: claude
    args: ["--print", "--output-format", "json"]
    output_format: claude-json
    timeout: 5m
    enabled: true

gather:
  reports_dir: ./reports
  concurrency: 3            # pipelines running at once; 0 = all
  pipelines:
    - name: fundamental
      command: python
      args: ["-m", "analysts.fundamental", "{ticker}"]
      timeout: 10m

storage:
  driver: sqlite3           # or postgres
  dsn: ""                   # empty = ~/.tradedebate/tradedebate.db

server:
  port: 8182
`
	return example
}
