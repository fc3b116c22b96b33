package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Debate.MaxSteps != 50 {
		t.Errorf("expected max steps 50, got %d", cfg.Debate.MaxSteps)
	}
	if cfg.Debate.MaxTurns != 2 || cfg.Debate.WebMaxTurns != 8 {
		t.Errorf("unexpected max turns: %d/%d", cfg.Debate.MaxTurns, cfg.Debate.WebMaxTurns)
	}
	if cfg.Debate.BuyTemperature != 0.7 || cfg.Debate.JudgeTemperature != 0.3 {
		t.Errorf("unexpected temperatures: %+v", cfg.Debate)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.InitialBackoff != time.Second || cfg.Retry.Multiplier != 2 {
		t.Errorf("unexpected retry: %+v", cfg.Retry)
	}
	if _, ok := cfg.Providers["openrouter"]; !ok {
		t.Error("openrouter provider missing from defaults")
	}
}

func TestReadFileMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
debate:
  max_turns: 4
  judge: anthropic/claude-haiku-4-5
providers:
  local:
    type: openrouter
    base_url: http://localhost:8080/v1
    enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if cfg.Debate.MaxTurns != 4 {
		t.Errorf("expected max turns 4, got %d", cfg.Debate.MaxTurns)
	}
	if cfg.Debate.MaxSteps != 50 {
		t.Errorf("unset field should keep default, got %d", cfg.Debate.MaxSteps)
	}
	if cfg.Debate.Judge != "anthropic/claude-haiku-4-5" {
		t.Errorf("unexpected judge: %s", cfg.Debate.Judge)
	}
	if cfg.Providers["local"].BaseURL != "http://localhost:8080/v1" {
		t.Error("custom provider not loaded")
	}
	if _, ok := cfg.Providers["mock"]; !ok {
		t.Error("default providers not merged")
	}
}

func TestReadFileMissing(t *testing.T) {
	cfg, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should yield defaults: %v", err)
	}
	if cfg.Server.Port != 8182 {
		t.Errorf("unexpected port: %d", cfg.Server.Port)
	}
}

func TestReadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("debate: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Server.Port = 9999

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("port not saved: %d", loaded.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	t.Run("MissingOpenRouterKey", func(t *testing.T) {
		err := Default().Validate()
		if err == nil || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
			t.Errorf("expected missing key error, got %v", err)
		}
	})

	t.Run("WithKey", func(t *testing.T) {
		cfg := Default()
		or := cfg.Providers["openrouter"]
		or.APIKey = "key"
		cfg.Providers["openrouter"] = or
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("MockNeedsNoKey", func(t *testing.T) {
		cfg := Default()
		cfg.Debate.Buy, cfg.Debate.Sell, cfg.Debate.Judge = "mock", "mock", "mock/mock-v2"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("DisabledProvider", func(t *testing.T) {
		cfg := Default()
		cfg.Debate.Buy, cfg.Debate.Sell, cfg.Debate.Judge = "mock", "mock", "mock"
		m := cfg.Providers["mock"]
		m.Enabled = false
		cfg.Providers["mock"] = m
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for disabled provider")
		}
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		cfg := Default()
		cfg.Debate.Buy, cfg.Debate.Sell, cfg.Debate.Judge = "mock", "nope", "mock"
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "debate.sell") {
			t.Errorf("expected sell error, got %v", err)
		}
	})

	t.Run("UnknownOutputFormat", func(t *testing.T) {
		cfg := Default()
		cfg.Debate.Buy, cfg.Debate.Sell, cfg.Debate.Judge = "mock", "mock", "mock"
		g := cfg.Providers["gemini"]
		g.OutputFormat = "xml"
		cfg.Providers["gemini"] = g
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "providers.gemini") {
			t.Errorf("expected output format error, got %v", err)
		}
	})
}

func TestCreateRegistry(t *testing.T) {
	cfg := Default()
	c := cfg.Providers["claude"]
	c.Enabled = false
	cfg.Providers["claude"] = c

	registry, err := cfg.CreateRegistry()
	if err != nil {
		t.Fatalf("CreateRegistry failed: %v", err)
	}
	if registry.Has("claude") {
		t.Error("disabled provider should not be registered")
	}
	for _, name := range []string{"openrouter", "anthropic", "gemini", "mock"} {
		if !registry.Has(name) {
			t.Errorf("expected %s to be registered", name)
		}
	}
}

func TestCreateProviderUnknownType(t *testing.T) {
	cfg := Default()
	cfg.Providers["weird"] = ProviderConfig{Type: "telepathy", Enabled: true}
	if _, err := cfg.CreateProvider("weird"); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := cfg.CreateRegistry(); err == nil {
		t.Error("expected registry error for unknown type")
	}
}

func TestEngineSettings(t *testing.T) {
	cfg := Default()
	cfg.Debate.Sell = "anthropic"
	cfg.Retry.InitialBackoff = 10 * time.Millisecond

	s := cfg.EngineSettings()
	if s.DefaultSell != "anthropic" || s.DefaultBuy != "openrouter" {
		t.Errorf("unexpected backends: %+v", s)
	}
	if s.Retry.InitialBackoff != 10*time.Millisecond || s.Retry.MaxRetries != 5 {
		t.Errorf("unexpected retry: %+v", s.Retry)
	}
	if s.MaxSteps != 50 || s.JudgeTemperature != 0.3 {
		t.Errorf("unexpected settings: %+v", s)
	}
}

func TestCreateGatherer(t *testing.T) {
	cfg := Default()
	cfg.Gather.ReportsDir = t.TempDir()
	cfg.Gather.Concurrency = 2
	cfg.Gather.Pipelines = []PipelineConfig{{Name: "news", Command: "true"}}

	g := cfg.CreateGatherer()
	if g.ReportsDir() != cfg.Gather.ReportsDir {
		t.Errorf("unexpected reports dir: %s", g.ReportsDir())
	}
	if g.Concurrency() != 2 {
		t.Errorf("unexpected concurrency: %d", g.Concurrency())
	}
}

func TestGenerateExampleParses(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(GenerateExample()), &cfg); err != nil {
		t.Fatalf("example does not parse: %v", err)
	}
	if cfg.Retry.InitialBackoff != time.Second {
		t.Errorf("unexpected backoff: %v", cfg.Retry.InitialBackoff)
	}
	if len(cfg.Gather.Pipelines) != 1 {
		t.Errorf("expected one pipeline, got %d", len(cfg.Gather.Pipelines))
	}
	if cfg.Gather.Concurrency != 3 {
		t.Errorf("unexpected gather concurrency: %d", cfg.Gather.Concurrency)
	}
}
