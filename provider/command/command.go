// Package command provides a backend that shells out to a local AI CLI
// (claude, gemini, codex, ...) and treats its stdout as the reply.
package command

import (
	"context"
	"time"

	"github.com/alienxp03/tradedebate/provider"
)

// Provider runs a configured CLI once per request.
type Provider struct {
	provider.BaseProvider
	command string
	args    []string
	format  string
}

// New creates a command provider from configuration.
func New(cfg provider.Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = cfg.Command
	}
	return &Provider{
		BaseProvider: provider.NewBaseProvider(cfg),
		command:      cfg.Command,
		args:         cfg.Args,
		format:       cfg.OutputFormat,
	}
}

// Available checks if the CLI tool is installed and accessible.
func (p *Provider) Available() bool {
	return p.command != "" && Lookup(p.command) == nil
}

// Execute runs the CLI with the model flag and the combined prompt as the
// final argument. CLIs have no system role, so the system prompt leads the
// prompt text. Stdout is decoded according to the configured output format.
func (p *Provider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	model := p.ResolveModel(req)

	args := append([]string{}, p.args...)
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, req.Args...)
	args = append(args, combinePrompt(req.SystemPrompt, req.Prompt))

	start := time.Now()
	out, err := Run(ctx, Spec{
		Command: p.command,
		Args:    args,
		Dir:     req.WorkingDir,
		Timeout: p.Timeout(),
	})
	if err != nil {
		return nil, &provider.APIError{Provider: p.Name(), Message: "command backend failed", Err: err}
	}

	resp, err := parseOutput(p.format, out, time.Since(start))
	if err != nil {
		return nil, &provider.APIError{Provider: p.Name(), Message: "CLI reported an error", Err: err}
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

func combinePrompt(system, prompt string) string {
	if system == "" {
		return prompt
	}
	return system + "\n\n" + prompt
}
