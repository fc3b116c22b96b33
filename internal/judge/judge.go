// Package judge implements the terminal evaluator of a debate.
package judge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/prompt"
	"github.com/alienxp03/tradedebate/provider"
)

// DefaultTemperature keeps the verdict close to deterministic.
const DefaultTemperature = 0.3

// Judge reads the whole debate and emits a structured verdict.
type Judge struct {
	backend     provider.Provider
	system      string
	tmpl        *prompt.Template
	model       string
	temperature float64
	maxTokens   int
	retry       provider.RetryPolicy
}

// Option configures a Judge.
type Option func(*Judge)

// WithModel selects the backend model.
func WithModel(model string) Option {
	return func(j *Judge) { j.model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(j *Judge) { j.temperature = t }
}

// WithMaxTokens bounds the verdict length.
func WithMaxTokens(n int) Option {
	return func(j *Judge) { j.maxTokens = n }
}

// WithRetryPolicy overrides the backend retry policy.
func WithRetryPolicy(p provider.RetryPolicy) Option {
	return func(j *Judge) { j.retry = p }
}

// WithTemplate replaces the human prompt.
func WithTemplate(t *prompt.Template) Option {
	return func(j *Judge) { j.tmpl = t }
}

// New creates a judge backed by backend.
func New(backend provider.Provider, opts ...Option) *Judge {
	j := &Judge{
		backend:     backend,
		system:      prompt.SystemPrompt(core.SpeakerJudge),
		tmpl:        prompt.Judge,
		temperature: DefaultTemperature,
		retry:       provider.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name returns the workflow node name.
func (j *Judge) Name() core.NodeName {
	return core.NodeJudge
}

// Invoke evaluates the transcript and returns a patch carrying the verdict
// and its transcript entry. Output that fails schema validation is
// requested again under the retry policy.
func (j *Judge) Invoke(ctx context.Context, state *core.State) (core.Patch, error) {
	text, err := j.tmpl.Render(prompt.Data{
		Topic:         state.Topic,
		DebateHistory: core.FormatHistory(state.Messages),
		DataContext:   core.FormatDataContext(state),
	})
	if err != nil {
		return core.Patch{}, fmt.Errorf("failed to build judge prompt: %w", err)
	}

	slog.Debug("Requesting verdict",
		"provider", j.backend.Name(),
		"model", j.model,
		"messages", len(state.Messages),
	)

	var verdict *core.Verdict
	_, err = provider.ExecuteWithRetry(ctx, j.backend, j.retry, &provider.Request{
		SystemPrompt: j.system,
		Prompt:       text,
		Model:        j.model,
		Temperature:  j.temperature,
		MaxTokens:    j.maxTokens,
		JSONMode:     true,
	}, func(r *provider.Response) error {
		v, err := ParseVerdict(r.Content)
		if err != nil {
			slog.Warn("Judge returned malformed verdict", "provider", j.backend.Name(), "error", err)
			return err
		}
		verdict = v
		return nil
	})
	if err != nil {
		return core.Patch{}, fmt.Errorf("failed to obtain verdict: %w", err)
	}

	msg := core.Message{
		Speaker: core.SpeakerJudge,
		Content: core.FormatVerdict(*verdict),
		Stage:   core.StageVerdict,
	}
	return core.Patch{
		Messages: core.AppendMessage(state.Messages, msg),
		Verdict:  verdict,
	}, nil
}
