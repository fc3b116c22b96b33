// Package debater implements the BUY and SELL argument generators.
package debater

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/prompt"
	"github.com/alienxp03/tradedebate/provider"
)

// DefaultTemperature is the sampling temperature for both debaters.
const DefaultTemperature = 0.7

// Debater produces one argument per visit for its own side.
type Debater struct {
	speaker     core.Speaker
	node        core.NodeName
	system      string
	turns       map[core.Stage]*prompt.Template
	backend     provider.Provider
	model       string
	temperature float64
	maxTokens   int
	retry       provider.RetryPolicy
}

// Option configures a Debater.
type Option func(*Debater)

// WithTurn registers a template for an additional stage, or replaces the
// template of a built-in one.
func WithTurn(stage core.Stage, tmpl *prompt.Template) Option {
	return func(d *Debater) {
		d.turns[stage] = tmpl
	}
}

// WithModel selects the backend model.
func WithModel(model string) Option {
	return func(d *Debater) {
		d.model = model
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(d *Debater) {
		d.temperature = t
	}
}

// WithMaxTokens bounds each argument.
func WithMaxTokens(n int) Option {
	return func(d *Debater) {
		d.maxTokens = n
	}
}

// WithRetryPolicy overrides the backend retry policy.
func WithRetryPolicy(p provider.RetryPolicy) Option {
	return func(d *Debater) {
		d.retry = p
	}
}

// WithSystemPrompt replaces the role's system prompt.
func WithSystemPrompt(s string) Option {
	return func(d *Debater) {
		d.system = s
	}
}

// NewBuy creates the BUY generator. It handles the opening and counter stages.
func NewBuy(backend provider.Provider, opts ...Option) *Debater {
	d := newDebater(core.SpeakerBuy, core.NodeBuy, backend, map[core.Stage]*prompt.Template{
		core.StageOpening: prompt.Opening,
		core.StageCounter: prompt.Counter,
	})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewSell creates the SELL generator. It handles the rebuttal stage.
func NewSell(backend provider.Provider, opts ...Option) *Debater {
	d := newDebater(core.SpeakerSell, core.NodeSell, backend, map[core.Stage]*prompt.Template{
		core.StageRebuttal: prompt.Rebuttal,
	})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func newDebater(speaker core.Speaker, node core.NodeName, backend provider.Provider, turns map[core.Stage]*prompt.Template) *Debater {
	return &Debater{
		speaker:     speaker,
		node:        node,
		system:      prompt.SystemPrompt(speaker),
		turns:       turns,
		backend:     backend,
		temperature: DefaultTemperature,
		retry:       provider.DefaultRetryPolicy(),
	}
}

// Name returns the workflow node this debater occupies.
func (d *Debater) Name() core.NodeName {
	return d.node
}

// Speaker returns the side this debater argues.
func (d *Debater) Speaker() core.Speaker {
	return d.speaker
}

// Stages lists the stages this debater can act on, sorted.
func (d *Debater) Stages() []core.Stage {
	stages := make([]core.Stage, 0, len(d.turns))
	for s := range d.turns {
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	return stages
}

// Handles reports whether the debater has a template for turn.
func (d *Debater) Handles(turn core.Turn) bool {
	if turn.Speaker != d.speaker {
		return false
	}
	_, ok := d.turns[turn.Stage]
	return ok
}

// Invoke generates the argument for the current turn and returns a patch
// that appends it to the transcript.
func (d *Debater) Invoke(ctx context.Context, state *core.State) (core.Patch, error) {
	turn := state.Turn()
	tmpl, ok := d.turns[turn.Stage]
	if turn.Speaker != d.speaker || !ok {
		return core.Patch{}, &core.InvalidTurnError{Node: d.node, Stage: turn.Stage, Speaker: turn.Speaker}
	}

	opponent := d.speaker.Opponent()
	text, err := tmpl.Render(prompt.Data{
		Topic:            state.Topic,
		Side:             strings.ToUpper(string(d.speaker)),
		OpponentSide:     strings.ToUpper(string(opponent)),
		OpponentArgument: core.LastMessageBy(opponent, state.Messages),
		DebateHistory:    core.FormatHistory(state.Messages),
		DataContext:      core.FormatDataContext(state),
	})
	if err != nil {
		return core.Patch{}, fmt.Errorf("failed to build %s prompt: %w", d.speaker, err)
	}

	slog.Debug("Generating argument",
		"node", d.node,
		"stage", turn.Stage,
		"provider", d.backend.Name(),
		"model", d.model,
	)

	resp, err := provider.ExecuteWithRetry(ctx, d.backend, d.retry, &provider.Request{
		SystemPrompt: d.system,
		Prompt:       text,
		Model:        d.model,
		Temperature:  d.temperature,
		MaxTokens:    d.maxTokens,
	}, requireContent)
	if err != nil {
		return core.Patch{}, fmt.Errorf("failed to generate %s %s argument: %w", d.speaker, turn.Stage, err)
	}

	msg := core.Message{Speaker: d.speaker, Content: resp.Content, Stage: turn.Stage}
	return core.Patch{Messages: core.AppendMessage(state.Messages, msg)}, nil
}

func requireContent(r *provider.Response) error {
	if strings.TrimSpace(r.Content) == "" {
		return &core.MalformedOutputError{Reason: "empty argument"}
	}
	return nil
}
