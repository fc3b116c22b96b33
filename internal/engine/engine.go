// Package engine manages the lifecycle of debate runs: creation,
// execution through the workflow, persistence and lookup.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/debater"
	"github.com/alienxp03/tradedebate/internal/judge"
	"github.com/alienxp03/tradedebate/internal/storage"
	"github.com/alienxp03/tradedebate/internal/workflow"
	"github.com/alienxp03/tradedebate/provider"
)

// ErrNoMessages is returned when a run finished without a transcript.
var ErrNoMessages = errors.New("no messages in workflow result")

// ErrNoVerdict is returned when the transcript does not end in a verdict.
var ErrNoVerdict = errors.New("workflow finished without a verdict")

// Settings controls how runs are built.
type Settings struct {
	MaxSteps         int
	MaxTurns         int
	BuyTemperature   float64
	SellTemperature  float64
	JudgeTemperature float64
	MaxTokens        int
	Retry            provider.RetryPolicy

	// Default backend specs ("provider/model") per role.
	DefaultBuy   string
	DefaultSell  string
	DefaultJudge string
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		MaxSteps:         workflow.DefaultMaxSteps,
		MaxTurns:         2,
		BuyTemperature:   debater.DefaultTemperature,
		SellTemperature:  debater.DefaultTemperature,
		JudgeTemperature: judge.DefaultTemperature,
		Retry:            provider.DefaultRetryPolicy(),
		DefaultBuy:       "openrouter",
		DefaultSell:      "openrouter",
		DefaultJudge:     "openrouter",
	}
}

// Engine orchestrates debate runs.
type Engine struct {
	storage  storage.Storage
	registry *provider.Registry
	settings Settings

	mu      sync.Mutex
	running map[string]bool
}

// New creates a new debate engine.
func New(store storage.Storage, registry *provider.Registry, settings Settings) *Engine {
	return &Engine{
		storage:  store,
		registry: registry,
		settings: settings,
		running:  make(map[string]bool),
	}
}

// Registry returns the provider registry the engine resolves backends from.
func (e *Engine) Registry() *provider.Registry {
	return e.registry
}

// Settings returns the engine settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// CreateRun validates the configuration and stores a pending run.
func (e *Engine) CreateRun(ctx context.Context, config core.NewRunConfig) (*core.Run, error) {
	slog.Debug("Creating new run", "topic", config.Topic, "ticker", config.Ticker)

	topic := strings.TrimSpace(config.Topic)
	ticker := config.Ticker
	if ticker != "" {
		t, err := core.NormalizeTicker(ticker)
		if err != nil {
			return nil, err
		}
		ticker = t
		if topic == "" {
			topic = core.TopicForTicker(ticker)
		}
	}
	if topic == "" {
		return nil, fmt.Errorf("debate topic is required")
	}

	backends := core.Backends{
		Buy:   firstNonEmpty(config.Buy, e.settings.DefaultBuy),
		Sell:  firstNonEmpty(config.Sell, e.settings.DefaultSell),
		Judge: firstNonEmpty(config.Judge, e.settings.DefaultJudge),
	}
	for role, spec := range map[string]string{"buy": backends.Buy, "sell": backends.Sell, "judge": backends.Judge} {
		if _, _, err := e.resolve(spec); err != nil {
			return nil, fmt.Errorf("invalid backend for %s: %w", role, err)
		}
	}

	maxTurns := config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = e.settings.MaxTurns
	}

	now := time.Now()
	run := &core.Run{
		ID:              core.GenerateID(),
		Topic:           topic,
		Ticker:          ticker,
		Backends:        backends,
		Status:          core.StatusPending,
		Stage:           core.StageOpening,
		Speaker:         core.SpeakerBuy,
		MaxTurns:        maxTurns,
		FinancialData:   config.FinancialData,
		NewsData:        config.NewsData,
		NetworkAnalysis: config.NetworkAnalysis,
		SupplyChainData: config.SupplyChainData,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.storage.CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// GetRun retrieves a run by ID.
func (e *Engine) GetRun(id string) (*core.Run, error) {
	return e.storage.GetRun(id)
}

// GetRunWithMessages retrieves a run with its transcript.
func (e *Engine) GetRunWithMessages(id string) (*core.Run, []*core.StoredMessage, error) {
	run, err := e.storage.GetRun(id)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, nil
	}

	messages, err := e.storage.GetMessages(id)
	if err != nil {
		return nil, nil, err
	}

	return run, messages, nil
}

// ListRuns returns a list of runs.
func (e *Engine) ListRuns(limit, offset int) ([]*core.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.storage.ListRuns(limit, offset)
}

// DeleteRun deletes a run.
func (e *Engine) DeleteRun(id string) error {
	return e.storage.DeleteRun(id)
}

// MessageCallback is called after each transcript entry is persisted.
type MessageCallback func(msg *core.StoredMessage, run *core.Run)

// RunDebate executes a pending run from start to finish. Runs that already
// started, finished or failed are refused.
func (e *Engine) RunDebate(ctx context.Context, runID string, callback MessageCallback) error {
	run, err := e.storage.GetRun(runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", runID)
	}
	// Failed runs keep their partial transcript; running them again would
	// append a second set of messages.
	if run.Status != core.StatusPending {
		return fmt.Errorf("run %s is %s; only pending runs can be started", runID, run.Status)
	}
	if !e.acquire(runID) {
		return fmt.Errorf("run %s is already in progress", runID)
	}
	defer e.release(runID)

	slog.Info("Starting debate run", "run_id", run.ID, "topic", run.Topic)

	run.Status = core.StatusInProgress
	run.Error = ""
	if err := e.storage.UpdateRun(run); err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	var persistErr error
	onStep := func(step workflow.Step) {
		run.Stage = step.State.Stage
		run.Speaker = step.State.Speaker
		if persistErr != nil {
			return
		}
		base := len(step.State.Messages) - len(step.Appended)
		for i, m := range step.Appended {
			msg := &core.StoredMessage{
				ID:        uuid.NewString(),
				RunID:     run.ID,
				Seq:       base + i + 1,
				Speaker:   m.Speaker,
				Stage:     m.Stage,
				Content:   m.Content,
				CreatedAt: time.Now(),
			}
			if err := e.storage.AddMessage(msg); err != nil {
				persistErr = fmt.Errorf("failed to save message: %w", err)
				slog.Error("Failed to persist message", "run_id", run.ID, "error", err)
				return
			}
			if callback != nil {
				callback(msg, run)
			}
		}
	}

	wf, err := e.buildWorkflow(run, onStep)
	if err != nil {
		return e.fail(run, err)
	}

	final, err := wf.Run(ctx, run.InitialState())
	if err != nil {
		return e.fail(run, err)
	}
	if persistErr != nil {
		return e.fail(run, persistErr)
	}
	if len(final.Messages) == 0 {
		return e.fail(run, ErrNoMessages)
	}
	if _, ok := core.DetectWinner(final.Messages); !ok {
		return e.fail(run, ErrNoVerdict)
	}

	now := time.Now()
	run.Stage = final.Stage
	run.Speaker = final.Speaker
	run.Verdict = final.Verdict
	run.Status = core.StatusCompleted
	run.CompletedAt = &now
	if err := e.storage.UpdateRun(run); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	slog.Info("Debate run completed", "run_id", run.ID, "winner", run.Verdict.Winner)
	return nil
}

// fail marks run as failed and returns err unchanged.
func (e *Engine) fail(run *core.Run, err error) error {
	slog.Error("Debate run failed", "run_id", run.ID, "error", err)
	run.Status = core.StatusFailed
	run.Error = err.Error()
	if uerr := e.storage.UpdateRun(run); uerr != nil {
		slog.Error("Failed to record run failure", "run_id", run.ID, "error", uerr)
	}
	return err
}

// buildWorkflow constructs a fresh graph for one run from its backends.
func (e *Engine) buildWorkflow(run *core.Run, onStep workflow.StepCallback) (*workflow.Workflow, error) {
	buyBackend, buyModel, err := e.resolve(run.Backends.Buy)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve buy backend: %w", err)
	}
	sellBackend, sellModel, err := e.resolve(run.Backends.Sell)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sell backend: %w", err)
	}
	judgeBackend, judgeModel, err := e.resolve(run.Backends.Judge)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve judge backend: %w", err)
	}

	s := e.settings
	buy := debater.NewBuy(buyBackend,
		debater.WithModel(buyModel),
		debater.WithTemperature(s.BuyTemperature),
		debater.WithMaxTokens(s.MaxTokens),
		debater.WithRetryPolicy(s.Retry),
	)
	sell := debater.NewSell(sellBackend,
		debater.WithModel(sellModel),
		debater.WithTemperature(s.SellTemperature),
		debater.WithMaxTokens(s.MaxTokens),
		debater.WithRetryPolicy(s.Retry),
	)
	j := judge.New(judgeBackend,
		judge.WithModel(judgeModel),
		judge.WithTemperature(s.JudgeTemperature),
		judge.WithMaxTokens(s.MaxTokens),
		judge.WithRetryPolicy(s.Retry),
	)

	return workflow.New(buy, sell, j,
		workflow.WithMaxSteps(s.MaxSteps),
		workflow.WithStepCallback(onStep),
	), nil
}

func (e *Engine) resolve(spec string) (provider.Provider, string, error) {
	bs, err := core.ParseBackendSpec(spec)
	if err != nil {
		return nil, "", err
	}
	return e.registry.Resolve(bs.Provider, bs.Model)
}

func (e *Engine) acquire(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[id] {
		return false
	}
	e.running[id] = true
	return true
}

func (e *Engine) release(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, id)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
