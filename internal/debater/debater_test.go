package debater

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/prompt"
	"github.com/alienxp03/tradedebate/provider"
	"github.com/alienxp03/tradedebate/provider/mock"
)

func fastRetry() provider.RetryPolicy {
	return provider.RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, Multiplier: 2}
}

func TestBuyOpening(t *testing.T) {
	backend := mock.New(provider.Config{}, mock.WithResponses("Buy: strong balance sheet."))
	buy := NewBuy(backend, WithRetryPolicy(fastRetry()))

	state := &core.State{Topic: "Should we buy ACME?", FinancialData: "Cash up 20%"}
	state.ApplyDefaults()

	patch, err := buy.Invoke(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(patch.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(patch.Messages))
	}
	m := patch.Messages[0]
	if m.Speaker != core.SpeakerBuy || m.Stage != core.StageOpening || m.Content != "Buy: strong balance sheet." {
		t.Errorf("unexpected message: %+v", m)
	}
	if patch.Stage != nil || patch.Speaker != nil {
		t.Error("debater must not change routing fields")
	}

	reqs := backend.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].Temperature != DefaultTemperature {
		t.Errorf("wrong temperature: %v", reqs[0].Temperature)
	}
	if reqs[0].SystemPrompt != prompt.SystemPrompt(core.SpeakerBuy) {
		t.Error("expected buy system prompt")
	}
	if !strings.Contains(reqs[0].Prompt, "Financial Data:\nCash up 20%") {
		t.Errorf("expected data context in prompt, got %q", reqs[0].Prompt)
	}
}

func TestSellRebuttalSeesOpponentAndHistory(t *testing.T) {
	backend := mock.New(provider.Config{}, mock.WithResponses("Sell: valuation stretched."))
	sell := NewSell(backend, WithRetryPolicy(fastRetry()))

	state := &core.State{
		Topic:    "t",
		Stage:    core.StageRebuttal,
		Speaker:  core.SpeakerSell,
		Messages: []core.Message{{Speaker: core.SpeakerBuy, Content: "buy opening", Stage: core.StageOpening}},
	}

	patch, err := sell.Invoke(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(patch.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(patch.Messages))
	}
	if patch.Messages[0] != state.Messages[0] {
		t.Error("existing message was modified")
	}
	if patch.Messages[1].Speaker != core.SpeakerSell || patch.Messages[1].Stage != core.StageRebuttal {
		t.Errorf("unexpected message: %+v", patch.Messages[1])
	}

	got := backend.Requests()[0].Prompt
	if !strings.Contains(got, `"buy opening"`) {
		t.Error("expected opponent statement in prompt")
	}
	if !strings.Contains(got, "[OPENING] BUY: buy opening") {
		t.Error("expected rendered history in prompt")
	}
	if !strings.Contains(got, core.NoDataContext) {
		t.Error("expected no-data fallback in prompt")
	}
}

func TestInvalidTurns(t *testing.T) {
	backend := mock.New(provider.Config{})
	buy := NewBuy(backend)
	sell := NewSell(backend)

	tests := []struct {
		name    string
		d       *Debater
		stage   core.Stage
		speaker core.Speaker
	}{
		{"buy_rebuttal", buy, core.StageRebuttal, core.SpeakerBuy},
		{"buy_wrong_speaker", buy, core.StageOpening, core.SpeakerSell},
		{"buy_final", buy, core.StageFinalArgument, core.SpeakerBuy},
		{"sell_opening", sell, core.StageOpening, core.SpeakerSell},
		{"sell_counter", sell, core.StageCounter, core.SpeakerSell},
		{"sell_wrong_speaker", sell, core.StageRebuttal, core.SpeakerBuy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &core.State{Topic: "t", Stage: tt.stage, Speaker: tt.speaker}
			_, err := tt.d.Invoke(context.Background(), state)

			var turnErr *core.InvalidTurnError
			if !errors.As(err, &turnErr) {
				t.Fatalf("expected InvalidTurnError, got %v", err)
			}
			if turnErr.Node != tt.d.Name() {
				t.Errorf("wrong node in error: %s", turnErr.Node)
			}
		})
	}

	if backend.Calls() != 0 {
		t.Errorf("invalid turns must not reach the backend, got %d calls", backend.Calls())
	}
}

func TestBuyCounter(t *testing.T) {
	backend := mock.New(provider.Config{}, mock.WithResponses("counter"))
	buy := NewBuy(backend, WithRetryPolicy(fastRetry()))

	state := &core.State{
		Topic:   "t",
		Stage:   core.StageCounter,
		Speaker: core.SpeakerBuy,
		Messages: []core.Message{
			{Speaker: core.SpeakerBuy, Content: "open", Stage: core.StageOpening},
			{Speaker: core.SpeakerSell, Content: "rebut", Stage: core.StageRebuttal},
		},
	}

	patch, err := buy.Invoke(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last := patch.Messages[len(patch.Messages)-1]; last.Stage != core.StageCounter {
		t.Errorf("wrong stage: %s", last.Stage)
	}
	if !strings.Contains(backend.Requests()[0].Prompt, `"rebut"`) {
		t.Error("expected latest sell message as opponent statement")
	}
}

func TestWithTurnExtension(t *testing.T) {
	backend := mock.New(provider.Config{}, mock.WithResponses("closing"))
	sell := NewSell(backend, WithTurn(core.StageFinalArgument, prompt.FinalArgument), WithRetryPolicy(fastRetry()))

	if !sell.Handles(core.Turn{Stage: core.StageFinalArgument, Speaker: core.SpeakerSell}) {
		t.Fatal("expected extension stage to be handled")
	}
	if got := sell.Stages(); len(got) != 2 {
		t.Errorf("expected 2 stages, got %v", got)
	}

	state := &core.State{Topic: "t", Stage: core.StageFinalArgument, Speaker: core.SpeakerSell}
	patch, err := sell.Invoke(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Messages[0].Stage != core.StageFinalArgument {
		t.Errorf("wrong stage: %s", patch.Messages[0].Stage)
	}
}

func TestRateLimitIsRetried(t *testing.T) {
	backend := mock.New(provider.Config{},
		mock.WithErrors(&provider.APIError{Provider: "mock", StatusCode: 429}),
		mock.WithResponses("after retry"),
	)
	buy := NewBuy(backend, WithRetryPolicy(fastRetry()))

	state := &core.State{Topic: "t"}
	state.ApplyDefaults()

	patch, err := buy.Invoke(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Messages[0].Content != "after retry" {
		t.Errorf("wrong content: %s", patch.Messages[0].Content)
	}
	if backend.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", backend.Calls())
	}
}

func TestNonTransientErrorPropagates(t *testing.T) {
	boom := errors.New("invalid api key")
	backend := mock.New(provider.Config{}, mock.WithErrors(boom))
	buy := NewBuy(backend, WithRetryPolicy(fastRetry()))

	state := &core.State{Topic: "t"}
	state.ApplyDefaults()

	if _, err := buy.Invoke(context.Background(), state); !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if backend.Calls() != 1 {
		t.Errorf("expected no retry, got %d calls", backend.Calls())
	}
}

func TestEmptyResponseIsRetried(t *testing.T) {
	backend := mock.New(provider.Config{}, mock.WithResponses("   ", "real"))
	buy := NewBuy(backend, WithRetryPolicy(fastRetry()))

	state := &core.State{Topic: "t"}
	state.ApplyDefaults()

	patch, err := buy.Invoke(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patch.Messages[0].Content != "real" {
		t.Errorf("wrong content: %q", patch.Messages[0].Content)
	}
}
