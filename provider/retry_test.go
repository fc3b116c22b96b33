package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type retriableErr struct{ retry bool }

func (e *retriableErr) Error() string   { return "retriable test error" }
func (e *retriableErr) Retriable() bool { return e.retry }

func recordingPolicy(max int) (RetryPolicy, *[]time.Duration) {
	var waits []time.Duration
	p := DefaultRetryPolicy()
	p.MaxRetries = max
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return p, &waits
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate_limited", &APIError{StatusCode: http.StatusTooManyRequests}, true},
		{"server_error", &APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}, false},
		{"wrapped_rate_limit", fmt.Errorf("call: %w", &APIError{StatusCode: 429}), true},
		{"self_declared", &retriableErr{retry: true}, true},
		{"self_declined", &retriableErr{retry: false}, false},
		{"message_429", errors.New("upstream said 429 Too Many Requests"), true},
		{"status_400_mentions_429", &APIError{StatusCode: http.StatusBadRequest, Message: "max context 4290 tokens"}, false},
		{"status_500_mentions_429", fmt.Errorf("call: %w", &APIError{StatusCode: 500, Message: "request id 429abc"}), false},
		{"no_status_mentions_429", &APIError{Message: "rate limited (429)"}, true},
		{"plain", errors.New("bad request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetriable(tt.err); got != tt.want {
				t.Errorf("IsRetriable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	policy, waits := recordingPolicy(5)

	calls := 0
	err := policy.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &APIError{Provider: "test", StatusCode: 429}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*waits) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), *waits)
	}
	for i, w := range want {
		if (*waits)[i] != w {
			t.Errorf("wait %d: got %v, want %v", i, (*waits)[i], w)
		}
	}
}

func TestDoExhausted(t *testing.T) {
	policy, waits := recordingPolicy(5)

	calls := 0
	last := &APIError{Provider: "test", StatusCode: 429, Message: "slow down"}
	err := policy.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return last
	})

	if calls != 5 {
		t.Errorf("expected 5 attempts, got %d", calls)
	}
	if len(*waits) != 4 {
		t.Errorf("expected 4 waits, got %d", len(*waits))
	}
	if (*waits)[3] != 8*time.Second {
		t.Errorf("expected last wait of 8s, got %v", (*waits)[3])
	}
	if !errors.Is(err, ErrMaxRetries) {
		t.Errorf("expected ErrMaxRetries, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr != last {
		t.Errorf("expected last error to be preserved, got %v", err)
	}
}

func TestDoNonRetriableFailsImmediately(t *testing.T) {
	policy, waits := recordingPolicy(5)

	calls := 0
	boom := errors.New("invalid api key")
	err := policy.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return boom
	})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(*waits) != 0 {
		t.Errorf("expected no waits, got %v", *waits)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected original error, got %v", err)
	}
	if errors.Is(err, ErrMaxRetries) {
		t.Error("non-retriable error must not report exhaustion")
	}
}

func TestDoStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxRetries: 3, InitialBackoff: time.Hour, Multiplier: 2}
	err := policy.Do(ctx, "test", func(ctx context.Context) error {
		return &APIError{StatusCode: 429}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type flakyProvider struct {
	contents []string
	calls    int
}

func (f *flakyProvider) Name() string    { return "flaky" }
func (f *flakyProvider) Available() bool { return true }
func (f *flakyProvider) Execute(ctx context.Context, req *Request) (*Response, error) {
	c := f.contents[f.calls%len(f.contents)]
	f.calls++
	return &Response{Content: c}, nil
}

func TestExecuteWithRetryRechecksResponse(t *testing.T) {
	policy, _ := recordingPolicy(3)
	p := &flakyProvider{contents: []string{"bad", "good"}}

	resp, err := ExecuteWithRetry(context.Background(), p, policy, &Request{}, func(r *Response) error {
		if r.Content != "good" {
			return &retriableErr{retry: true}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "good" || p.calls != 2 {
		t.Errorf("expected second response after one retry, got %q after %d calls", resp.Content, p.calls)
	}
}
