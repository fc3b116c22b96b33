// Package mock provides an offline backend that produces simulated
// arguments and verdicts. It is used for demos and tests.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alienxp03/tradedebate/provider"
)

// Provider generates simulated responses, or replays scripted ones.
type Provider struct {
	provider.BaseProvider

	mu        sync.Mutex
	responses []string
	errs      []error
	next      int
	requests  []provider.Request
	delay     time.Duration
}

// Option configures a mock provider.
type Option func(*Provider)

// WithResponses replays the given contents in order, wrapping around.
func WithResponses(responses ...string) Option {
	return func(p *Provider) {
		p.responses = append(p.responses, responses...)
	}
}

// WithErrors makes the first calls fail with errs, in order.
func WithErrors(errs ...error) Option {
	return func(p *Provider) {
		p.errs = append(p.errs, errs...)
	}
}

// WithDelay simulates backend latency.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) {
		p.delay = d
	}
}

// New creates a new mock provider.
func New(cfg provider.Config, opts ...Option) *Provider {
	if cfg.Name == "" {
		cfg.Name = "mock"
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "Mock (Simulated)"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "mock-v1"
	}
	if len(cfg.Models) == 0 {
		cfg.Models = []string{"mock-v1", "mock-v2"}
	}

	p := &Provider{BaseProvider: provider.NewBaseProvider(cfg)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Available always returns true for mock provider.
func (p *Provider) Available() bool {
	return true
}

// Execute records the request and returns the next scripted or simulated reply.
func (p *Provider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.requests = append(p.requests, *req)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		p.mu.Unlock()
		return nil, err
	}
	var content string
	if len(p.responses) > 0 {
		content = p.responses[p.next%len(p.responses)]
		p.next++
	}
	p.mu.Unlock()

	if content == "" {
		content = simulate(req)
	}

	return &provider.Response{
		Content:  content,
		Model:    p.ResolveModel(req),
		Provider: p.Name(),
		Metadata: &provider.Metadata{
			InputTokens:  len(req.Prompt) / 4,
			OutputTokens: len(content) / 4,
			TotalTokens:  (len(req.Prompt) + len(content)) / 4,
			Duration:     p.delay,
			StopReason:   "stop",
		},
	}, nil
}

// Requests returns a copy of every request seen so far.
func (p *Provider) Requests() []provider.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]provider.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// Calls returns how many requests were made.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func simulate(req *provider.Request) string {
	if req.Prompt == provider.HealthCheckPrompt {
		return "2"
	}
	if req.JSONMode {
		return `{"winner": "buy", "justification": ["Simulated verdict: the buy case cited more of the provided data."]}`
	}
	return fmt.Sprintf("Mock argument responding to: %s... [Simulated content]", truncate(firstLine(req.Prompt), 60))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
