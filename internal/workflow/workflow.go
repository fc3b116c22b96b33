// Package workflow drives a debate through its nodes until the judge has
// spoken or the step bound is hit.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alienxp03/tradedebate/internal/core"
	"github.com/alienxp03/tradedebate/internal/moderator"
)

// DefaultMaxSteps bounds a run independently of the moderator's routing.
const DefaultMaxSteps = 50

// Node is a workflow participant that answers with a state patch.
type Node interface {
	Name() core.NodeName
	Invoke(ctx context.Context, state *core.State) (core.Patch, error)
}

// Router picks the node after a debater has spoken.
type Router func(state *core.State) (moderator.Decision, error)

// Step describes one completed node visit.
type Step struct {
	Number   int
	Node     core.NodeName
	Next     core.NodeName
	Appended []core.Message
	State    *core.State
}

// StepCallback is called after every step with a snapshot of the state.
type StepCallback func(step Step)

// Workflow wires BUY, SELL, the moderator and the judge into a graph.
type Workflow struct {
	nodes    map[core.NodeName]Node
	edges    map[core.NodeName]core.NodeName
	router   Router
	maxSteps int
	onStep   StepCallback
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithMaxSteps overrides the step bound.
func WithMaxSteps(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxSteps = n
		}
	}
}

// WithStepCallback registers a per-step observer.
func WithStepCallback(cb StepCallback) Option {
	return func(w *Workflow) {
		w.onStep = cb
	}
}

// WithRouter replaces the moderator transition function.
func WithRouter(r Router) Option {
	return func(w *Workflow) {
		w.router = r
	}
}

// New builds the debate graph: BUY and SELL return to the moderator, the
// moderator routes to SELL or the judge, and the judge ends the run.
func New(buy, sell, judge Node, opts ...Option) *Workflow {
	w := &Workflow{
		nodes: map[core.NodeName]Node{
			core.NodeBuy:   buy,
			core.NodeSell:  sell,
			core.NodeJudge: judge,
		},
		edges: map[core.NodeName]core.NodeName{
			core.NodeBuy:   core.NodeModerator,
			core.NodeSell:  core.NodeModerator,
			core.NodeJudge: core.NodeEnd,
		},
		router:   moderator.Moderate,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes a debate from initial and returns the final state. The
// caller's state is never modified, so Run may be called repeatedly with
// the same input. On failure the returned error is a *core.RunError that
// carries the last merged state.
func (w *Workflow) Run(ctx context.Context, initial *core.State) (*core.State, error) {
	r := &run{workflow: w, state: initial.Clone()}
	r.state.ApplyDefaults()
	return r.execute(ctx)
}

// run holds the mutable bookkeeping of one execution.
type run struct {
	workflow *Workflow
	state    *core.State
	step     int
}

func (r *run) execute(ctx context.Context) (*core.State, error) {
	w := r.workflow
	node := core.NodeBuy

	for node != core.NodeEnd {
		r.step++
		if r.step > w.maxSteps {
			return nil, r.fail(node, &core.StepLimitError{Limit: w.maxSteps, Node: node})
		}
		if err := ctx.Err(); err != nil {
			return nil, r.fail(node, err)
		}

		before := len(r.state.Messages)
		next, err := r.visit(ctx, node)
		if err != nil {
			return nil, r.fail(node, err)
		}

		appended := r.state.Messages[before:]
		if err := checkAppended(node, len(appended)); err != nil {
			return nil, r.fail(node, err)
		}

		slog.Debug("Workflow step complete",
			"step", r.step,
			"node", node,
			"next", next,
			"stage", r.state.Stage,
			"speaker", r.state.Speaker,
			"messages", len(r.state.Messages),
		)

		if w.onStep != nil {
			w.onStep(Step{
				Number:   r.step,
				Node:     node,
				Next:     next,
				Appended: append([]core.Message(nil), appended...),
				State:    r.state.Clone(),
			})
		}
		node = next
	}

	return r.state, nil
}

// visit runs one node, merges its patch and returns the next node.
func (r *run) visit(ctx context.Context, name core.NodeName) (core.NodeName, error) {
	if name == core.NodeModerator {
		d, err := r.workflow.router(r.state.Clone())
		if err != nil {
			return "", err
		}
		if err := r.state.Apply(d.Patch); err != nil {
			return "", err
		}
		return d.Next, nil
	}

	n, ok := r.workflow.nodes[name]
	if !ok || n == nil {
		return "", fmt.Errorf("no node registered for %s", name)
	}
	patch, err := n.Invoke(ctx, r.state.Clone())
	if err != nil {
		return "", err
	}
	if err := r.state.Apply(patch); err != nil {
		return "", err
	}
	return r.workflow.edges[name], nil
}

// checkAppended enforces that debaters and the judge add exactly one
// message per visit and the moderator adds none.
func checkAppended(node core.NodeName, n int) error {
	want := 1
	if node == core.NodeModerator {
		want = 0
	}
	if n != want {
		return fmt.Errorf("%s appended %d messages, expected %d", node, n, want)
	}
	return nil
}

func (r *run) fail(node core.NodeName, err error) error {
	slog.Debug("Workflow step failed", "step", r.step, "node", node, "error", err)
	return &core.RunError{Node: node, Step: r.step, State: r.state.Clone(), Err: err}
}
