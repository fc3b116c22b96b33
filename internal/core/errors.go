package core

import "fmt"

// InvalidTurnError is returned when an argument generator is asked to act
// on a turn it does not handle. It points at a routing defect and is never
// retried.
type InvalidTurnError struct {
	Node    NodeName
	Stage   Stage
	Speaker Speaker
}

func (e *InvalidTurnError) Error() string {
	return fmt.Sprintf("unknown turn for %s: stage=%s, speaker=%s", e.Node, e.Stage, e.Speaker)
}

// UnexpectedStateError is returned by the moderator for any (stage, speaker)
// pair outside its transition table.
type UnexpectedStateError struct {
	Stage   Stage
	Speaker Speaker
}

func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("unexpected stage/speaker combination: stage=%s, speaker=%s", e.Stage, e.Speaker)
}

// StepLimitError is returned when a run exceeds its step bound, which
// means the graph is cycling.
type StepLimitError struct {
	Limit int
	Node  NodeName
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("step limit of %d reached without hitting a stop condition (next node: %s)", e.Limit, e.Node)
}

// MalformedOutputError is returned when structured model output cannot be
// parsed or fails validation. The backend retry policy treats it as
// retriable.
type MalformedOutputError struct {
	Reason string
	Raw    string
}

func (e *MalformedOutputError) Error() string {
	return "malformed structured output: " + e.Reason
}

// Retriable marks the error as worth another backend attempt.
func (e *MalformedOutputError) Retriable() bool {
	return true
}

// RunError wraps a fatal error from a workflow run and keeps the last
// merged state for diagnostics.
type RunError struct {
	Node  NodeName
	Step  int
	State *State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("debate run failed at %s (step %d): %v", e.Node, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error {
	return e.Err
}
