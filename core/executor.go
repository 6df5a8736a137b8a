package core

import (
	"context"
	"fmt"
)

// ExecutionResult is the terminal outcome of a successful run. Output holds
// the last value the workflow bound (the workflow's designated final result);
// Bindings preserves every bound value in emission order.
type ExecutionResult struct {
	RunID    string
	Agent    AgentInfo
	Output   BoundValue
	Bindings []BindingEvent
}

// OutputText renders the output value as text for protocol payloads. Values
// implementing fmt.Stringer control their own rendering.
func (r *ExecutionResult) OutputText() string {
	if r == nil || r.Output == nil {
		return ""
	}
	if s, ok := r.Output.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", r.Output)
}

// ExecuteOptions holds per-execution overrides passed to Executor.Execute.
type ExecuteOptions struct {
	// Listeners receive every ProcessEvent of the run in emission order,
	// on the run's event pump (not the caller's goroutine).
	Listeners []ProcessListener
}

// Executor is the minimal contract the request-handling layer consumes:
// given a natural-language intent, choose an agent, run the workflow to
// completion and return its terminal result.
//
// Semantics & guarantees:
//   - Execute blocks until the run completes, fails or ctx is cancelled.
//   - Listeners observe events strictly in emission order; the final
//     listener notification for a run precedes Execute returning.
//   - Any workflow failure is surfaced via the returned error; listener
//     panics are not recovered (listeners must not panic).
type Executor interface {
	Execute(ctx context.Context, intent string, optFns ...func(o *ExecuteOptions)) (*ExecutionResult, error)
}
