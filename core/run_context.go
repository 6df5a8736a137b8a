package core

import (
	"context"
	"fmt"

	"github.com/storymesh/reviewer/logging"
)

// RunContext carries execution state & helpers for an agent run. It
// encapsulates the mutable, per-run execution scope passed to an Agent's Run
// method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (RunID, Agent info) and the user's Intent
//   - The event emission channel feeding the engine's listener pump
//
// Bind is the only output path: each call publishes a BindingEvent and the
// engine records the most recent binding as the run's output.
type RunContext struct {
	Context context.Context
	RunID   string
	Agent   AgentInfo
	Intent  string
	Emit    chan<- ProcessEvent

	*loggerAdapter
}

// NewRunContext constructs a RunContext for a single run.
func NewRunContext(
	ctx context.Context,
	runID string,
	agent AgentInfo,
	intent string,
	emit chan<- ProcessEvent,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		Agent:         agent,
		Intent:        intent,
		Emit:          emit,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Bind publishes a named value as a BindingEvent. It blocks until the engine
// accepts the event or the run is cancelled.
func (rc *RunContext) Bind(key string, value BoundValue) error {
	if value == nil {
		return fmt.Errorf("cannot bind nil value for key %q", key)
	}
	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- NewBindingEvent(rc.RunID, key, value):
		return nil
	}
}

// EmitEvent publishes an arbitrary process event (scheduling, lifecycle).
func (rc *RunContext) EmitEvent(ev ProcessEvent) error {
	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
		return nil
	}
}
