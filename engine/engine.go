package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/storymesh/reviewer/core"
	"github.com/storymesh/reviewer/logging"
)

// Config defines tuning parameters for the Engine's operational behavior.
type Config struct {
	// EventBufferSize sets the channel buffer size for event processing.
	// Larger buffers reduce blocking but increase memory usage.
	EventBufferSize int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	EventBufferSize: 100,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil to ensure no logging dependencies.
	Logger logging.Logger
}

// Engine coordinates agent execution and listener notification. It is the
// concrete core.Executor used by the A2A layer and the demo CLI.
//
// Concurrency model:
//   - Thread-safe agent registration and lookup via RWMutex
//   - One goroutine per run for the agent body, one for the event pump
//   - Listener notification happens on the pump goroutine, preserving the
//     emission order of events within a run
//   - Cancel(runID) provides cooperative termination of in-flight runs
type Engine struct {
	config Config
	logger logging.Logger

	agents map[string]core.Agent
	order  []string // registration order, used for deterministic selection
	mu     sync.RWMutex

	activeRuns map[string]context.CancelFunc
	runsMu     sync.Mutex
}

var _ core.Executor = (*Engine)(nil)

// New constructs an Engine with optional overrides.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		config:     opts.Config,
		logger:     opts.Logger,
		agents:     make(map[string]core.Agent),
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Register adds an agent to the engine's registry, making it available for
// execution. Registering a second agent with the same name replaces the first.
func (e *Engine) Register(a core.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.agents[a.Name()]; !exists {
		e.order = append(e.order, a.Name())
	}
	e.agents[a.Name()] = a
}

// GetAgent retrieves a registered agent by name.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.agents[name]
	return a, ok
}

// chooseAgent picks the agent whose name appears in the intent, falling back
// to the first registered agent. Selection is deterministic in registration
// order so that a single-agent deployment always runs its only agent.
func (e *Engine) chooseAgent(intent string) (core.Agent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.order) == 0 {
		return nil, fmt.Errorf("no agents registered")
	}

	lowered := strings.ToLower(intent)
	for _, name := range e.order {
		if strings.Contains(lowered, strings.ToLower(name)) {
			return e.agents[name], nil
		}
	}

	return e.agents[e.order[0]], nil
}

// Execute implements core.Executor. It chooses an agent for the intent, runs
// its workflow to completion and returns the terminal result. Every emitted
// event is forwarded, in order, to the listeners attached via options before
// Execute returns.
func (e *Engine) Execute(
	ctx context.Context,
	intent string,
	optFns ...func(o *core.ExecuteOptions),
) (*core.ExecutionResult, error) {
	opts := core.ExecuteOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	agent, err := e.chooseAgent(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to choose agent: %w", err)
	}

	runID := core.NewID()
	agentInfo := core.AgentInfo{Name: agent.Name(), Type: "workflow"}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.runsMu.Lock()
	e.activeRuns[runID] = cancel
	e.runsMu.Unlock()
	defer func() {
		e.runsMu.Lock()
		delete(e.activeRuns, runID)
		e.runsMu.Unlock()
	}()

	emit := make(chan core.ProcessEvent, e.config.EventBufferSize)
	agentErr := make(chan error, 1)

	rc := core.NewRunContext(runCtx, runID, agentInfo, intent, emit, e.logger)

	e.logger.Debug("engine starting run", "run_id", runID, "agent", agent.Name())

	go func() {
		defer close(emit)
		agentErr <- e.runAgent(rc, agent)
	}()

	notify := func(ev core.ProcessEvent) {
		for _, l := range opts.Listeners {
			l.OnProcessEvent(ev)
		}
	}

	notify(core.NewProcessStartedEvent(runID, agent.Name(), intent))

	result := &core.ExecutionResult{RunID: runID, Agent: agentInfo}

	// Pump events until the agent goroutine closes the channel. Tracking the
	// last binding gives the run its output without a separate return path.
	for ev := range emit {
		if be, ok := ev.(core.BindingEvent); ok {
			result.Bindings = append(result.Bindings, be)
			result.Output = be.Value
		}
		notify(ev)
	}

	err = <-agentErr

	if ctxErr := runCtx.Err(); err == nil && ctxErr != nil {
		err = ctxErr
	}

	notify(core.NewProcessCompletedEvent(runID, err))

	if err != nil {
		e.logger.Error("engine run failed", "run_id", runID, "agent", agent.Name(), "error", err)
		return nil, fmt.Errorf("agent execution failed: %w", err)
	}

	e.logger.Debug("engine run completed", "run_id", runID, "bindings", len(result.Bindings))

	return result, nil
}

// Cancel requests cooperative termination of an in-flight run. Cancelling an
// unknown or already finished run returns an error describing the condition.
func (e *Engine) Cancel(runID string) error {
	e.runsMu.Lock()
	cancel, exists := e.activeRuns[runID]
	e.runsMu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()
	return nil
}

func (e *Engine) runAgent(rc *core.RunContext, agent core.Agent) (err error) {
	// Agent panics must surface as run failures, not tear down the server.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s panicked: %v", agent.Name(), r)
		}
	}()

	return agent.Run(rc)
}
