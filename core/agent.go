package core

// Agent is the processing unit the engine executes. Agents receive their
// input through a RunContext, bind intermediate and final values via
// RunContext.Bind, and return when the workflow is complete.
//
// Implementations must respect context cancellation for graceful shutdown and
// must only communicate results through bindings (the engine treats the last
// bound value as the run's output).
type Agent interface {
	Name() string
	Description() string
	Run(rc *RunContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "workflow", "model").
type AgentInfo struct{ Name, Type string }
