// Package engine implements the workflow execution layer of the reviewer
// application.
//
// The Engine is the execution collaborator consumed by the A2A request
// handling layer: it receives a natural-language intent, chooses a registered
// agent, runs the agent's workflow to completion and returns the terminal
// result, while publishing every core.ProcessEvent to the listeners attached
// to the execution.
//
// # Core Responsibilities
//
//   - Agent registry with name-based lookup and intent-based selection
//   - Synchronous execution built on an internal per-run event pump
//   - Ordered listener notification for every emitted event
//   - Run tracking with cooperative cancellation
//
// # Usage
//
//	eng := engine.New(func(o *engine.Options) { o.Logger = logger })
//	eng.Register(story.NewWriteAndReview(writer, reviewer))
//
//	result, err := eng.Execute(ctx, "Tell me a story about caterpillars",
//	    func(o *core.ExecuteOptions) { o.Listeners = []core.ProcessListener{emitter} })
//
// Listeners observe events strictly in emission order; the final notification
// for a run precedes Execute returning.
package engine
