package core

import (
	"time"

	"github.com/google/uuid"
)

// BoundValue is implemented by every domain value a workflow can bind as an
// intermediate or final result. Kind returns a stable discriminator used when
// values cross the process boundary (artifact payloads, logs). The method is
// exported so domain packages outside core can contribute variants; consumers
// still dispatch over the known concrete types and ignore the rest.
type BoundValue interface {
	Kind() string
}

// ProcessEvent is the closed set of notifications a running workflow emits.
// Concrete event types implement the unexported isProcessEvent marker.
//
// Only BindingEvent carries workflow output; the remaining kinds narrate
// lifecycle and scheduling and exist for observers that want full traces.
type ProcessEvent interface {
	RunID() string
	Timestamp() time.Time
	isProcessEvent()
}

// baseEvent carries the correlation fields shared by all event kinds.
type baseEvent struct {
	Run string
	At  time.Time
}

// RunID returns the identifier of the run that produced this event.
func (e baseEvent) RunID() string { return e.Run }

// Timestamp returns the UTC emission time.
func (e baseEvent) Timestamp() time.Time { return e.At }

func newBaseEvent(runID string) baseEvent {
	return baseEvent{Run: runID, At: time.Now().UTC()}
}

// ProcessStartedEvent signals that an agent run began.
type ProcessStartedEvent struct {
	baseEvent
	Agent  string
	Intent string
}

func (ProcessStartedEvent) isProcessEvent() {}

// ActionScheduledEvent signals that the engine scheduled a named action of
// the workflow. Observers that only care about outputs ignore it.
type ActionScheduledEvent struct {
	baseEvent
	Action string
}

func (ActionScheduledEvent) isProcessEvent() {}

// BindingEvent signals that a named intermediate value became available
// during workflow execution. This is the event kind output collectors care
// about: Value holds the freshly bound domain object.
type BindingEvent struct {
	baseEvent
	Key   string
	Value BoundValue
}

func (BindingEvent) isProcessEvent() {}

// ProcessCompletedEvent signals that the run finished. Err is empty on
// success and carries the failure text otherwise.
type ProcessCompletedEvent struct {
	baseEvent
	Err string
}

func (ProcessCompletedEvent) isProcessEvent() {}

// NewProcessStartedEvent constructs a start notification for a run.
func NewProcessStartedEvent(runID, agent, intent string) ProcessStartedEvent {
	return ProcessStartedEvent{baseEvent: newBaseEvent(runID), Agent: agent, Intent: intent}
}

// NewActionScheduledEvent constructs a scheduling notification.
func NewActionScheduledEvent(runID, action string) ActionScheduledEvent {
	return ActionScheduledEvent{baseEvent: newBaseEvent(runID), Action: action}
}

// NewBindingEvent constructs a binding notification for a bound value.
func NewBindingEvent(runID, key string, value BoundValue) BindingEvent {
	return BindingEvent{baseEvent: newBaseEvent(runID), Key: key, Value: value}
}

// NewProcessCompletedEvent constructs a terminal notification. Pass a nil
// error for successful completion.
func NewProcessCompletedEvent(runID string, err error) ProcessCompletedEvent {
	ev := ProcessCompletedEvent{baseEvent: newBaseEvent(runID)}
	if err != nil {
		ev.Err = err.Error()
	}
	return ev
}

// ProcessListener receives workflow events in emission order. Implementations
// must be safe for concurrent use when registered with more than one run.
type ProcessListener interface {
	OnProcessEvent(ev ProcessEvent)
}

// ListenerFunc adapts a plain function to the ProcessListener interface.
type ListenerFunc func(ev ProcessEvent)

// OnProcessEvent implements ProcessListener.
func (f ListenerFunc) OnProcessEvent(ev ProcessEvent) { f(ev) }

// NewID generates a new unique identifier for runs and events.
func NewID() string { return uuid.NewString() }
