package a2a

import (
	"time"

	"github.com/google/uuid"
)

// TaskState enumerates the lifecycle states of a protocol task.
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCanceled  TaskState = "canceled"
)

// Terminal reports whether the state is a final one.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// Part kind discriminators.
const (
	PartKindText = "text"
	PartKindData = "data"
)

// Part is one unit of message or artifact content. Kind selects the active
// variant: "text" carries Text, "data" carries a structured payload.
type Part struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewTextPart creates a text part.
func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// NewDataPart creates a structured data part.
func NewDataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Message is a protocol message exchanged between user and agent.
type Message struct {
	Kind      string         `json:"kind"`
	MessageID string         `json:"messageId"`
	Role      string         `json:"role"`
	Parts     []Part         `json:"parts"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewUserMessage creates a user message with a single text part.
func NewUserMessage(taskID, contextID, text string) Message {
	return Message{
		Kind:      KindMessage,
		MessageID: uuid.NewString(),
		Role:      RoleUser,
		Parts:     []Part{NewTextPart(text)},
		TaskID:    taskID,
		ContextID: contextID,
	}
}

// NewAgentMessage creates an agent message with a single text part.
func NewAgentMessage(taskID, contextID, text string) Message {
	return Message{
		Kind:      KindMessage,
		MessageID: uuid.NewString(),
		Role:      RoleAgent,
		Parts:     []Part{NewTextPart(text)},
		TaskID:    taskID,
		ContextID: contextID,
	}
}

// FirstText returns the text of the first text-bearing part, or "" when the
// message carries no text.
func (m Message) FirstText() (string, bool) {
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			return p.Text, true
		}
	}
	return "", false
}

// TaskStatus is the current state of a task plus a synthesized agent message
// narrating it.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// NewTaskStatus builds a status carrying a fresh agent message and timestamp.
func NewTaskStatus(state TaskState, taskID, contextID, text string) TaskStatus {
	msg := NewAgentMessage(taskID, contextID, text)
	return TaskStatus{
		State:     state,
		Message:   &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Artifact is a unit of task output content.
type Artifact struct {
	ArtifactID string         `json:"artifactId"`
	Name       string         `json:"name,omitempty"`
	Parts      []Part         `json:"parts"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewDataArtifact creates an artifact with a fresh id and a single
// structured payload part.
func NewDataArtifact(data map[string]any) Artifact {
	return Artifact{
		ArtifactID: uuid.NewString(),
		Parts:      []Part{NewDataPart(data)},
	}
}

// Task is the protocol unit of work.
type Task struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Event kind discriminators for streamed objects.
const (
	KindMessage        = "message"
	KindTask           = "task"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// Event is the closed set of objects deliverable over a streaming response:
// Task, TaskStatusUpdateEvent and TaskArtifactUpdateEvent.
type Event interface {
	EventKind() string
}

// EventKind implements Event.
func (Task) EventKind() string { return KindTask }

// TaskStatusUpdateEvent announces a status transition on a streaming response.
type TaskStatusUpdateEvent struct {
	Kind      string     `json:"kind"`
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId,omitempty"`
	Status    TaskStatus `json:"status"`
	Final     bool       `json:"final"`
}

// EventKind implements Event.
func (TaskStatusUpdateEvent) EventKind() string { return KindStatusUpdate }

// NewTaskStatusUpdateEvent builds a status-update stream event.
func NewTaskStatusUpdateEvent(taskID, contextID string, status TaskStatus, final bool) TaskStatusUpdateEvent {
	return TaskStatusUpdateEvent{
		Kind:      KindStatusUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Status:    status,
		Final:     final,
	}
}

// TaskArtifactUpdateEvent delivers one artifact on a streaming response.
type TaskArtifactUpdateEvent struct {
	Kind      string   `json:"kind"`
	TaskID    string   `json:"taskId,omitempty"`
	ContextID string   `json:"contextId,omitempty"`
	Artifact  Artifact `json:"artifact"`
}

// EventKind implements Event.
func (TaskArtifactUpdateEvent) EventKind() string { return KindArtifactUpdate }

// NewTaskArtifactUpdateEvent builds an artifact-update stream event.
func NewTaskArtifactUpdateEvent(artifact Artifact) TaskArtifactUpdateEvent {
	return TaskArtifactUpdateEvent{Kind: KindArtifactUpdate, Artifact: artifact}
}

// MessageSendConfiguration carries optional execution hints on message/send.
type MessageSendConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	Blocking            bool     `json:"blocking,omitempty"`
	HistoryLength       *int     `json:"historyLength,omitempty"`
}

// MessageSendParams are the parameters of message/send and message/stream.
type MessageSendParams struct {
	Message       Message                   `json:"message"`
	Configuration *MessageSendConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]any            `json:"metadata,omitempty"`
}

// TaskQueryParams are the parameters of tasks/get.
type TaskQueryParams struct {
	ID            string `json:"id"`
	HistoryLength *int   `json:"historyLength,omitempty"`
}

// TaskIDParams are the parameters of tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// AgentCard advertises the agent's identity and capabilities for discovery.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
	Skills             []AgentSkill      `json:"skills,omitempty"`
}

// AgentCapabilities describes supported interaction modes.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// AgentSkill describes one capability the agent exposes.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// EnsureContextID returns the given context id, or a freshly generated one
// when the inbound message carried none.
func EnsureContextID(contextID string) string {
	if contextID != "" {
		return contextID
	}
	return NewContextID()
}

// NewContextID generates a context identifier.
func NewContextID() string { return "ctx_" + uuid.NewString() }
