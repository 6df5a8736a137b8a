package a2a

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/storymesh/reviewer/core"
	"github.com/storymesh/reviewer/logging"
)

// RequestHandler drives the execution engine for inbound protocol requests
// and assembles task responses. It owns the request lifecycle around the
// shared OutputEmitter: provisioning the per-request slot before execution
// and clearing it unconditionally afterwards.
type RequestHandler struct {
	executor  core.Executor
	transport StreamTransport
	emitter   *OutputEmitter
	store     TaskStore
	logger    logging.Logger
}

// RequestHandlerOptions configure a RequestHandler.
type RequestHandlerOptions struct {
	// Store persists terminal tasks for tasks/get. Optional.
	Store  TaskStore
	Logger logging.Logger
}

// NewRequestHandler wires the handler to its collaborators.
func NewRequestHandler(
	executor core.Executor,
	transport StreamTransport,
	emitter *OutputEmitter,
	optFns ...func(o *RequestHandlerOptions),
) *RequestHandler {
	opts := RequestHandlerOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RequestHandler{
		executor:  executor,
		transport: transport,
		emitter:   emitter,
		store:     opts.Store,
		logger:    opts.Logger,
	}
}

// HandleSendMessage serves message/send synchronously: the workflow runs to
// completion on the calling goroutine, intermediate artifacts are buffered
// by the emitter and the response task carries them plus one final result
// artifact (always last). Execution failures surface as a FAILED task with
// an empty artifact list; no error escapes.
func (h *RequestHandler) HandleSendMessage(ctx context.Context, requestID string, params MessageSendParams) Task {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	msg := params.Message

	defer h.emitter.Clear(requestID)
	h.emitter.StartCollecting(requestID)

	intent := extractIntent(msg)
	h.logger.Info("handling message send request", "intent", intent, "task_id", msg.TaskID)

	result, err := h.executor.Execute(ctx, intent, func(o *core.ExecuteOptions) {
		o.Listeners = append(o.Listeners, h.emitter.Listener(requestID))
	})
	if err != nil {
		h.logger.Error("error handling message send request", "error", err)
		task := Task{
			Kind:      KindTask,
			ID:        msg.TaskID,
			ContextID: EnsureContextID(msg.ContextID),
			Status:    failedStatus(msg, err),
			History:   []Message{msg},
			Artifacts: []Artifact{},
		}
		h.saveTask(ctx, task)
		return task
	}

	// Buffered artifacts first, result artifact always last.
	artifacts := h.emitter.CollectedArtifacts(requestID)
	artifacts = append(artifacts, resultArtifact(result))

	task := Task{
		Kind:      KindTask,
		ID:        msg.TaskID,
		ContextID: EnsureContextID(msg.ContextID),
		Status:    completedStatus(msg),
		History:   []Message{msg},
		Artifacts: artifacts,
	}
	h.saveTask(ctx, task)

	h.logger.Info("handled message send request", "artifacts", len(artifacts))
	return task
}

// HandleStreamMessage serves message/stream: it opens a stream and returns
// it immediately while the workflow runs on a separate goroutine. The stream
// carries a WORKING announcement, live artifact updates, a second WORKING
// announcement after execution, and exactly one terminal event (a COMPLETED
// Task or a FAILED status update). The goroutine clears the emitter slot and
// closes the stream on every exit path.
func (h *RequestHandler) HandleStreamMessage(ctx context.Context, requestID string, params MessageSendParams) (*Stream, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	streamID := requestID

	stream, err := h.transport.CreateStream(streamID)
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	// The transport offers no cancellation signal back into the engine; the
	// run finishes even if the client goes away.
	runCtx := context.WithoutCancel(ctx)

	go h.runStreaming(runCtx, requestID, streamID, params)

	return stream, nil
}

func (h *RequestHandler) runStreaming(ctx context.Context, requestID, streamID string, params MessageSendParams) {
	msg := params.Message

	defer func() {
		h.emitter.Clear(requestID)
		h.transport.Close(streamID)
	}()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic in streaming execution", "stream_id", streamID, "panic", r)
			h.sendFailure(ctx, streamID, msg, fmt.Errorf("internal error: %v", r))
		}
	}()

	h.emitter.SetStreamID(requestID, streamID)

	err := h.transport.Send(streamID, NewTaskStatusUpdateEvent(
		msg.TaskID, msg.ContextID, workingStatus(msg, "Task started..."), false,
	))
	if err != nil {
		h.logger.Error("streaming error", "stream_id", streamID, "error", err)
		h.sendFailure(ctx, streamID, msg, err)
		return
	}

	intent := extractIntent(msg)
	h.logger.Info("executing streaming task", "intent", intent, "stream_id", streamID)

	result, err := h.executor.Execute(ctx, intent, func(o *core.ExecuteOptions) {
		o.Listeners = append(o.Listeners, h.emitter.Listener(requestID))
	})
	if err != nil {
		h.logger.Error("streaming error", "stream_id", streamID, "error", err)
		h.sendFailure(ctx, streamID, msg, err)
		return
	}

	err = h.transport.Send(streamID, NewTaskStatusUpdateEvent(
		msg.TaskID, EnsureContextID(msg.ContextID), workingStatus(msg, "Processing task..."), false,
	))
	if err != nil {
		h.logger.Error("streaming error", "stream_id", streamID, "error", err)
		h.sendFailure(ctx, streamID, msg, err)
		return
	}

	task := Task{
		Kind:      KindTask,
		ID:        msg.TaskID,
		ContextID: NewContextID(),
		Status:    completedStatus(msg),
		History:   []Message{msg},
		Artifacts: []Artifact{resultArtifact(result)},
	}
	h.saveTask(ctx, task)

	if err := h.transport.Send(streamID, task); err != nil {
		h.logger.Error("streaming error", "stream_id", streamID, "error", err)
		// The run completed and is persisted as such; only the stream
		// outcome is failed.
		h.sendFailureEvent(streamID, msg, err)
	}
}

// sendFailure persists the FAILED outcome and reports it on the stream.
func (h *RequestHandler) sendFailure(ctx context.Context, streamID string, msg Message, cause error) {
	h.saveTask(ctx, Task{
		Kind:      KindTask,
		ID:        msg.TaskID,
		ContextID: EnsureContextID(msg.ContextID),
		Status:    failedStatus(msg, cause),
		History:   []Message{msg},
		Artifacts: []Artifact{},
	})
	h.sendFailureEvent(streamID, msg, cause)
}

// sendFailureEvent emits the terminal FAILED status update. Delivery failures
// of the error event itself are swallowed so the stream still closes.
func (h *RequestHandler) sendFailureEvent(streamID string, msg Message, cause error) {
	ev := NewTaskStatusUpdateEvent(msg.TaskID, EnsureContextID(msg.ContextID), failedStatus(msg, cause), true)
	if err := h.transport.Send(streamID, ev); err != nil {
		h.logger.Error("error sending error event", "stream_id", streamID, "error", err)
	}
}

func (h *RequestHandler) saveTask(ctx context.Context, task Task) {
	if h.store == nil {
		return
	}
	if err := h.store.Save(ctx, task); err != nil {
		h.logger.Error("failed to persist task", "task_id", task.ID, "error", err)
	}
}

// extractIntent pulls the intent from the first text-bearing part, falling
// back to a synthetic label derived from the task id.
func extractIntent(msg Message) string {
	if text, ok := msg.FirstText(); ok {
		return text
	}
	return "Task " + msg.TaskID
}

func workingStatus(msg Message, text string) TaskStatus {
	return NewTaskStatus(TaskStateWorking, msg.TaskID, msg.ContextID, text)
}

func completedStatus(msg Message) TaskStatus {
	return NewTaskStatus(TaskStateCompleted, msg.TaskID, msg.ContextID, "Task completed successfully")
}

func failedStatus(msg Message, err error) TaskStatus {
	return NewTaskStatus(TaskStateFailed, msg.TaskID, msg.ContextID, "Task failed: "+err.Error())
}

// resultArtifact wraps the execution output in the final result artifact.
func resultArtifact(result *core.ExecutionResult) Artifact {
	return NewDataArtifact(map[string]any{
		"result": result.OutputText(),
		"type":   "final_result",
	})
}
