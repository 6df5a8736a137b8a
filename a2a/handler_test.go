package a2a

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/storymesh/reviewer/core"
	"github.com/storymesh/reviewer/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor scripts the engine side of the bridge: it notifies the
// registered listeners with the configured binding events, then returns the
// configured result or error.
type fakeExecutor struct {
	bindings   []core.BindingEvent
	result     *core.ExecutionResult
	err        error
	lastIntent string
}

func (f *fakeExecutor) Execute(ctx context.Context, intent string, optFns ...func(o *core.ExecuteOptions)) (*core.ExecutionResult, error) {
	f.lastIntent = intent
	opts := core.ExecuteOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	for _, be := range f.bindings {
		for _, l := range opts.Listeners {
			l.OnProcessEvent(be)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func reviewedResult(text string) *core.ExecutionResult {
	return &core.ExecutionResult{
		RunID: core.NewID(),
		Output: story.ReviewedStory{
			Story:    story.Story{Text: text},
			Review:   "Great",
			Reviewer: "Jane",
		},
	}
}

func newTestHandler(exec core.Executor) (*RequestHandler, *StreamRegistry, *InMemoryTaskStore) {
	registry := NewStreamRegistry()
	emitter := NewOutputEmitter(registry)
	store := NewInMemoryTaskStore()
	handler := NewRequestHandler(exec, registry, emitter, func(o *RequestHandlerOptions) {
		o.Store = store
	})
	return handler, registry, store
}

func sendParams(taskID, contextID, text string) MessageSendParams {
	msg := NewUserMessage(taskID, contextID, text)
	return MessageSendParams{Message: msg}
}

// collectStreamEvents drains a stream until it closes, failing the test on
// timeout.
func collectStreamEvents(t *testing.T, stream *Stream) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-stream.Events():
			events = append(events, ev)
		case <-stream.Done():
			for {
				select {
				case ev := <-stream.Events():
					events = append(events, ev)
				default:
					return events
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func TestSendMessageCompletedTask(t *testing.T) {
	exec := &fakeExecutor{
		bindings: []core.BindingEvent{
			core.NewBindingEvent("run", story.KeyStory, story.Story{Text: "draft"}),
			core.NewBindingEvent("run", story.KeyReviewedStory, story.ReviewedStory{
				Story: story.Story{Text: "draft"}, Review: "Great", Reviewer: "Jane",
			}),
		},
		result: reviewedResult("draft"),
	}
	handler, _, store := newTestHandler(exec)

	params := sendParams("T1", "ctx-1", "Tell me a story")
	task := handler.HandleSendMessage(context.Background(), "req-1", params)

	assert.Equal(t, "Tell me a story", exec.lastIntent)
	assert.Equal(t, "T1", task.ID)
	assert.Equal(t, "ctx-1", task.ContextID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	require.Len(t, task.History, 1)
	assert.Equal(t, params.Message.MessageID, task.History[0].MessageID)

	// Two buffered artifacts plus the final result artifact, always last.
	require.Len(t, task.Artifacts, 3)
	assert.Equal(t, "story", task.Artifacts[0].Parts[0].Data["type"])
	assert.Equal(t, "reviewed_story", task.Artifacts[1].Parts[0].Data["type"])
	final := task.Artifacts[2].Parts[0].Data
	assert.Equal(t, "final_result", final["type"])
	assert.Contains(t, final["result"], "draft")

	stored, err := store.Get(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, stored.Status.State)
}

func TestSendMessageFailedTask(t *testing.T) {
	exec := &fakeExecutor{err: fmt.Errorf("boom")}
	handler, _, _ := newTestHandler(exec)

	task := handler.HandleSendMessage(context.Background(), "req-1", sendParams("T1", "ctx-1", "hello"))

	assert.Equal(t, TaskStateFailed, task.Status.State)
	assert.Empty(t, task.Artifacts)
	require.Len(t, task.History, 1)
	require.NotNil(t, task.Status.Message)
	text, ok := task.Status.Message.FirstText()
	require.True(t, ok)
	assert.Contains(t, text, "boom")
}

func TestSendMessageGeneratesContextID(t *testing.T) {
	exec := &fakeExecutor{result: reviewedResult("x")}
	handler, _, _ := newTestHandler(exec)

	task := handler.HandleSendMessage(context.Background(), "req-1", sendParams("T1", "", "hello"))

	assert.Regexp(t, `^ctx_[0-9a-f-]{36}$`, task.ContextID)
}

func TestSendMessageIntentFallback(t *testing.T) {
	exec := &fakeExecutor{result: reviewedResult("x")}
	handler, _, _ := newTestHandler(exec)

	msg := Message{
		Kind:      KindMessage,
		MessageID: core.NewID(),
		Role:      RoleUser,
		Parts:     []Part{NewDataPart(map[string]any{"k": "v"})},
		TaskID:    "T1",
	}
	handler.HandleSendMessage(context.Background(), "req-1", MessageSendParams{Message: msg})

	assert.Equal(t, "Task T1", exec.lastIntent)
}

func TestSendMessageClearsEmitterSlot(t *testing.T) {
	exec := &fakeExecutor{result: reviewedResult("x")}
	registry := NewStreamRegistry()
	emitter := NewOutputEmitter(registry)
	handler := NewRequestHandler(exec, registry, emitter)

	handler.HandleSendMessage(context.Background(), "req-1", sendParams("T1", "", "hello"))

	// Binding after the request leaves no trace: the slot is gone.
	emitter.Listener("req-1").OnProcessEvent(
		core.NewBindingEvent("run", story.KeyStory, story.Story{Text: "late"}))
	assert.Empty(t, emitter.CollectedArtifacts("req-1"))
}

func TestStreamMessageEventOrdering(t *testing.T) {
	exec := &fakeExecutor{
		bindings: []core.BindingEvent{
			core.NewBindingEvent("run", story.KeyStory, story.Story{Text: "draft"}),
		},
		result: reviewedResult("draft"),
	}
	handler, _, _ := newTestHandler(exec)

	stream, err := handler.HandleStreamMessage(context.Background(), "req-1", sendParams("T1", "ctx-1", "hello"))
	require.NoError(t, err)

	events := collectStreamEvents(t, stream)
	require.Len(t, events, 4)

	first, ok := events[0].(TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, TaskStateWorking, first.Status.State)
	text, _ := first.Status.Message.FirstText()
	assert.Equal(t, "Task started...", text)

	artifactEv, ok := events[1].(TaskArtifactUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "story", artifactEv.Artifact.Parts[0].Data["type"])

	second, ok := events[2].(TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, TaskStateWorking, second.Status.State)
	text, _ = second.Status.Message.FirstText()
	assert.Equal(t, "Processing task...", text)

	terminal, ok := events[3].(Task)
	require.True(t, ok)
	assert.Equal(t, TaskStateCompleted, terminal.Status.State)
	require.Len(t, terminal.Artifacts, 1)
	assert.Equal(t, "final_result", terminal.Artifacts[0].Parts[0].Data["type"])
	assert.Regexp(t, `^ctx_[0-9a-f-]{36}$`, terminal.ContextID)
	require.Len(t, terminal.History, 1)
}

func TestStreamMessageFailureEmitsFailedStatus(t *testing.T) {
	exec := &fakeExecutor{err: fmt.Errorf("engine down")}
	handler, _, _ := newTestHandler(exec)

	stream, err := handler.HandleStreamMessage(context.Background(), "req-1", sendParams("T1", "ctx-1", "hello"))
	require.NoError(t, err)

	events := collectStreamEvents(t, stream)
	require.Len(t, events, 2)

	terminal, ok := events[1].(TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, TaskStateFailed, terminal.Status.State)
	assert.True(t, terminal.Final)
	text, _ := terminal.Status.Message.FirstText()
	assert.Contains(t, text, "engine down")
}

// droppingTransport forwards to the wrapped transport except for the event
// kinds it is told to drop.
type droppingTransport struct {
	StreamTransport
	dropKinds map[string]bool
}

func (d *droppingTransport) Send(id string, ev Event) error {
	if d.dropKinds[ev.EventKind()] {
		return fmt.Errorf("delivery failed for %s", ev.EventKind())
	}
	return d.StreamTransport.Send(id, ev)
}

func TestStreamMessageTerminalDeliveryFailureKeepsCompletedTask(t *testing.T) {
	exec := &fakeExecutor{result: reviewedResult("x")}
	registry := NewStreamRegistry()
	transport := &droppingTransport{
		StreamTransport: registry,
		dropKinds:       map[string]bool{KindTask: true},
	}
	emitter := NewOutputEmitter(transport)
	store := NewInMemoryTaskStore()
	handler := NewRequestHandler(exec, transport, emitter, func(o *RequestHandlerOptions) {
		o.Store = store
	})

	stream, err := handler.HandleStreamMessage(context.Background(), "req-1", sendParams("T1", "ctx-1", "hi"))
	require.NoError(t, err)

	events := collectStreamEvents(t, stream)
	require.NotEmpty(t, events)

	// The stream reports the delivery failure as its terminal outcome.
	last, ok := events[len(events)-1].(TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, TaskStateFailed, last.Status.State)
	assert.True(t, last.Final)

	// The persisted task keeps the run's real outcome.
	stored, err := store.Get(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, stored.Status.State)
}

func TestStreamMessageClosesStreamOnEveryPath(t *testing.T) {
	for name, exec := range map[string]*fakeExecutor{
		"success": {result: reviewedResult("x")},
		"failure": {err: fmt.Errorf("boom")},
	} {
		t.Run(name, func(t *testing.T) {
			handler, registry, _ := newTestHandler(exec)

			stream, err := handler.HandleStreamMessage(context.Background(), "req-"+name, sendParams("T1", "", "hi"))
			require.NoError(t, err)

			collectStreamEvents(t, stream)

			select {
			case <-stream.Done():
			default:
				t.Fatal("stream not closed")
			}
			assert.Nil(t, registry.GetStream(stream.ID()))
		})
	}
}

func TestStreamMessageUsesRequestIDAsStreamID(t *testing.T) {
	exec := &fakeExecutor{result: reviewedResult("x")}
	handler, _, _ := newTestHandler(exec)

	stream, err := handler.HandleStreamMessage(context.Background(), "42", sendParams("T1", "", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "42", stream.ID())
	collectStreamEvents(t, stream)
}

func TestStreamMessageGeneratesStreamIDWithoutRequestID(t *testing.T) {
	exec := &fakeExecutor{result: reviewedResult("x")}
	handler, _, _ := newTestHandler(exec)

	stream, err := handler.HandleStreamMessage(context.Background(), "", sendParams("T1", "", "hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, stream.ID())
	collectStreamEvents(t, stream)
}
