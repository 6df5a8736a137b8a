package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValue struct{ text string }

func (fakeValue) Kind() string     { return "fake" }
func (v fakeValue) String() string { return v.text }

func newTestRunContext(ctx context.Context, emit chan<- ProcessEvent) *RunContext {
	return NewRunContext(ctx, "run-1", AgentInfo{Name: "stub", Type: "test"}, "do things", emit, nil)
}

func TestBindPublishesBindingEvent(t *testing.T) {
	emit := make(chan ProcessEvent, 1)
	rc := newTestRunContext(context.Background(), emit)

	err := rc.Bind("story", fakeValue{text: "once upon a time"})
	require.NoError(t, err)

	ev := <-emit
	binding, ok := ev.(BindingEvent)
	require.True(t, ok, "expected a BindingEvent, got %T", ev)
	assert.Equal(t, "run-1", binding.RunID())
	assert.Equal(t, "story", binding.Key)
	assert.Equal(t, fakeValue{text: "once upon a time"}, binding.Value)
	assert.False(t, binding.Timestamp().IsZero())
}

func TestBindRejectsNilValue(t *testing.T) {
	emit := make(chan ProcessEvent, 1)
	rc := newTestRunContext(context.Background(), emit)

	err := rc.Bind("story", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"story"`)
	assert.Empty(t, emit)
}

func TestBindReturnsErrOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered channel with no receiver: Bind must take the cancel path.
	rc := newTestRunContext(ctx, make(chan ProcessEvent))

	err := rc.Bind("story", fakeValue{text: "lost"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEmitEventReturnsErrOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := newTestRunContext(ctx, make(chan ProcessEvent))

	err := rc.EmitEvent(NewActionScheduledEvent("run-1", "review"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewProcessCompletedEvent(t *testing.T) {
	ok := NewProcessCompletedEvent("run-1", nil)
	assert.Empty(t, ok.Err)

	failed := NewProcessCompletedEvent("run-1", errors.New("model unavailable"))
	assert.Equal(t, "model unavailable", failed.Err)
	assert.Equal(t, "run-1", failed.RunID())
}

func TestListenerFunc(t *testing.T) {
	var received []ProcessEvent
	l := ListenerFunc(func(ev ProcessEvent) { received = append(received, ev) })

	l.OnProcessEvent(NewProcessStartedEvent("run-1", "stub", "do things"))
	l.OnProcessEvent(NewBindingEvent("run-1", "story", fakeValue{text: "x"}))

	require.Len(t, received, 2)
	started, ok := received[0].(ProcessStartedEvent)
	require.True(t, ok)
	assert.Equal(t, "stub", started.Agent)
	assert.Equal(t, "do things", started.Intent)
}

func TestOutputText(t *testing.T) {
	var nilResult *ExecutionResult
	assert.Empty(t, nilResult.OutputText())
	assert.Empty(t, (&ExecutionResult{}).OutputText())

	r := &ExecutionResult{Output: fakeValue{text: "rendered"}}
	assert.Equal(t, "rendered", r.OutputText())
}

func TestOutputTextFallsBackToFormatting(t *testing.T) {
	r := &ExecutionResult{Output: plainValue{}}
	assert.Equal(t, fmt.Sprintf("%v", plainValue{}), r.OutputText())
}

type plainValue struct{}

func (plainValue) Kind() string { return "plain" }

func TestContentText(t *testing.T) {
	c := Content{Role: "user", Parts: []Part{
		TextPart{Text: "hello "},
		DataPart{Data: map[string]any{"skip": true}},
		TextPart{Text: "world"},
	}}
	assert.Equal(t, "hello world", c.Text())

	single := NewTextContent("user", "hi")
	assert.Equal(t, "user", single.Role)
	assert.Equal(t, "hi", single.Text())
}

func TestNewIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
	assert.NotEmpty(t, NewID())
}
