package story

import (
	"context"
	"testing"

	"github.com/storymesh/reviewer/core"
	"github.com/storymesh/reviewer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel returns queued completions in order, regardless of prompt.
type scriptedModel struct {
	replies []string
	calls   int
}

func (m *scriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	reply := m.replies[m.calls%len(m.replies)]
	m.calls++
	respCh <- model.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: reply}}},
		FinishReason: "stop",
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted", Provider: "mock"} }

func TestWriterUsesIntent(t *testing.T) {
	llm := &scriptedModel{replies: []string{"Once upon a time"}}
	w := NewWriter(llm)

	s, err := w.Write(context.Background(), "Tell me a story about caterpillars")
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time", s.Text)
	assert.Equal(t, "story", s.Kind())
}

func TestReviewerAttributesPersona(t *testing.T) {
	llm := &scriptedModel{replies: []string{"Great"}}
	r := NewReviewer(llm)

	reviewed, err := r.Review(context.Background(), Story{Text: "S"})
	require.NoError(t, err)
	assert.Equal(t, "S", reviewed.Story.Text)
	assert.Equal(t, "Great", reviewed.Review)
	assert.Equal(t, "Media Book Review", reviewed.Reviewer)
	assert.Equal(t, "reviewed_story", reviewed.Kind())
}

func TestWriteAndReviewBindsInOrder(t *testing.T) {
	llm := &scriptedModel{replies: []string{"draft text", "review text"}}
	agent := NewWriteAndReview(llm)

	emit := make(chan core.ProcessEvent, 8)
	rc := core.NewRunContext(context.Background(), core.NewID(), core.AgentInfo{Name: agent.Name()}, "hello", emit, nil)

	require.NoError(t, agent.Run(rc))
	close(emit)

	var bindings []core.BindingEvent
	for ev := range emit {
		if be, ok := ev.(core.BindingEvent); ok {
			bindings = append(bindings, be)
		}
	}
	require.Len(t, bindings, 2)

	assert.Equal(t, KeyStory, bindings[0].Key)
	draft, ok := bindings[0].Value.(Story)
	require.True(t, ok)
	assert.Equal(t, "draft text", draft.Text)

	assert.Equal(t, KeyReviewedStory, bindings[1].Key)
	reviewed, ok := bindings[1].Value.(ReviewedStory)
	require.True(t, ok)
	assert.Equal(t, "draft text", reviewed.Story.Text)
	assert.Equal(t, "review text", reviewed.Review)
}

func TestWriteAndReviewPropagatesWriteError(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	agent := NewWriteAndReview(llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emit := make(chan core.ProcessEvent) // unbuffered: Bind would block without the pump
	rc := core.NewRunContext(ctx, core.NewID(), core.AgentInfo{Name: agent.Name()}, "hello", emit, nil)

	assert.Error(t, agent.Run(rc))
}
