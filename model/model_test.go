package model

import (
	"context"
	"testing"

	"github.com/storymesh/reviewer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModelCannedResponse(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hello", "world")

	text, err := GenerateText(context.Background(), m, Request{
		Contents: []core.Content{core.NewTextContent("user", "hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "world", text)
}

func TestMockModelDefaultResponse(t *testing.T) {
	m := NewMockModel("mock", "mock")

	text, err := GenerateText(context.Background(), m, Request{
		Contents: []core.Content{core.NewTextContent("user", "anything")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: anything", text)
}

func TestMockModelStreaming(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hi", "ok")

	respCh, errCh := m.Generate(context.Background(), Request{
		Contents: []core.Content{core.NewTextContent("user", "hi")},
		Stream:   true,
	})

	var partials int
	var final string
	for resp := range respCh {
		if resp.Partial {
			partials++
			continue
		}
		final = resp.Text()
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, 2, partials)
	assert.Equal(t, "ok", final)
}

func TestGenerateTextNoContents(t *testing.T) {
	m := NewMockModel("mock", "mock")

	_, err := GenerateText(context.Background(), m, Request{})
	assert.Error(t, err)
}
