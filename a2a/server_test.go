package a2a

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/storymesh/reviewer/core"
	"github.com/storymesh/reviewer/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAgentCard() AgentCard {
	return AgentCard{
		Name:               "story-reviewer",
		Description:        "Writes and reviews short stories",
		URL:                "http://localhost:8080",
		Version:            "1.0.0",
		Capabilities:       AgentCapabilities{Streaming: true},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}

func newTestServer(t *testing.T, exec core.Executor) (*httptest.Server, *InMemoryTaskStore) {
	t.Helper()
	registry := NewStreamRegistry()
	emitter := NewOutputEmitter(registry)
	store := NewInMemoryTaskStore()
	handler := NewRequestHandler(exec, registry, emitter, func(o *RequestHandlerOptions) {
		o.Store = store
	})
	srv := NewServer(handler, testAgentCard(), func(o *ServerOptions) {
		o.Store = store
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, store
}

func rpcCall(t *testing.T, url string, id any, method string, params any) JSONRPCResponse {
	t.Helper()
	payload := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		payload["params"] = params
	}
	body, err := sonic.ConfigDefault.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp JSONRPCResponse
	require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&rpcResp))
	return rpcResp
}

func decodeResult[T any](t *testing.T, resp JSONRPCResponse) T {
	t.Helper()
	raw, err := sonic.ConfigDefault.Marshal(resp.Result)
	require.NoError(t, err)
	var out T
	require.NoError(t, sonic.ConfigDefault.Unmarshal(raw, &out))
	return out
}

func TestServerMessageSend(t *testing.T) {
	exec := &fakeExecutor{
		bindings: []core.BindingEvent{
			core.NewBindingEvent("run", story.KeyStory, story.Story{Text: "draft"}),
		},
		result: reviewedResult("draft"),
	}
	ts, store := newTestServer(t, exec)

	resp := rpcCall(t, ts.URL, 1, MethodMessageSend, MessageSendParams{
		Message: NewUserMessage("T1", "", "Tell me a story"),
	})
	require.Nil(t, resp.Error)

	task := decodeResult[Task](t, resp)
	assert.Equal(t, "T1", task.ID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	assert.Regexp(t, `^ctx_[0-9a-f-]{36}$`, task.ContextID)
	require.Len(t, task.Artifacts, 2)
	assert.Equal(t, "story", task.Artifacts[0].Parts[0].Data["type"])
	assert.Equal(t, "final_result", task.Artifacts[1].Parts[0].Data["type"])

	// The terminal task is retrievable afterwards.
	getResp := rpcCall(t, ts.URL, 2, MethodTasksGet, TaskQueryParams{ID: "T1"})
	require.Nil(t, getResp.Error)
	got := decodeResult[Task](t, getResp)
	assert.Equal(t, task.ContextID, got.ContextID)

	stored, err := store.Get(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, stored.Status.State)
}

func TestServerMessageSendFailure(t *testing.T) {
	ts, _ := newTestServer(t, &fakeExecutor{err: fmt.Errorf("boom")})

	resp := rpcCall(t, ts.URL, 1, MethodMessageSend, MessageSendParams{
		Message: NewUserMessage("T1", "", "hello"),
	})
	require.Nil(t, resp.Error)

	task := decodeResult[Task](t, resp)
	assert.Equal(t, TaskStateFailed, task.Status.State)
	assert.Empty(t, task.Artifacts)
}

func TestServerMessageStreamSSE(t *testing.T) {
	exec := &fakeExecutor{
		bindings: []core.BindingEvent{
			core.NewBindingEvent("run", story.KeyStory, story.Story{Text: "draft"}),
		},
		result: reviewedResult("draft"),
	}
	ts, _ := newTestServer(t, exec)

	body, err := sonic.ConfigDefault.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      "stream-1",
		"method":  MethodMessageStream,
		"params":  MessageSendParams{Message: NewUserMessage("T1", "ctx-1", "hello")},
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var eventNames []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			eventNames = append(eventNames, name)
		}
	}
	assert.Equal(t, []string{
		KindStatusUpdate,
		KindArtifactUpdate,
		KindStatusUpdate,
		KindTask,
	}, eventNames)
}

func TestServerParseError(t *testing.T) {
	ts, _ := newTestServer(t, &fakeExecutor{result: reviewedResult("x")})

	resp, err := http.Post(ts.URL, "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp JSONRPCResponse
	require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&rpcResp))
	require.NotNil(t, rpcResp.Error)
	assert.Equal(t, CodeParseError, rpcResp.Error.Code)
}

func TestServerMethodNotFound(t *testing.T) {
	ts, _ := newTestServer(t, &fakeExecutor{result: reviewedResult("x")})

	resp := rpcCall(t, ts.URL, 1, "tasks/resubscribe", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestServerInvalidParams(t *testing.T) {
	ts, _ := newTestServer(t, &fakeExecutor{result: reviewedResult("x")})

	resp := rpcCall(t, ts.URL, 1, MethodMessageSend, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestServerTasksGetUnknown(t *testing.T) {
	ts, _ := newTestServer(t, &fakeExecutor{result: reviewedResult("x")})

	resp := rpcCall(t, ts.URL, 1, MethodTasksGet, TaskQueryParams{ID: "missing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTaskNotFound, resp.Error.Code)
}

func TestServerTasksGetHistoryLength(t *testing.T) {
	ts, store := newTestServer(t, &fakeExecutor{result: reviewedResult("x")})
	require.NoError(t, store.Save(context.Background(), completedTask("T1")))

	// A negative historyLength is rejected, not served.
	resp := rpcCall(t, ts.URL, 1, MethodTasksGet, map[string]any{"id": "T1", "historyLength": -1})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	// Zero trims the history away entirely.
	resp = rpcCall(t, ts.URL, 2, MethodTasksGet, map[string]any{"id": "T1", "historyLength": 0})
	require.Nil(t, resp.Error)
	task := decodeResult[Task](t, resp)
	assert.Empty(t, task.History)

	// A length beyond the stored history leaves it untouched.
	resp = rpcCall(t, ts.URL, 3, MethodTasksGet, map[string]any{"id": "T1", "historyLength": 5})
	require.Nil(t, resp.Error)
	task = decodeResult[Task](t, resp)
	assert.Len(t, task.History, 1)
}

func TestServerTasksListAndCancel(t *testing.T) {
	ts, store := newTestServer(t, &fakeExecutor{result: reviewedResult("x")})

	working := completedTask("T1")
	working.Status.State = TaskStateWorking
	require.NoError(t, store.Save(context.Background(), working))

	listResp := rpcCall(t, ts.URL, 1, MethodTasksList, nil)
	require.Nil(t, listResp.Error)
	tasks := decodeResult[[]Task](t, listResp)
	require.Len(t, tasks, 1)

	cancelResp := rpcCall(t, ts.URL, 2, MethodTasksCancel, TaskIDParams{ID: "T1"})
	require.Nil(t, cancelResp.Error)
	canceled := decodeResult[Task](t, cancelResp)
	assert.Equal(t, TaskStateCanceled, canceled.Status.State)

	// A terminal task cannot be canceled again.
	again := rpcCall(t, ts.URL, 3, MethodTasksCancel, TaskIDParams{ID: "T1"})
	require.NotNil(t, again.Error)
	assert.Equal(t, CodeTaskNotCancelable, again.Error.Code)
}

func TestServerAgentCard(t *testing.T) {
	ts, _ := newTestServer(t, &fakeExecutor{result: reviewedResult("x")})

	resp, err := http.Get(ts.URL + "/.well-known/agent.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var card AgentCard
	require.NoError(t, sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, "story-reviewer", card.Name)
	assert.True(t, card.Capabilities.Streaming)
}

func TestServerHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeExecutor{result: reviewedResult("x")})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
