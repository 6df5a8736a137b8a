package a2a

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/storymesh/reviewer/logging"
)

// JSON-RPC method names served by the A2A endpoint.
const (
	MethodMessageSend   = "message/send"
	MethodMessageStream = "message/stream"
	MethodTasksGet      = "tasks/get"
	MethodTasksList     = "tasks/list"
	MethodTasksCancel   = "tasks/cancel"
)

// Server is the HTTP face of the A2A endpoint: JSON-RPC dispatch on POST /,
// agent-card discovery, health and metrics.
type Server struct {
	handler *RequestHandler
	store   TaskStore
	card    AgentCard
	logger  logging.Logger
	metrics *Metrics
	mux     http.Handler
}

// ServerOptions configure a Server.
type ServerOptions struct {
	// Store serves the tasks/* read methods. Optional; without it those
	// methods report task-not-found.
	Store   TaskStore
	Logger  logging.Logger
	Metrics *Metrics
	// MetricsHandler serves GET /metrics. Defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

// NewServer builds the HTTP server around a request handler and agent card.
func NewServer(handler *RequestHandler, card AgentCard, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{
		Logger:         logging.NoOpLogger{},
		MetricsHandler: promhttp.Handler(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		handler: handler,
		store:   opts.Store,
		card:    card,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRPC)
	mux.HandleFunc("/.well-known/agent.json", s.handleAgentCard)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", opts.MetricsHandler)

	s.mux = s.logMiddleware(corsMiddleware(s.metrics.Middleware(mux)))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, NewErrorResponse(nil, CodeParseError, "failed to read request body"))
		return
	}

	var req JSONRPCRequest
	if err := sonic.ConfigDefault.Unmarshal(body, &req); err != nil {
		s.writeResponse(w, NewErrorResponse(nil, CodeParseError, "parse error"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.writeResponse(w, NewErrorResponse(req.ID, CodeInvalidRequest, "invalid request"))
		return
	}

	switch req.Method {
	case MethodMessageSend:
		s.handleMessageSend(w, r, req)
	case MethodMessageStream:
		s.handleMessageStream(w, r, req)
	case MethodTasksGet:
		s.handleTasksGet(w, r, req)
	case MethodTasksList:
		s.handleTasksList(w, r, req)
	case MethodTasksCancel:
		s.handleTasksCancel(w, r, req)
	default:
		s.metrics.ObserveRPC(req.Method, "method_not_found")
		s.writeResponse(w, NewErrorResponse(req.ID, CodeMethodNotFound,
			fmt.Sprintf("method %s is not supported", req.Method)))
	}
}

func (s *Server) handleMessageSend(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params MessageSendParams
	if err := unmarshalParams(req.Params, &params); err != nil {
		s.metrics.ObserveRPC(req.Method, "invalid_params")
		s.writeResponse(w, NewErrorResponse(req.ID, CodeInvalidParams, err.Error()))
		return
	}

	task := s.handler.HandleSendMessage(r.Context(), req.IDString(), params)

	outcome := "completed"
	if task.Status.State == TaskStateFailed {
		outcome = "failed"
	}
	s.metrics.ObserveRPC(req.Method, outcome)
	s.writeResponse(w, NewResponse(req.ID, task))
}

func (s *Server) handleMessageStream(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params MessageSendParams
	if err := unmarshalParams(req.Params, &params); err != nil {
		s.metrics.ObserveRPC(req.Method, "invalid_params")
		s.writeResponse(w, NewErrorResponse(req.ID, CodeInvalidParams, err.Error()))
		return
	}

	stream, err := s.handler.HandleStreamMessage(r.Context(), req.IDString(), params)
	if err != nil {
		s.metrics.ObserveRPC(req.Method, "error")
		s.writeResponse(w, NewErrorResponse(req.ID, CodeInternalError, err.Error()))
		return
	}

	s.metrics.ObserveRPC(req.Method, "streaming")
	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()

	// Blocks until the handler closes the stream or the client disconnects.
	stream.ServeHTTP(w, r)
}

func (s *Server) handleTasksGet(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params TaskQueryParams
	if err := unmarshalParams(req.Params, &params); err != nil {
		s.writeResponse(w, NewErrorResponse(req.ID, CodeInvalidParams, err.Error()))
		return
	}
	if params.HistoryLength != nil && *params.HistoryLength < 0 {
		s.writeResponse(w, NewErrorResponse(req.ID, CodeInvalidParams, "historyLength must not be negative"))
		return
	}
	if s.store == nil {
		s.writeResponse(w, NewErrorResponse(req.ID, CodeTaskNotFound, "task not found: "+params.ID))
		return
	}

	task, err := s.store.Get(r.Context(), params.ID)
	if err != nil {
		s.metrics.ObserveRPC(req.Method, "not_found")
		s.writeResponse(w, NewErrorResponse(req.ID, CodeTaskNotFound, err.Error()))
		return
	}

	if params.HistoryLength != nil && len(task.History) > *params.HistoryLength {
		task.History = task.History[len(task.History)-*params.HistoryLength:]
	}

	s.metrics.ObserveRPC(req.Method, "ok")
	s.writeResponse(w, NewResponse(req.ID, task))
}

func (s *Server) handleTasksList(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	if s.store == nil {
		s.writeResponse(w, NewResponse(req.ID, []Task{}))
		return
	}
	tasks, err := s.store.List(r.Context())
	if err != nil {
		s.writeResponse(w, NewErrorResponse(req.ID, CodeInternalError, err.Error()))
		return
	}
	s.metrics.ObserveRPC(req.Method, "ok")
	s.writeResponse(w, NewResponse(req.ID, tasks))
}

func (s *Server) handleTasksCancel(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	var params TaskIDParams
	if err := unmarshalParams(req.Params, &params); err != nil {
		s.writeResponse(w, NewErrorResponse(req.ID, CodeInvalidParams, err.Error()))
		return
	}
	if s.store == nil {
		s.writeResponse(w, NewErrorResponse(req.ID, CodeTaskNotFound, "task not found: "+params.ID))
		return
	}

	task, err := s.store.Get(r.Context(), params.ID)
	if err != nil {
		s.writeResponse(w, NewErrorResponse(req.ID, CodeTaskNotFound, err.Error()))
		return
	}
	if task.Status.State.Terminal() {
		s.metrics.ObserveRPC(req.Method, "not_cancelable")
		s.writeResponse(w, NewErrorResponse(req.ID, CodeTaskNotCancelable,
			fmt.Sprintf("task %s is already %s", task.ID, task.Status.State)))
		return
	}

	task.Status = NewTaskStatus(TaskStateCanceled, task.ID, task.ContextID, "Task canceled")
	if err := s.store.Save(r.Context(), task); err != nil {
		s.writeResponse(w, NewErrorResponse(req.ID, CodeInternalError, err.Error()))
		return
	}
	s.metrics.ObserveRPC(req.Method, "ok")
	s.writeResponse(w, NewResponse(req.ID, task))
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeResponse(w http.ResponseWriter, resp JSONRPCResponse) {
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.ConfigDefault.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unmarshalParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing params")
	}
	if err := sonic.ConfigDefault.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
