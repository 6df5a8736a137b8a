package a2a

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/storymesh/reviewer/logging"
)

// StreamTransport manages per-request streaming connections. The request
// handler creates a stream per streaming request, pushes events into it and
// closes it when processing ends.
type StreamTransport interface {
	CreateStream(id string) (*Stream, error)
	Send(id string, ev Event) error
	Close(id string)
}

// Stream is one streaming connection. Events pushed via Send are buffered
// until a consumer drains them, either through ServeHTTP (SSE) or directly
// from Events in tests.
type Stream struct {
	id     string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func newStream(id string, buffer int) *Stream {
	return &Stream{
		id:     id,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// ID returns the stream identifier.
func (s *Stream) ID() string { return s.id }

// Events exposes the buffered event channel for direct consumption.
func (s *Stream) Events() <-chan Event { return s.events }

// Done is closed when the stream is closed.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Send enqueues an event. It fails once the stream is closed or when the
// buffer is full (a consumer that stopped draining).
func (s *Stream) Send(ev Event) error {
	select {
	case <-s.done:
		return fmt.Errorf("stream %s is closed", s.id)
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return fmt.Errorf("stream %s is closed", s.id)
	default:
		return fmt.Errorf("stream %s buffer full, event dropped", s.id)
	}
}

// Close marks the stream finished. Idempotent. Buffered events remain
// consumable until drained.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}

// ServeHTTP pumps stream events to the client as server-sent events until
// the stream closes or the client disconnects. Each event is written as an
// SSE frame whose event name is the protocol kind discriminator.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // For Nginx proxy
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev := <-s.events:
			if err := writeSSE(w, flusher, ev); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		case <-s.done:
			// Drain events buffered before Close.
			for {
				select {
				case ev := <-s.events:
					if err := writeSSE(w, flusher, ev); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev Event) error {
	data, err := sonic.ConfigDefault.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventKind(), data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// StreamRegistry is the in-process StreamTransport: a registry of active
// streams keyed by stream id.
type StreamRegistry struct {
	streams map[string]*Stream
	buffer  int
	logger  logging.Logger
	mu      sync.RWMutex
}

// StreamRegistryOptions configure a StreamRegistry.
type StreamRegistryOptions struct {
	// BufferSize bounds the number of undelivered events per stream.
	BufferSize int
	Logger     logging.Logger
}

// NewStreamRegistry creates an empty registry.
func NewStreamRegistry(optFns ...func(o *StreamRegistryOptions)) *StreamRegistry {
	opts := StreamRegistryOptions{
		BufferSize: 64,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &StreamRegistry{
		streams: make(map[string]*Stream),
		buffer:  opts.BufferSize,
		logger:  opts.Logger,
	}
}

// CreateStream registers a new stream under the given id, closing and
// replacing any stream already registered there.
func (r *StreamRegistry) CreateStream(id string) (*Stream, error) {
	if id == "" {
		return nil, fmt.Errorf("stream id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.streams[id]; ok {
		r.logger.Warn("replacing existing stream", "stream_id", id)
		existing.Close()
	}

	stream := newStream(id, r.buffer)
	r.streams[id] = stream
	r.logger.Debug("stream created", "stream_id", id)

	return stream, nil
}

// GetStream returns the stream registered under id, or nil.
func (r *StreamRegistry) GetStream(id string) *Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.streams[id]
}

// Send pushes an event to the stream registered under id.
func (r *StreamRegistry) Send(id string, ev Event) error {
	r.mu.RLock()
	stream := r.streams[id]
	r.mu.RUnlock()

	if stream == nil {
		return fmt.Errorf("no active stream %s", id)
	}
	return stream.Send(ev)
}

// Close closes the stream registered under id and removes it. Closing an
// unknown id is a no-op.
func (r *StreamRegistry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stream, ok := r.streams[id]; ok {
		stream.Close()
		delete(r.streams, id)
		r.logger.Debug("stream closed", "stream_id", id)
	}
}
