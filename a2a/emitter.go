package a2a

import (
	"sync"

	"github.com/storymesh/reviewer/core"
	"github.com/storymesh/reviewer/logging"
	"github.com/storymesh/reviewer/story"
)

// OutputEmitter bridges workflow binding events onto protocol artifacts. It
// is a long-lived singleton shared by all requests; per-request delivery
// state lives in slots keyed by request id, so concurrent requests never
// observe each other's artifacts.
//
// A slot is in exactly one of two modes: live-stream (SetStreamID) pushes
// each artifact to the transport the moment it is bound, collect
// (StartCollecting) buffers artifacts for batch retrieval. Both modes are
// torn down by Clear, which callers must run unconditionally at request end.
type OutputEmitter struct {
	transport StreamTransport
	logger    logging.Logger
	metrics   *Metrics
	mu        sync.Mutex
	slots     map[string]*requestSlot
}

// requestSlot is the per-request delivery state. streamID and buffer are
// mutually exclusive under correct handler usage; the emitter nevertheless
// honors both independently.
type requestSlot struct {
	streamID string
	buffer   []Artifact
}

// OutputEmitterOptions configure an OutputEmitter.
type OutputEmitterOptions struct {
	Logger logging.Logger
	// Metrics counts emitted artifacts when set.
	Metrics *Metrics
}

// NewOutputEmitter creates an emitter delivering live artifacts through the
// given transport.
func NewOutputEmitter(transport StreamTransport, optFns ...func(o *OutputEmitterOptions)) *OutputEmitter {
	opts := OutputEmitterOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &OutputEmitter{
		transport: transport,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		slots:     make(map[string]*requestSlot),
	}
}

// SetStreamID puts the request's slot into live-stream mode. Call from the
// streaming request handler before execution starts.
func (e *OutputEmitter) SetStreamID(requestID, streamID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slot(requestID).streamID = streamID
	e.logger.Debug("set stream id", "request_id", requestID, "stream_id", streamID)
}

// StartCollecting puts the request's slot into collect mode with a fresh
// buffer. Call from the non-streaming request handler before execution
// starts.
func (e *OutputEmitter) StartCollecting(requestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slot(requestID).buffer = []Artifact{}
	e.logger.Debug("started collecting artifacts", "request_id", requestID)
}

// CollectedArtifacts returns a copy of the artifacts buffered for the
// request, empty when the slot is absent or not collecting.
func (e *OutputEmitter) CollectedArtifacts(requestID string) []Artifact {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := e.slots[requestID]
	if slot == nil || slot.buffer == nil {
		return []Artifact{}
	}
	out := make([]Artifact, len(slot.buffer))
	copy(out, slot.buffer)
	return out
}

// Clear tears down the request's slot. Idempotent; must run on every exit
// path of a request, success or failure.
func (e *OutputEmitter) Clear(requestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := e.slots[requestID]
	if slot == nil {
		return
	}
	if slot.streamID != "" {
		e.logger.Debug("clearing stream id", "request_id", requestID, "stream_id", slot.streamID)
	}
	if slot.buffer != nil {
		e.logger.Debug("clearing collected artifacts", "request_id", requestID, "count", len(slot.buffer))
	}
	delete(e.slots, requestID)
}

// Listener returns the emitter's listener view bound to one request, for
// registration with the execution engine. Events observed through the view
// are delivered into that request's slot only.
func (e *OutputEmitter) Listener(requestID string) core.ProcessListener {
	return boundListener{emitter: e, requestID: requestID}
}

// slot returns the slot for requestID, creating it when absent. Caller must
// hold e.mu.
func (e *OutputEmitter) slot(requestID string) *requestSlot {
	s := e.slots[requestID]
	if s == nil {
		s = &requestSlot{}
		e.slots[requestID] = s
	}
	return s
}

// onBindingEvent dispatches over the closed set of bound value variants.
// Story and ReviewedStory become artifacts; everything else is ignored.
func (e *OutputEmitter) onBindingEvent(requestID string, ev core.BindingEvent) {
	switch v := ev.Value.(type) {
	case story.Story:
		e.logger.Info("processing story binding event", "request_id", requestID)
		e.emitArtifact(requestID, "story", map[string]any{
			"text": v.Text,
			"type": "story",
		})
	case story.ReviewedStory:
		e.logger.Info("processing reviewed story binding event", "request_id", requestID)
		e.emitArtifact(requestID, "reviewed_story", map[string]any{
			"story":    v.Story.Text,
			"review":   v.Review,
			"reviewer": v.Reviewer,
			"type":     "reviewed_story",
		})
	}
}

// emitArtifact builds one artifact and delivers it through the channel the
// request's slot selects. With no slot active the artifact is dropped with a
// warning; that is a caller contract violation, not a runtime error.
func (e *OutputEmitter) emitArtifact(requestID, artifactType string, data map[string]any) {
	artifact := NewDataArtifact(data)
	e.metrics.ArtifactEmitted()

	e.mu.Lock()
	slot := e.slots[requestID]
	var streamID string
	var collecting bool
	if slot != nil {
		streamID = slot.streamID
		if slot.buffer != nil {
			collecting = true
			slot.buffer = append(slot.buffer, artifact)
			e.logger.Info("collected artifact",
				"request_id", requestID, "artifact_type", artifactType, "total", len(slot.buffer))
		}
	}
	e.mu.Unlock()

	if streamID != "" {
		if err := e.transport.Send(streamID, NewTaskArtifactUpdateEvent(artifact)); err != nil {
			e.logger.Error("failed to emit artifact to stream",
				"stream_id", streamID, "artifact_type", artifactType, "error", err)
			return
		}
		e.logger.Info("emitted artifact to stream",
			"stream_id", streamID, "artifact_type", artifactType)
		return
	}

	if !collecting {
		e.logger.Warn("no stream id or artifact collection active, artifact will be lost",
			"request_id", requestID, "artifact_type", artifactType)
	}
}

// boundListener is the per-request listener view over the shared emitter.
type boundListener struct {
	emitter   *OutputEmitter
	requestID string
}

// OnProcessEvent implements core.ProcessListener. Only binding events are
// relevant; other event kinds narrate lifecycle and are ignored here.
func (l boundListener) OnProcessEvent(ev core.ProcessEvent) {
	if be, ok := ev.(core.BindingEvent); ok {
		l.emitter.onBindingEvent(l.requestID, be)
	}
}
