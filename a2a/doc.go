// Package a2a implements the Agent-to-Agent (A2A) protocol surface of the
// reviewer service: the JSON-RPC request handler, the per-request output
// emitter that bridges workflow binding events onto protocol artifacts, the
// SSE streaming transport and task persistence.
//
// The package owns the wire types (Task, Message, Artifact, streaming
// events) and exposes an http.Handler serving message/send, message/stream
// and the tasks/* methods plus agent-card discovery.
package a2a
