// Package telemetry wraps engine and plugin payloads into versioned
// event frames and fans them out to sinks as an NDJSON stream.
package telemetry

import (
	"time"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// Emitter scopes. Engine-owned lifecycle events are namespaced apart
// from plugin-emitted custom events so the two can never collide.
const (
	ScopeEngine = "engine"
	ScopeConfig = "config"
)

// TypeConsoleLine carries forwarded plugin print() output. It is the
// one frame type emitted outside the engine/config scopes.
const TypeConsoleLine = "console.line"

// Event is one versioned telemetry frame: one JSON object per NDJSON
// line. Severity travels in the payload; the envelope copy only drives
// per-sink level filtering.
type Event struct {
	Type      string         `json:"type"`
	EventID   string         `json:"event_id"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload,omitempty"`

	Severity core.Severity `json:"-"`
}
