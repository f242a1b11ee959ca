package telemetry

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// Emitter builds event frames for one scope and pushes them to a sink.
// The engine holds one emitter per scope over the same sink fan-out.
type Emitter struct {
	scope   string
	runRoot string
	sink    Sink
	logger  *slog.Logger
}

// NewEmitter creates an emitter. Known path-bearing payload keys are
// relativized against runRoot.
func NewEmitter(scope, runRoot string, sink Sink, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Emitter{scope: scope, runRoot: runRoot, sink: sink, logger: logger}
}

// Emit wraps a payload into an event frame and pushes it out. Telemetry
// is best-effort: sink failures are logged, never propagated, so a full
// disk cannot abort a run.
func (e *Emitter) Emit(name string, sev core.Severity, payload map[string]any) {
	eventType := name
	if e.scope != "" {
		eventType = e.scope + "." + name
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if _, ok := payload["severity"]; !ok && sev != "" {
		payload["severity"] = string(sev)
	}

	evt := Event{
		Type:      eventType,
		EventID:   uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Payload:   NormalizePayload(payload, e.runRoot),
		Severity:  sev,
	}

	if err := e.sink.Emit(evt); err != nil {
		e.logger.Warn("telemetry sink failed", "type", eventType, "error", err)
	}
}
