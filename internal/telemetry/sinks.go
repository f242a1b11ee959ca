package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// Sink receives event frames. Frames below a sink's minimum severity
// are silently discarded by the sink itself.
type Sink interface {
	Emit(e Event) error
	Close() error
}

// allowed applies the per-sink minimum level. Unranked severities pass,
// so custom plugin severities are never silently lost.
func allowed(min core.Severity, sev core.Severity) bool {
	if min == "" {
		return true
	}
	if _, ok := sev.Rank(); !ok {
		return true
	}
	return sev.AtLeast(min)
}

// FileSink appends NDJSON frames to a file.
type FileSink struct {
	f   *os.File
	enc *json.Encoder
	min core.Severity
}

// NewFileSink opens (or creates) the destination file in append mode.
func NewFileSink(path string, min core.Severity) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G304: destination comes from run config
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	return &FileSink{f: f, enc: json.NewEncoder(f), min: min}, nil
}

// Emit writes one frame as a single JSON line.
func (s *FileSink) Emit(e Event) error {
	if !allowed(s.min, e.Severity) {
		return nil
	}
	return s.enc.Encode(e)
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error { return s.f.Close() }

// severityStyles colors console output per severity level.
var severityStyles = map[core.Severity]lipgloss.Style{
	core.SeverityDebug:    lipgloss.NewStyle().Faint(true),
	core.SeverityInfo:     lipgloss.NewStyle(),
	core.SeveritySuccess:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	core.SeverityWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	core.SeverityError:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	core.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
}

// ConsoleSink renders frames as human-readable lines.
type ConsoleSink struct {
	w     io.Writer
	min   core.Severity
	color bool
}

// NewConsoleSink writes styled lines to w. Color is the caller's call,
// typically from TTY detection.
func NewConsoleSink(w io.Writer, min core.Severity, color bool) *ConsoleSink {
	return &ConsoleSink{w: w, min: min, color: color}
}

// Emit renders one frame as "<type> key=value ...".
func (s *ConsoleSink) Emit(e Event) error {
	if !allowed(s.min, e.Severity) {
		return nil
	}

	line := e.Type + formatPayload(e.Payload)
	if s.color {
		if style, ok := severityStyles[e.Severity]; ok {
			line = style.Render(line)
		}
	}
	_, err := fmt.Fprintln(s.w, line)
	return err
}

// Close is a no-op; the console writer is not owned by the sink.
func (s *ConsoleSink) Close() error { return nil }

// formatPayload renders scalar payload entries as sorted key=value
// pairs. Nested containers are summarized by size to keep lines short.
func formatPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		switch v := payload[k].(type) {
		case map[string]any:
			fmt.Fprintf(&b, "{%d keys}", len(v))
		case []any:
			fmt.Fprintf(&b, "[%d items]", len(v))
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	return b.String()
}

// MultiSink fans every frame out to all member sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. A nil member is skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Emit forwards the frame to every sink; the first error wins but all
// sinks still see the frame.
func (m *MultiSink) Emit(e Event) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Emit(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all member sinks.
func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
