package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabmap-io/tabmap/pkg/core"
)

func TestNormalizePayloadDropsNullsAndEmpties(t *testing.T) {
	payload := map[string]any{
		"keep":    "value",
		"gone":    nil,
		"empty":   map[string]any{},
		"hollow":  map[string]any{"inner": nil},
		"list":    []any{"a", nil},
		"nothing": []any{},
		"counts":  map[string]any{"rows": 3},
	}

	got := NormalizePayload(payload, "")
	assert.Equal(t, map[string]any{
		"keep":   "value",
		"list":   []any{"a"},
		"counts": map[string]any{"rows": 3},
	}, got)
}

func TestNormalizePayloadRelativizesPaths(t *testing.T) {
	root := filepath.FromSlash("/data/runs/run-1")
	payload := map[string]any{
		"source_file":  filepath.Join(root, "in", "a.csv"),
		"output_path":  filepath.Join(root, "out", "result.json"),
		"output_paths": []string{filepath.Join(root, "out", "x.json"), filepath.FromSlash("/elsewhere/y.json")},
		"unrelated":    filepath.Join(root, "in", "a.csv"),
	}

	got := NormalizePayload(payload, root)
	assert.Equal(t, filepath.FromSlash("in/a.csv"), got["source_file"])
	assert.Equal(t, filepath.FromSlash("out/result.json"), got["output_path"])
	assert.Equal(t, []any{filepath.FromSlash("out/x.json"), filepath.FromSlash("/elsewhere/y.json")}, got["output_paths"])
	// Only known path-bearing keys are rewritten.
	assert.Equal(t, filepath.Join(root, "in", "a.csv"), got["unrelated"])
}

func TestFileSinkWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	sink, err := NewFileSink(path, core.SeverityDebug)
	require.NoError(t, err)

	em := NewEmitter(ScopeEngine, "", sink, nil)
	em.Emit("start", core.SeverityInfo, map[string]any{"run_id": "r1"})
	em.Emit("complete", core.SeveritySuccess, map[string]any{"status": "completed"})
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, events, 2)
	assert.Equal(t, "engine.start", events[0].Type)
	assert.Equal(t, "engine.complete", events[1].Type)
	assert.NotEmpty(t, events[0].EventID)
	assert.NotEqual(t, events[0].EventID, events[1].EventID)
	assert.False(t, events[0].CreatedAt.IsZero())
	assert.Equal(t, "r1", events[0].Payload["run_id"])
}

func TestSinkMinimumLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, core.SeverityWarning, false)

	em := NewEmitter(ScopeEngine, "", sink, nil)
	em.Emit("phase.start", core.SeverityInfo, nil)
	em.Emit("trouble", core.SeverityWarning, map[string]any{"code": "x"})
	em.Emit("worse", core.SeverityCritical, nil)

	out := buf.String()
	assert.NotContains(t, out, "engine.phase.start")
	assert.Contains(t, out, "engine.trouble")
	assert.Contains(t, out, "code=x")
	assert.Contains(t, out, "engine.worse")
}

func TestUnrankedSeverityPassesFilter(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, core.SeverityWarning, false)

	em := NewEmitter(ScopeConfig, "", sink, nil)
	em.Emit("custom", core.Severity("bizarre"), nil)
	assert.Contains(t, buf.String(), "config.custom")
}

func TestMultiSinkFanOut(t *testing.T) {
	var a, b bytes.Buffer
	multi := NewMultiSink(
		NewConsoleSink(&a, core.SeverityDebug, false),
		NewConsoleSink(&b, core.SeverityError, false),
		nil,
	)

	em := NewEmitter(ScopeEngine, "", multi, nil)
	em.Emit("table.summary", core.SeverityInfo, nil)

	assert.Contains(t, a.String(), "engine.table.summary")
	assert.Empty(t, b.String())
}

func TestConsoleLineScopeless(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, core.SeverityDebug, false)

	em := NewEmitter("", "", sink, nil)
	em.Emit(TypeConsoleLine, core.SeverityInfo, map[string]any{"line": "hello"})
	assert.Contains(t, buf.String(), "console.line")
	assert.Contains(t, buf.String(), "line=hello")
}
