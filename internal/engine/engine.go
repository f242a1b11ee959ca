// Package engine orchestrates one ingestion run: manifest and plugins
// in, normalized tables through mapping and validation, summaries,
// telemetry and the artifact out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tabmap-io/tabmap/internal/artifact"
	"github.com/tabmap-io/tabmap/internal/extract"
	"github.com/tabmap-io/tabmap/internal/manifest"
	"github.com/tabmap-io/tabmap/internal/mapping"
	"github.com/tabmap-io/tabmap/internal/plugin"
	"github.com/tabmap-io/tabmap/internal/registry"
	"github.com/tabmap-io/tabmap/internal/summary"
	"github.com/tabmap-io/tabmap/internal/telemetry"
	"github.com/tabmap-io/tabmap/pkg/core"
)

// Failure codes carried on RunError and the artifact.
const (
	CodeManifestInvalid  = "manifest_invalid"
	CodePluginLoadFailed = "plugin_load_failed"
	CodeHookFailed       = "hook_failed"
	CodeInputError       = "input_error"
	CodeDetectorFailed   = "detector_failed"
	CodeCanceled         = "canceled"
	CodeInternal         = "internal"
)

// Config configures one engine instance.
type Config struct {
	// PluginDir is the config package location, resolved per the
	// package layout rules.
	PluginDir string
	// ManifestPath is the schema manifest YAML.
	ManifestPath string
	// Inputs are the source files to process, in order.
	Inputs []string
	// RootDir is the run root; telemetry and artifact paths are
	// relativized against it. Defaults to the current directory.
	RootDir string
	// OutputDir is where run outputs land. Defaults to RootDir.
	OutputDir string
	// ArtifactPath overrides the artifact destination. Defaults to
	// OutputDir/artifact.json.
	ArtifactPath string
	// Metadata is host-supplied run identity (workspace, build id).
	Metadata map[string]string
	// Sinks receive telemetry frames. The engine does not close them.
	Sinks []telemetry.Sink
	// Logger is the structured logger. Defaults to discard.
	Logger *slog.Logger
}

// Engine runs ingestion. One Engine may serve many runs; each Run
// builds its own registry, aggregator and artifact, so runs never
// share plugin state.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.RootDir
	}
	if cfg.ArtifactPath == "" {
		cfg.ArtifactPath = filepath.Join(cfg.OutputDir, "artifact.json")
	}
	return &Engine{cfg: cfg, logger: logger}
}

// run carries the per-run state threaded through the stages.
type run struct {
	ctx      core.RunContext
	events   *telemetry.Emitter
	config   *telemetry.Emitter
	console  *telemetry.Emitter
	artifact *artifact.Writer
	agg      *summary.Aggregator
	registry *registry.Registry
	catalog  *core.FieldCatalog
}

// Run executes one ingestion run and returns its finalized summaries.
// Configuration and input errors propagate after the failure has been
// recorded on the artifact and telemetry; validation issues never do.
func (e *Engine) Run(ctx context.Context) (*summary.Result, error) {
	runCtx := core.RunContext{
		RunID:     uuid.NewString(),
		Metadata:  e.cfg.Metadata,
		StartedAt: time.Now().UTC(),
		RootDir:   e.cfg.RootDir,
		OutputDir: e.cfg.OutputDir,
	}
	logger := e.logger.With("run_id", runCtx.RunID)

	sink := telemetry.NewMultiSink(e.cfg.Sinks...)
	r := &run{
		ctx:      runCtx,
		events:   telemetry.NewEmitter(telemetry.ScopeEngine, runCtx.RootDir, sink, logger),
		config:   telemetry.NewEmitter(telemetry.ScopeConfig, runCtx.RootDir, sink, logger),
		console:  telemetry.NewEmitter("", runCtx.RootDir, sink, logger),
		artifact: artifact.NewWriter(e.cfg.ArtifactPath, runCtx.RootDir, logger),
	}

	res, err := e.execute(ctx, r, logger)
	if err != nil {
		return e.fail(r, logger, res, err)
	}
	return res, nil
}

// execute runs the stages in order, returning the first propagating
// error untouched for fail to classify.
func (e *Engine) execute(ctx context.Context, r *run, logger *slog.Logger) (*summary.Result, error) {
	r.events.Emit("phase.start", core.SeverityInfo, map[string]any{
		"phase": "configuration", "run_id": r.ctx.RunID,
	})

	m, err := manifest.Load(e.cfg.ManifestPath)
	if err != nil {
		return nil, &core.RunError{Code: CodeManifestInvalid, Stage: "manifest", Message: err.Error()}
	}
	r.catalog = core.NewFieldCatalog(m)

	loader := plugin.NewLoader(
		plugin.WithLogger(logger),
		plugin.WithPrint(func(module, line string) {
			r.console.Emit(telemetry.TypeConsoleLine, core.SeverityInfo, map[string]any{
				"module": module,
				"line":   line,
			})
		}),
	)
	reg, modules, err := loader.Load(e.cfg.PluginDir)
	if err != nil {
		return nil, &core.RunError{Code: CodePluginLoadFailed, Stage: "plugins", Message: err.Error()}
	}
	r.registry = reg
	r.agg = summary.New(r.ctx, r.catalog, logger)

	moduleNames := make([]string, len(modules))
	for i, mod := range modules {
		moduleNames[i] = mod.Path
	}
	r.artifact.Start(r.ctx, m, e.cfg.PluginDir, moduleNames)

	r.events.Emit("start", core.SeverityInfo, map[string]any{
		"run_id":    r.ctx.RunID,
		"schema_id": m.SchemaID,
		"modules":   len(modules),
		"inputs":    len(e.cfg.Inputs),
	})
	r.events.Emit("phase.complete", core.SeverityInfo, map[string]any{
		"phase": "configuration", "modules": len(modules),
	})

	if err := e.runHooks(r, registry.HookRunStart, map[string]any{
		"run_id":    r.ctx.RunID,
		"schema_id": m.SchemaID,
		"inputs":    len(e.cfg.Inputs),
	}); err != nil {
		return nil, err
	}

	processed, err := e.process(ctx, r, logger)
	if err != nil {
		return nil, err
	}

	return e.finalize(r, processed)
}

// process extracts, maps and validates every input file.
func (e *Engine) process(ctx context.Context, r *run, logger *slog.Logger) ([]string, error) {
	r.events.Emit("phase.start", core.SeverityInfo, map[string]any{
		"phase": "processing", "inputs": len(e.cfg.Inputs),
	})

	mapper := mapping.New(r.registry, mapping.WithLogger(logger))
	extractor := extract.New(logger)

	var processed []string
	for _, input := range e.cfg.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, &core.RunError{Code: CodeCanceled, Stage: "processing", Message: err.Error()}
		}

		tables, err := extractor.ExtractFile(input)
		if err != nil {
			return nil, &core.RunError{Code: CodeInputError, Stage: "extract", Message: err.Error()}
		}

		for i := range tables {
			t := &tables[i]
			if err := e.processTable(r, mapper, t); err != nil {
				return nil, err
			}
		}
		processed = append(processed, input)
		logger.Debug("file processed", "source_file", input, "tables", len(tables))
	}

	r.events.Emit("phase.complete", core.SeverityInfo, map[string]any{
		"phase": "processing", "files": len(processed),
	})
	return processed, nil
}

// processTable maps one table, runs row detectors, aggregates and
// records it.
func (e *Engine) processTable(r *run, mapper *mapping.Mapper, t *core.NormalizedTable) error {
	cols, err := mapper.MapColumns(t.Header, t.Rows, r.catalog)
	if err != nil {
		return &core.RunError{Code: CodeDetectorFailed, Stage: "mapping", Message: err.Error()}
	}
	t.Columns = cols

	issues, err := e.checkRows(r, t)
	if err != nil {
		return &core.RunError{Code: CodeDetectorFailed, Stage: "row_detectors", Message: err.Error()}
	}
	t.Issues = append(t.Issues, issues...)

	ts, err := r.agg.AddTable(t)
	if err != nil {
		return &core.RunError{Code: CodeInternal, Stage: "aggregate", Message: err.Error()}
	}

	r.events.Emit("table.summary", summarySeverity(ts.Validation), map[string]any{
		"table_id":    ts.TableID,
		"sheet_id":    ts.SheetID,
		"file_id":     ts.FileID,
		"source_file": ts.SourceFile,
		"sheet_name":  ts.SheetName,
		"rows":        ts.Counts.Rows.Total,
		"columns":     ts.Counts.Columns.Total,
		"mapped":      ts.Counts.Fields.Mapped,
		"unmapped":    ts.Counts.Fields.Unmapped,
		"issues":      ts.Validation.Total,
	})
	r.artifact.RecordTable(t)

	return e.runHooks(r, registry.HookTable, map[string]any{
		"run_id":      r.ctx.RunID,
		"table_id":    ts.TableID,
		"source_file": ts.SourceFile,
		"sheet_name":  ts.SheetName,
		"rows":        ts.Counts.Rows.Total,
		"mapped":      ts.Counts.Fields.Mapped,
		"issues":      ts.Validation.Total,
	})
}

// finalize derives summaries, emits the summary events and seals the
// artifact.
func (e *Engine) finalize(r *run, processed []string) (*summary.Result, error) {
	r.events.Emit("phase.start", core.SeverityInfo, map[string]any{"phase": "finalize"})

	completed := time.Now().UTC()
	outputPaths := []string{e.cfg.ArtifactPath}

	res, err := r.agg.Finalize(core.RunStatusCompleted, nil, completed, outputPaths, processed)
	if err != nil {
		return nil, &core.RunError{Code: CodeInternal, Stage: "finalize", Message: err.Error()}
	}

	for _, s := range res.Sheets {
		r.events.Emit("sheet.summary", summarySeverity(s.Validation), map[string]any{
			"sheet_id":    s.SheetID,
			"file_id":     s.FileID,
			"source_file": s.SourceFile,
			"sheet_name":  s.SheetName,
			"tables":      s.Tables,
			"rows":        s.Counts.Rows.Total,
			"mapped":      s.Counts.Fields.Mapped,
			"issues":      s.Validation.Total,
		})
	}
	for _, f := range res.Files {
		r.events.Emit("file.summary", summarySeverity(f.Validation), map[string]any{
			"file_id":     f.FileID,
			"source_file": f.SourceFile,
			"sheets":      f.Sheets,
			"tables":      f.Tables,
			"rows":        f.Counts.Rows.Total,
			"mapped":      f.Counts.Fields.Mapped,
			"issues":      f.Validation.Total,
		})
	}
	r.events.Emit("run.summary", summarySeverity(res.Run.Validation), map[string]any{
		"run_id":   res.Run.RunID,
		"files":    res.Run.Files,
		"sheets":   res.Run.Sheets,
		"tables":   res.Run.Tables,
		"rows":     res.Run.Counts.Rows.Total,
		"mapped":   res.Run.Counts.Fields.Mapped,
		"unmapped": res.Run.Counts.Fields.Unmapped,
		"issues":   res.Run.Validation.Total,
	})

	if err := e.runHooks(r, registry.HookRunComplete, map[string]any{
		"run_id": r.ctx.RunID,
		"files":  res.Run.Files,
		"tables": res.Run.Tables,
		"issues": res.Run.Validation.Total,
	}); err != nil {
		return res, err
	}

	r.events.Emit("complete", core.SeveritySuccess, map[string]any{
		"run_id":          r.ctx.RunID,
		"status":          string(core.RunStatusCompleted),
		"tables":          res.Run.Tables,
		"output_paths":    outputPaths,
		"processed_files": processed,
	})

	if err := r.artifact.MarkSuccess(outputPaths, processed, completed); err != nil {
		return res, &core.RunError{Code: CodeInternal, Stage: "artifact", Message: err.Error()}
	}
	if err := r.artifact.Flush(); err != nil {
		return res, &core.RunError{Code: CodeInternal, Stage: "artifact", Message: err.Error()}
	}
	return res, nil
}

// fail records a run failure on the aggregator, telemetry and the
// artifact, then propagates the original error. Summaries aggregated
// before the failure survive in the returned result.
func (e *Engine) fail(r *run, logger *slog.Logger, res *summary.Result, cause error) (*summary.Result, error) {
	runErr := asRunError(cause)
	completed := time.Now().UTC()

	if res == nil && r.agg != nil {
		var finErr error
		res, finErr = r.agg.Finalize(core.RunStatusFailed, runErr, completed, nil, nil)
		if finErr != nil && !errors.Is(finErr, summary.ErrFinalized) {
			logger.Warn("finalize after failure", "error", finErr)
		}
	}

	r.events.Emit("complete", core.SeverityError, map[string]any{
		"run_id":          r.ctx.RunID,
		"status":          string(core.RunStatusFailed),
		"failure_code":    runErr.Code,
		"failure_stage":   runErr.Stage,
		"failure_message": runErr.Message,
	})

	if err := r.artifact.MarkFailure(runErr.Code, runErr.Stage, runErr.Message); err != nil {
		logger.Warn("record failure on artifact", "error", err)
	}
	if err := r.artifact.Flush(); err != nil {
		logger.Warn("flush artifact after failure", "error", err)
	}

	return res, fmt.Errorf("run %s failed: %w", r.ctx.RunID, runErr)
}

// asRunError coerces any error into a structured RunError.
func asRunError(err error) *core.RunError {
	var runErr *core.RunError
	if errors.As(err, &runErr) {
		return runErr
	}
	return &core.RunError{Code: CodeInternal, Message: err.Error()}
}

// summarySeverity picks the event severity for a summary frame: the
// scope's max validation severity, floored at info.
func summarySeverity(v core.ValidationAggregate) core.Severity {
	if v.MaxSeverity.AtLeast(core.SeverityWarning) {
		return v.MaxSeverity
	}
	return core.SeverityInfo
}
