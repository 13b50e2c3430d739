// Package batch drives the engine over a set of validated scripts, one
// file at a time. Failures are isolated per file: a bad script, a failed
// copy or a nonzero engine exit skips that file and the loop advances.
// Only an interrupt or an unusable environment stops the batch.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/benzoXdev/obfusps-tool/internal/ansi"
	"github.com/benzoXdev/obfusps-tool/internal/command"
	"github.com/benzoXdev/obfusps-tool/internal/engine"
	clierrors "github.com/benzoXdev/obfusps-tool/internal/errors"
	"github.com/benzoXdev/obfusps-tool/internal/observability"
	"github.com/benzoXdev/obfusps-tool/internal/output"
	"github.com/benzoXdev/obfusps-tool/internal/script"
	"github.com/benzoXdev/obfusps-tool/internal/workspace"
)

const tracerName = "obfusps.batch"

// Options configures a Runner for one batch.
type Options struct {
	Mode     command.Mode
	Strategy engine.Strategy
	Tree     workspace.Tree
	Snapshot workspace.Snapshot
	Output   *output.Writer
	Logger   *slog.Logger
}

// Runner processes one batch of scripts sequentially. One engine process
// runs at a time; its output is fully drained before the next file starts.
type Runner struct {
	mode     command.Mode
	strategy engine.Strategy
	tree     workspace.Tree
	snapshot workspace.Snapshot
	out      *output.Writer
	logger   *slog.Logger

	// invoke is swapped in tests to avoid spawning real processes.
	invoke func(context.Context, engine.Strategy, []string) (*engine.Invocation, error)
}

// New returns a Runner over the given options.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := opts.Output
	if out == nil {
		out = output.Default()
	}

	return &Runner{
		mode:     opts.Mode,
		strategy: opts.Strategy,
		tree:     opts.Tree,
		snapshot: opts.Snapshot,
		out:      out,
		logger:   logger,
		invoke:   engine.Run,
	}
}

// FileResult records the outcome for one input file.
type FileResult struct {
	Input  string // original path as selected
	Name   string // de-duplicated output base name
	Backup string // backup copy path, empty in recommend mode
	Output string // engine output path, empty in recommend mode
	Err    error  // nil on success
}

// Summary aggregates one batch for the final report.
type Summary struct {
	Kind      command.Kind
	Attempted int
	Produced  int
	Analyzed  int
	Failed    int
	OutputDir string
	Results   []FileResult
}

// Run processes paths in the given order. Per-file problems land in the
// returned Summary; the returned error is non-nil only when the batch as a
// whole was aborted, which currently only an interrupt does.
func (r *Runner) Run(ctx context.Context, paths []string) (*Summary, error) {
	ctx, span := observability.Tracer(tracerName).Start(ctx, "batch.process",
		trace.WithAttributes(
			attribute.String("batch.mode", r.mode.Kind.String()),
			attribute.Int("batch.files", len(paths)),
			attribute.String("batch.strategy", r.strategy.String()),
		),
	)
	defer span.End()

	summary := &Summary{
		Kind:      r.mode.Kind,
		Attempted: len(paths),
		OutputDir: r.tree.OutputDir,
	}

	names := make(nameAllocator)

	for i, path := range paths {
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "interrupted")
			return summary, clierrors.EngineInterrupted()
		}

		result := r.processFile(ctx, path, names, i+1, len(paths))

		summary.Results = append(summary.Results, result)

		switch {
		case result.Err == nil && r.mode.Kind == command.KindRecommend:
			summary.Analyzed++
		case result.Err == nil:
			summary.Produced++
		case ctx.Err() != nil:
			summary.Failed++
			span.SetStatus(codes.Error, "interrupted")

			return summary, clierrors.EngineInterrupted()
		default:
			summary.Failed++
		}
	}

	if summary.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d files failed", summary.Failed, summary.Attempted))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return summary, nil
}

func (r *Runner) processFile(ctx context.Context, path string, names nameAllocator, index, total int) FileResult {
	if r.mode.Kind == command.KindRecommend {
		return r.analyzeFile(ctx, path, index, total)
	}

	name := names.next(filepath.Base(path))

	result := FileResult{
		Input:  path,
		Name:   name,
		Backup: filepath.Join(r.tree.ScriptDir, name),
		Output: filepath.Join(r.tree.OutputDir, name),
	}

	r.out.Info("File %d/%d: %s", index, total, name)

	if err := r.writeBackup(path, result.Backup); err != nil {
		r.out.Failure("Cannot copy %s: %v", name, err)
		r.logger.WarnContext(ctx, "backup copy failed", "file", name, "error", err)

		result.Err = err

		return result
	}

	// The original may have lived inside the working root, which Prepare
	// just destroyed. The backup copy is the input then.
	input := path
	if !fileExists(path) {
		input = result.Backup
	}

	args := r.mode.Build(input, result.Output, script.IsModule(path))

	inv, err := r.runEngine(ctx, name, args)
	if err != nil {
		if ctx.Err() != nil {
			result.Err = err
			return result
		}

		r.out.Failure("Error: %v", err)

		result.Err = err

		return result
	}

	r.printDiagnostics(inv.Stderr)

	if inv.ExitCode != 0 {
		result.Err = clierrors.EngineExecutionFailed(inv.ExitCode, failureMessage(inv))

		r.out.Failure("obfusps failed (exit %d)", inv.ExitCode)
		r.logger.ErrorContext(ctx, "engine failed",
			"file", name,
			"exit_code", inv.ExitCode,
			"duration_ms", inv.Duration.Milliseconds(),
		)

		return result
	}

	r.out.Success("Done: %s", result.Output)
	r.logger.InfoContext(ctx, "file obfuscated",
		"file", name,
		"duration_ms", inv.Duration.Milliseconds(),
	)

	return result
}

// analyzeFile runs the engine's analysis pass. Nothing is written, so there
// is no backup step and no output name to allocate.
func (r *Runner) analyzeFile(ctx context.Context, path string, index, total int) FileResult {
	name := filepath.Base(path)
	result := FileResult{Input: path, Name: name}

	r.out.Info("File %d/%d: %s", index, total, name)

	args := r.mode.Build(path, "", false)

	inv, err := r.runEngine(ctx, name, args)
	if err != nil {
		if ctx.Err() == nil {
			r.out.Failure("Recommend error: %v", err)
		}

		result.Err = err

		return result
	}

	r.printDiagnostics(inv.Stderr)

	if inv.ExitCode != 0 {
		result.Err = clierrors.EngineExecutionFailed(inv.ExitCode, failureMessage(inv))

		r.out.Failure("obfusps failed (exit %d)", inv.ExitCode)

		return result
	}

	return result
}

func (r *Runner) runEngine(ctx context.Context, name string, args []string) (*engine.Invocation, error) {
	ctx, span := observability.Tracer(tracerName).Start(ctx, "engine.invoke",
		trace.WithAttributes(
			attribute.String("file.name", name),
			attribute.String("batch.mode", r.mode.Kind.String()),
		),
	)
	defer span.End()

	spin := r.out.Spinner(fmt.Sprintf("Obfuscating: %s", name))
	if r.mode.Kind == command.KindRecommend {
		spin = r.out.Spinner(fmt.Sprintf("Analyzing: %s", name))
	}

	spin.Start()

	inv, err := r.invoke(ctx, r.strategy, args)

	// Empty messages close the fallback "name..." line on non-TTY output
	// without printing anything extra on a real terminal.
	if err != nil || inv.ExitCode != 0 {
		spin.StopWithFailure("")
	} else {
		spin.StopWithSuccess("")
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invocation failed")

		return nil, err
	}

	span.SetAttributes(
		attribute.Int("engine.exit_code", inv.ExitCode),
		attribute.Int64("engine.duration_ms", inv.Duration.Milliseconds()),
	)

	if inv.ExitCode != 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("exit %d", inv.ExitCode))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return inv, nil
}

// writeBackup places a verbatim copy of the input into the backup folder,
// from the snapshot when the original was destroyed with the working root.
func (r *Runner) writeBackup(path, backupPath string) error {
	if data, ok := r.snapshot[path]; ok {
		return os.WriteFile(backupPath, data, 0o644)
	}

	return copyFile(path, backupPath)
}

// printDiagnostics relays the engine's stderr to the user line by line.
// Stderr is the engine's progress and analysis channel, not an error feed.
func (r *Runner) printDiagnostics(stderr string) {
	for _, line := range ansi.Lines(stderr) {
		r.out.Diag(line)
	}
}

// failureMessage picks the most informative engine output for a failure:
// stderr first, stdout as fallback, a generic marker when both are empty.
func failureMessage(inv *engine.Invocation) string {
	if msg := strings.TrimSpace(inv.Stderr); msg != "" {
		return msg
	}

	if msg := strings.TrimSpace(inv.Stdout); msg != "" {
		return msg
	}

	return "unknown error"
}

// Report prints the closing summary for a batch.
func (s *Summary) Report(out *output.Writer) {
	if s.Failed > 0 {
		out.Warning("%d of %d file(s) failed:", s.Failed, s.Attempted)

		for _, res := range s.Results {
			if res.Err != nil {
				out.Muted("  %s: %v", res.Name, res.Err)
			}
		}
	}

	if s.Kind == command.KindRecommend {
		out.Info("Analysis complete: %d file(s)", s.Analyzed)
		return
	}

	out.Success("Obfuscation complete: %d/%d file(s) -> %s", s.Produced, s.Attempted, s.OutputDir)
	out.Muted("Scripts compatible with PowerShell 5.1 & 7.x")
}

// nameAllocator hands out collision-free output names in encounter order.
// The first occurrence of a base name keeps it; later occurrences get _1,
// _2 and so on before the extension.
type nameAllocator map[string]int

func (a nameAllocator) next(base string) string {
	count, seen := a[base]
	if !seen {
		a[base] = 0
		return base
	}

	count++
	a[base] = count

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	return fmt.Sprintf("%s_%d%s", stem, count, ext)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)

	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	return err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
