package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/benzoXdev/obfusps-tool/internal/command"
	"github.com/benzoXdev/obfusps-tool/internal/engine"
	clierrors "github.com/benzoXdev/obfusps-tool/internal/errors"
	"github.com/benzoXdev/obfusps-tool/internal/output"
	"github.com/benzoXdev/obfusps-tool/internal/terminal"
	"github.com/benzoXdev/obfusps-tool/internal/workspace"
)

// fakeEngine records invocations and replies without spawning processes.
type fakeEngine struct {
	calls   [][]string
	respond func(args []string) *engine.Invocation
}

func (f *fakeEngine) run(_ context.Context, _ engine.Strategy, args []string) (*engine.Invocation, error) {
	f.calls = append(f.calls, args)

	if f.respond != nil {
		return f.respond(args), nil
	}

	return &engine.Invocation{Args: args, Duration: time.Millisecond}, nil
}

func flagValue(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}

	return "", false
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}

	return false
}

type testBatch struct {
	runner *Runner
	fake   *fakeEngine
	tree   workspace.Tree
	out    *bytes.Buffer
}

func newTestBatch(t *testing.T, mode command.Mode, snapshot workspace.Snapshot) *testBatch {
	t.Helper()

	tree, err := workspace.New(filepath.Join(t.TempDir(), "ObfusPS"))
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}

	if _, _, err := tree.Prepare(nil); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var buf bytes.Buffer
	out := output.NewWriter(&buf, &buf, &terminal.Info{})

	fake := &fakeEngine{}

	runner := New(Options{
		Mode:     mode,
		Strategy: engine.Strategy{Kind: engine.StrategyBinary, Path: "/opt/obfusps"},
		Tree:     tree,
		Snapshot: snapshot,
		Output:   out,
	})
	runner.invoke = fake.run

	return &testBatch{runner: runner, fake: fake, tree: tree, out: &buf}
}

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}

	return path
}

func TestNameAllocator(t *testing.T) {
	names := make(nameAllocator)

	inputs := []string{"a.ps1", "a.ps1", "a.ps1", "b.psm1", "a.ps1"}
	want := []string{"a.ps1", "a_1.ps1", "a_2.ps1", "b.psm1", "a_3.ps1"}

	var got []string
	for _, in := range inputs {
		got = append(got, names.next(in))
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("allocated %v, want %v", got, want)
	}
}

func TestRunObfuscatesBatch(t *testing.T) {
	tb := newTestBatch(t, command.Auto(), nil)

	dir := t.TempDir()
	first := writeScript(t, dir, "payload.ps1", "Write-Host 'one'")
	second := writeScript(t, dir, "loader.ps1", "Write-Host 'two'")

	summary, err := tb.runner.Run(context.Background(), []string{first, second})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Produced != 2 || summary.Failed != 0 || summary.Attempted != 2 {
		t.Errorf("summary = %+v, want 2 produced of 2", summary)
	}

	if len(tb.fake.calls) != 2 {
		t.Fatalf("engine invoked %d times, want 2", len(tb.fake.calls))
	}

	// Originals still exist, so they are the engine inputs.
	if got, _ := flagValue(tb.fake.calls[0], "-i"); got != first {
		t.Errorf("-i = %q, want original path %q", got, first)
	}

	wantOutput := filepath.Join(tb.tree.OutputDir, "payload.ps1")
	if got, _ := flagValue(tb.fake.calls[0], "-o"); got != wantOutput {
		t.Errorf("-o = %q, want %q", got, wantOutput)
	}

	// Backups are verbatim copies.
	backup, readErr := os.ReadFile(filepath.Join(tb.tree.ScriptDir, "payload.ps1"))
	if readErr != nil {
		t.Fatalf("read backup: %v", readErr)
	}

	if string(backup) != "Write-Host 'one'" {
		t.Errorf("backup content = %q", backup)
	}
}

func TestRunDeduplicatesNamesAndFlagsModules(t *testing.T) {
	mode, err := command.Manual(3, "balanced", true, false)
	if err != nil {
		t.Fatalf("Manual: %v", err)
	}

	tb := newTestBatch(t, mode, nil)

	dirA := t.TempDir()
	dirB := t.TempDir()

	paths := []string{
		writeScript(t, dirA, "a.ps1", "Write-Host 1"),
		writeScript(t, dirB, "a.ps1", "Write-Host 2"),
		writeScript(t, dirA, "b.psm1", "function Get-Thing {}"),
	}

	summary, err := tb.runner.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var names []string
	for _, res := range summary.Results {
		names = append(names, res.Name)
	}

	want := []string{"a.ps1", "a_1.ps1", "b.psm1"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("output names = %v, want %v", names, want)
	}

	// Only the module gets module protection.
	for i, call := range tb.fake.calls {
		isModule := i == 2
		if hasFlag(call, "-module-aware") != isModule {
			t.Errorf("call %d module-aware = %v, want %v: %v", i, !isModule, isModule, call)
		}
	}

	// Both a.ps1 copies survive side by side in the backup folder.
	for _, name := range want {
		if _, statErr := os.Stat(filepath.Join(tb.tree.ScriptDir, name)); statErr != nil {
			t.Errorf("backup %s missing: %v", name, statErr)
		}
	}
}

func TestRunUsesBackupWhenOriginalIsGone(t *testing.T) {
	tb := newTestBatch(t, command.Auto(), nil)

	// The input lived inside the working root: Prepare cached it and the
	// reset deleted it. Only the snapshot has the content now.
	gone := filepath.Join(tb.tree.OutputDir, "..", "old-output.ps1")
	gone = filepath.Clean(gone)

	tb.runner.snapshot = workspace.Snapshot{gone: []byte("Write-Host 'cached'")}

	summary, err := tb.runner.Run(context.Background(), []string{gone})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Produced != 1 {
		t.Fatalf("summary = %+v, want 1 produced", summary)
	}

	backupPath := filepath.Join(tb.tree.ScriptDir, "old-output.ps1")

	content, readErr := os.ReadFile(backupPath)
	if readErr != nil {
		t.Fatalf("read backup: %v", readErr)
	}

	if string(content) != "Write-Host 'cached'" {
		t.Errorf("backup = %q, want snapshot content", content)
	}

	// The engine input is the backup, not the vanished original.
	if got, _ := flagValue(tb.fake.calls[0], "-i"); got != backupPath {
		t.Errorf("-i = %q, want backup path %q", got, backupPath)
	}
}

func TestRunIsolatesEngineFailures(t *testing.T) {
	tb := newTestBatch(t, command.Auto(), nil)

	dir := t.TempDir()
	paths := []string{
		writeScript(t, dir, "good1.ps1", "Write-Host 1"),
		writeScript(t, dir, "bad.ps1", "Write-Host 2"),
		writeScript(t, dir, "good2.ps1", "Write-Host 3"),
	}

	tb.fake.respond = func(args []string) *engine.Invocation {
		inv := &engine.Invocation{Args: args, Duration: time.Millisecond}

		if in, _ := flagValue(args, "-i"); strings.Contains(in, "bad.ps1") {
			inv.ExitCode = 2
			inv.Stderr = "parse error at line 4"
		}

		return inv
	}

	summary, err := tb.runner.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Produced != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 2 produced 1 failed", summary)
	}

	if len(tb.fake.calls) != 3 {
		t.Errorf("engine invoked %d times, want all 3 despite the failure", len(tb.fake.calls))
	}

	if summary.Results[1].Err == nil {
		t.Error("failed file has no recorded error")
	}

	var cliErr *clierrors.CLIError
	if !clierrors.As(summary.Results[1].Err, &cliErr) {
		t.Fatalf("Err = %T, want *CLIError", summary.Results[1].Err)
	}

	if cliErr.Code != clierrors.ExitExecution {
		t.Errorf("Code = %d, want %d", cliErr.Code, clierrors.ExitExecution)
	}

	if !strings.Contains(tb.out.String(), "obfusps failed (exit 2)") {
		t.Errorf("output missing failure line:\n%s", tb.out.String())
	}
}

func TestRunSkipsFileWhenCopyFails(t *testing.T) {
	tb := newTestBatch(t, command.Auto(), nil)

	dir := t.TempDir()
	good := writeScript(t, dir, "good.ps1", "Write-Host 1")

	// Validated earlier, deleted since, and absent from the snapshot:
	// the backup copy is impossible.
	vanished := filepath.Join(dir, "vanished.ps1")

	summary, err := tb.runner.Run(context.Background(), []string{vanished, good})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Produced != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 produced 1 failed", summary)
	}

	if len(tb.fake.calls) != 1 {
		t.Fatalf("engine invoked %d times, want 1 (skipped file must not reach the engine)", len(tb.fake.calls))
	}

	if in, _ := flagValue(tb.fake.calls[0], "-i"); in != good {
		t.Errorf("-i = %q, want the surviving file %q", in, good)
	}

	if !strings.Contains(tb.out.String(), "Cannot copy vanished.ps1") {
		t.Errorf("output missing copy failure:\n%s", tb.out.String())
	}
}

func TestRunRecommendMode(t *testing.T) {
	tb := newTestBatch(t, command.Recommend(), nil)

	dir := t.TempDir()
	paths := []string{
		writeScript(t, dir, "a.ps1", "Write-Host 1"),
		writeScript(t, dir, "b.ps1", "Write-Host 2"),
	}

	tb.fake.respond = func(args []string) *engine.Invocation {
		return &engine.Invocation{
			Args:     args,
			Stderr:   "recommended: -level 4 -profile stealth",
			Duration: time.Millisecond,
		}
	}

	summary, err := tb.runner.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Analyzed != 2 || summary.Produced != 0 {
		t.Errorf("summary = %+v, want 2 analyzed 0 produced", summary)
	}

	for _, call := range tb.fake.calls {
		if !hasFlag(call, "-recommend") {
			t.Errorf("call %v missing -recommend", call)
		}

		if hasFlag(call, "-o") {
			t.Errorf("call %v has an output flag in analysis mode", call)
		}
	}

	// Analysis never touches the managed folders.
	for _, dir := range []string{tb.tree.ScriptDir, tb.tree.OutputDir} {
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			t.Fatalf("readdir: %v", readErr)
		}

		if len(entries) != 0 {
			t.Errorf("%s has %d entries, want 0", dir, len(entries))
		}
	}

	if !strings.Contains(tb.out.String(), "recommended: -level 4 -profile stealth") {
		t.Errorf("analysis output not relayed:\n%s", tb.out.String())
	}
}

func TestRunAbortsOnInterrupt(t *testing.T) {
	tb := newTestBatch(t, command.Auto(), nil)

	dir := t.TempDir()
	paths := []string{
		writeScript(t, dir, "a.ps1", "Write-Host 1"),
		writeScript(t, dir, "b.ps1", "Write-Host 2"),
		writeScript(t, dir, "c.ps1", "Write-Host 3"),
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Simulate ^C during the first engine run.
	tb.runner.invoke = func(runCtx context.Context, _ engine.Strategy, args []string) (*engine.Invocation, error) {
		tb.fake.calls = append(tb.fake.calls, args)
		cancel()

		return nil, runCtx.Err()
	}

	summary, err := tb.runner.Run(ctx, paths)
	if err == nil {
		t.Fatal("Run survived an interrupt")
	}

	var cliErr *clierrors.CLIError
	if !clierrors.As(err, &cliErr) {
		t.Fatalf("err = %T, want *CLIError", err)
	}

	if !strings.Contains(cliErr.Message, "interrupted") {
		t.Errorf("Message = %q, want interruption reported", cliErr.Message)
	}

	if len(tb.fake.calls) != 1 {
		t.Errorf("engine invoked %d times after interrupt, want 1", len(tb.fake.calls))
	}

	if len(summary.Results) != 1 {
		t.Errorf("results = %d, want 1 (remaining files untouched)", len(summary.Results))
	}
}

func TestRunRelaysDiagnostics(t *testing.T) {
	tb := newTestBatch(t, command.Auto(), nil)

	dir := t.TempDir()
	path := writeScript(t, dir, "a.ps1", "Write-Host 1")

	tb.fake.respond = func(args []string) *engine.Invocation {
		return &engine.Invocation{
			Args:     args,
			Stderr:   "\x1b[36m[*] layer 1/2: tokenize\x1b[0m\r\n\r\n[*] layer 2/2: encrypt\r\n",
			Duration: time.Millisecond,
		}
	}

	if _, err := tb.runner.Run(context.Background(), []string{path}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := tb.out.String()

	if !strings.Contains(got, "    [*] layer 1/2: tokenize") {
		t.Errorf("missing first diagnostic:\n%s", got)
	}

	if strings.Contains(got, "\x1b[") {
		t.Errorf("ANSI sequences leaked into output:\n%s", got)
	}

	if !strings.Contains(got, "    [*] layer 2/2: encrypt") {
		t.Errorf("missing second diagnostic:\n%s", got)
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		inv  *engine.Invocation
		want string
	}{
		{
			name: "stderr wins",
			inv:  &engine.Invocation{Stdout: "partial", Stderr: "real error\n"},
			want: "real error",
		},
		{
			name: "stdout fallback",
			inv:  &engine.Invocation{Stdout: "wrote nothing\n"},
			want: "wrote nothing",
		},
		{
			name: "both empty",
			inv:  &engine.Invocation{},
			want: "unknown error",
		},
		{
			name: "whitespace only stderr",
			inv:  &engine.Invocation{Stderr: "  \n ", Stdout: "fallback"},
			want: "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failureMessage(tt.inv); got != tt.want {
				t.Errorf("failureMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummaryReport(t *testing.T) {
	t.Run("mixed batch", func(t *testing.T) {
		var buf bytes.Buffer
		out := output.NewWriter(&buf, &buf, &terminal.Info{})

		summary := &Summary{
			Kind:      command.KindAuto,
			Attempted: 3,
			Produced:  2,
			Failed:    1,
			OutputDir: "/work/ObfusPS/Script-Obfuscate",
			Results: []FileResult{
				{Name: "a.ps1"},
				{Name: "b.ps1", Err: clierrors.EngineExecutionFailed(2, "parse error")},
				{Name: "c.ps1"},
			},
		}

		summary.Report(out)

		got := buf.String()

		if !strings.Contains(got, "Obfuscation complete: 2/3 file(s) -> /work/ObfusPS/Script-Obfuscate") {
			t.Errorf("missing completion line:\n%s", got)
		}

		if !strings.Contains(got, "1 of 3 file(s) failed") {
			t.Errorf("missing failure recap:\n%s", got)
		}

		if !strings.Contains(got, "b.ps1") {
			t.Errorf("failed file not named:\n%s", got)
		}
	})

	t.Run("recommend batch", func(t *testing.T) {
		var buf bytes.Buffer
		out := output.NewWriter(&buf, &buf, &terminal.Info{})

		summary := &Summary{Kind: command.KindRecommend, Attempted: 2, Analyzed: 2}
		summary.Report(out)

		if !strings.Contains(buf.String(), "Analysis complete: 2 file(s)") {
			t.Errorf("missing analysis line:\n%s", buf.String())
		}
	})
}
