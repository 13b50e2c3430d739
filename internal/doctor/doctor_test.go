package doctor

import (
	"context"
	"fmt"
	"testing"
)

func TestRunnerNamesResults(t *testing.T) {
	r := &Runner{}
	r.AddCheck("First", func(context.Context) Result {
		return Result{Status: StatusPass, Message: "one"}
	})
	r.AddCheck("Second", func(context.Context) Result {
		return Result{Status: StatusWarn, Message: "two"}
	})

	results := r.Run(context.Background())

	if len(results) != 2 {
		t.Fatalf("Run returned %d results, want 2", len(results))
	}
	if results[0].Name != "First" || results[1].Name != "Second" {
		t.Errorf("result names = %q, %q", results[0].Name, results[1].Name)
	}
	if results[1].Status != StatusWarn {
		t.Errorf("second status = %v, want StatusWarn", results[1].Status)
	}
}

func TestNewRegistersDefaultChecks(t *testing.T) {
	r := New()

	want := []string{"Obfuscation Engine", "PowerShell", "Go Toolchain", "Config Directory", "CLI Version"}
	if len(r.checks) != len(want) {
		t.Fatalf("New registered %d checks, want %d", len(r.checks), len(want))
	}
	for i, name := range want {
		if r.checks[i].name != name {
			t.Errorf("check %d = %q, want %q", i, r.checks[i].name, name)
		}
	}
}

func TestSummary(t *testing.T) {
	results := []Result{
		{Status: StatusPass},
		{Status: StatusPass},
		{Status: StatusFail},
		{Status: StatusWarn},
	}

	passed, failed, warnings := Summary(results)

	if passed != 2 || failed != 1 || warnings != 1 {
		t.Errorf("Summary = (%d, %d, %d), want (2, 1, 1)", passed, failed, warnings)
	}
}

func TestStatusSymbol(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusPass, "✓"},
		{StatusWarn, "⚠"},
		{StatusFail, "✗"},
		{Status(99), "?"},
	}

	for _, tt := range tests {
		if got := tt.status.Symbol(); got != tt.want {
			t.Errorf("Symbol(%v) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRenderResultsAlignsAndIndentsDetail(t *testing.T) {
	results := []Result{
		{Name: "Engine", Status: StatusPass, Message: "ok"},
		{Name: "PowerShell Host", Status: StatusFail, Message: "bad", Detail: "why"},
	}

	var printed, success, warning, failure, muted []string
	record := func(dst *[]string) func(string, ...any) {
		return func(format string, args ...any) {
			*dst = append(*dst, fmt.Sprintf(format, args...))
		}
	}

	RenderResults(results, record(&printed), record(&success), record(&warning), record(&failure), record(&muted))

	if len(success) != 1 || len(failure) != 1 || len(warning) != 0 || len(printed) != 0 {
		t.Fatalf("lines: success=%v failure=%v warning=%v printed=%v", success, failure, warning, printed)
	}

	// Names pad to longest name plus four spaces.
	if want := fmt.Sprintf("%-19s%s", "Engine", "ok"); success[0] != want {
		t.Errorf("success line = %q, want %q", success[0], want)
	}
	if want := fmt.Sprintf("%-19s%s", "PowerShell Host", "bad"); failure[0] != want {
		t.Errorf("failure line = %q, want %q", failure[0], want)
	}
	if len(muted) != 1 || muted[0] != "    why" {
		t.Errorf("muted lines = %v, want indented detail", muted)
	}
}

func TestCheckConfigDirWritable(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	res := checkConfigDir(context.Background())

	if res.Status != StatusPass {
		t.Fatalf("status = %v (%s: %s), want StatusPass", res.Status, res.Message, res.Detail)
	}
	if res.Message == "" {
		t.Error("expected the config directory path in the message")
	}
}
