// Package doctor provides diagnostic checks for obfusps-tool health.
//
// This package implements a check framework that validates:
//   - Engine resolution and probe round-trip
//   - PowerShell availability for AST transforms and validation
//   - Go toolchain presence for the source-run fallback
//   - Config directory writability
//   - CLI version against latest release
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/benzoXdev/obfusps-tool/internal/buildinfo"
	"github.com/benzoXdev/obfusps-tool/internal/config"
	"github.com/benzoXdev/obfusps-tool/internal/engine"
	"github.com/benzoXdev/obfusps-tool/internal/paths"
	"github.com/benzoXdev/obfusps-tool/internal/update"
)

// Status represents the result of a diagnostic check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical failure.
	StatusFail
)

// Result holds the outcome of a single check.
type Result struct {
	Name    string
	Status  Status
	Message string
	Detail  string // Optional additional detail
}

// Check is a diagnostic check function.
type Check func(ctx context.Context) Result

// Runner executes diagnostic checks.
type Runner struct {
	checks []namedCheck
}

type namedCheck struct {
	name  string
	check Check
}

// New creates a diagnostic runner with the default checks registered.
func New() *Runner {
	r := &Runner{}

	r.AddCheck("Obfuscation Engine", checkEngine)
	r.AddCheck("PowerShell", checkPowerShell)
	r.AddCheck("Go Toolchain", checkGoToolchain)
	r.AddCheck("Config Directory", checkConfigDir)
	r.AddCheck("CLI Version", checkCLIVersion)

	return r
}

// AddCheck registers a diagnostic check.
func (r *Runner) AddCheck(name string, check Check) {
	r.checks = append(r.checks, namedCheck{name: name, check: check})
}

// Run executes all registered checks and returns the results.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, 0, len(r.checks))

	for _, nc := range r.checks {
		result := nc.check(ctx)
		result.Name = nc.name
		results = append(results, result)
	}

	return results
}

// Summary returns counts of passed, failed, and warning checks.
func Summary(results []Result) (passed, failed, warnings int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warnings++
		}
	}

	return passed, failed, warnings
}

// checkEngine resolves the obfuscation engine and probes it once.
func checkEngine(ctx context.Context) Result {
	cfg := config.Load()

	strategy, err := engine.Resolve(engine.SearchDir(), cfg.EnginePath())
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: "Not found",
			Detail:  err.Error(),
		}
	}

	start := time.Now()

	if err := engine.Probe(ctx, strategy); err != nil {
		return Result{
			Status:  StatusFail,
			Message: strategy.String(),
			Detail:  err.Error(),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%dms)", strategy, time.Since(start).Milliseconds()),
	}
}

// checkPowerShell verifies a PowerShell host is available for the
// engine's -use-ast and -validate passes.
func checkPowerShell(ctx context.Context) Result {
	shell, err := exec.LookPath("pwsh")
	if err != nil {
		if runtime.GOOS == "windows" {
			if legacy, legacyErr := exec.LookPath("powershell"); legacyErr == nil {
				return Result{
					Status:  StatusPass,
					Message: fmt.Sprintf("Windows PowerShell at %s", legacy),
					Detail:  "PowerShell 7 (pwsh) is recommended for AST transforms",
				}
			}
		}

		return Result{
			Status:  StatusWarn,
			Message: "Not found in PATH",
			Detail:  "AST transforms and validation need PowerShell; install from https://aka.ms/powershell",
		}
	}

	cmd := exec.CommandContext(ctx, shell, "-NoProfile", "-Command", "$PSVersionTable.PSVersion.ToString()")

	out, err := cmd.Output()
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("Found at %s (version unknown)", shell),
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s at %s", strings.TrimSpace(string(out)), shell),
	}
}

// checkGoToolchain verifies the Go toolchain used by the source-run
// fallback. Binary installs work without it, so absence is a warning.
func checkGoToolchain(ctx context.Context) Result {
	goBin, err := exec.LookPath("go")
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: "Not found in PATH",
			Detail:  "Only needed to run the engine from source",
		}
	}

	out, err := exec.CommandContext(ctx, goBin, "version").Output()
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: "Found but version unknown",
		}
	}

	version := strings.TrimPrefix(strings.TrimSpace(string(out)), "go version ")

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s at %s", version, goBin),
	}
}

// checkConfigDir verifies the config directory exists and is writable.
func checkConfigDir(_ context.Context) Result {
	root, err := paths.ConfigRoot()
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: "Cannot resolve config directory",
			Detail:  err.Error(),
		}
	}

	if err := os.MkdirAll(root, 0o700); err != nil {
		return Result{
			Status:  StatusFail,
			Message: root,
			Detail:  err.Error(),
		}
	}

	probe, err := os.CreateTemp(root, ".doctor-*")
	if err != nil {
		return Result{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s (not writable)", root),
			Detail:  err.Error(),
		}
	}

	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return Result{
		Status:  StatusPass,
		Message: root,
	}
}

// checkCLIVersion checks the CLI version against the latest release.
func checkCLIVersion(ctx context.Context) Result {
	current := buildinfo.Version

	if current == "dev" {
		return Result{
			Status:  StatusWarn,
			Message: "Development build (version check skipped)",
		}
	}

	if update.IsDisabled() {
		return Result{
			Status:  StatusPass,
			Message: fmt.Sprintf("v%s (update checks disabled)", current),
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	updater, err := update.NewUpdater()
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("v%s (could not check for updates)", current),
			Detail:  err.Error(),
		}
	}

	info, err := updater.CheckLatest(checkCtx, current)
	if err != nil {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("v%s (could not check for updates)", current),
			Detail:  err.Error(),
		}
	}

	if info.UpdateAvailable {
		return Result{
			Status:  StatusWarn,
			Message: fmt.Sprintf("v%s (v%s available)", current, info.LatestVersion),
			Detail:  "Run 'obfusps-tool update' to update",
		}
	}

	return Result{
		Status:  StatusPass,
		Message: fmt.Sprintf("v%s (latest)", current),
	}
}

// RenderResults formats diagnostic results to the given output writer.
func RenderResults(results []Result, printFn, successFn, warningFn, failureFn, mutedFn func(format string, args ...any)) {
	maxNameLen := 0
	for _, r := range results {
		if len(r.Name) > maxNameLen {
			maxNameLen = len(r.Name)
		}
	}

	for _, r := range results {
		symbol := r.Status.Symbol()
		padding := maxNameLen - len(r.Name) + 4

		switch r.Status {
		case StatusPass:
			successFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusWarn:
			warningFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		case StatusFail:
			failureFn("%-*s%s", len(r.Name)+padding, r.Name, r.Message)
		default:
			printFn("%s %-*s%s\n", symbol, len(r.Name)+padding, r.Name, r.Message)
		}

		if r.Detail != "" {
			mutedFn("    %s", r.Detail)
		}
	}
}

// Symbol returns the status symbol for display.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return checkMark
	case StatusWarn:
		return warningMark
	case StatusFail:
		return xMark
	default:
		return "?"
	}
}

const (
	checkMark   = "✓" // ✓
	xMark       = "✗" // ✗
	warningMark = "⚠" // ⚠
)
