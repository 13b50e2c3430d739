// Package errors provides structured CLI error types for obfusps-tool.
//
// CLIError wraps errors with user-facing messages, hints, and exit codes
// to provide consistent, actionable error output across all commands.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Exit codes for CLI errors.
const (
	ExitSuccess   = 0  // Successful execution
	ExitGeneral   = 1  // General error
	ExitNetwork   = 3  // Network error (release lookups, self-update)
	ExitConfig    = 4  // Configuration or environment error
	ExitTimeout   = 5  // Execution timeout
	ExitExecution = 6  // Engine execution failure
	ExitUsage     = 64 // Command line usage error (BSD convention)
)

// CLIError represents a user-facing CLI error with actionable guidance.
type CLIError struct {
	// Message is the primary error message shown to the user.
	Message string

	// Hint provides actionable guidance on how to fix the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Code is the exit code for the CLI.
	Code int
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// New creates a new CLIError with the given message and exit code.
func New(code int, message string) *CLIError {
	return &CLIError{
		Message: message,
		Code:    code,
	}
}

// Wrap wraps an existing error with a CLIError.
func Wrap(code int, message string, cause error) *CLIError {
	return &CLIError{
		Message: message,
		Cause:   cause,
		Code:    code,
	}
}

// WithHint adds a hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// As is a convenience function for errors.As with CLIError.
func As(err error, target **CLIError) bool {
	return errors.As(err, target)
}

// --- Common error constructors ---

// EngineNotFound returns an error when no way to invoke the engine exists.
func EngineNotFound() *CLIError {
	return &CLIError{
		Message: "ObfusPS engine not found",
		Hint:    "Place the obfusps binary next to obfusps-tool, add it to PATH, or set engine.path in the config. Releases: https://github.com/benzoXdev/obfusps/releases",
		Code:    ExitConfig,
	}
}

// CannotPrompt returns an error when interactive prompts are unavailable.
func CannotPrompt(flag string) *CLIError {
	return &CLIError{
		Message: "Cannot prompt in non-interactive mode",
		Hint:    fmt.Sprintf("Pass %s instead", flag),
		Code:    ExitUsage,
	}
}

// NoFilesSelected returns an error when the user provided no input files.
func NoFilesSelected() *CLIError {
	return &CLIError{
		Message: "No files selected",
		Hint:    "Pass one or more .ps1/.psm1 paths, or run interactively to pick files",
		Code:    ExitUsage,
	}
}

// NoValidFiles returns an error when every selected file failed validation.
func NoValidFiles() *CLIError {
	return &CLIError{
		Message: "No valid files found",
		Hint:    "Inputs must be existing, non-empty .ps1 or .psm1 files no larger than 50 MB",
		Code:    ExitUsage,
	}
}

// InvalidLevel returns an error for an out-of-range obfuscation level.
func InvalidLevel(level int) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Invalid obfuscation level: %d", level),
		Hint:    "Choose a level between 1 (light) and 5 (extreme)",
		Code:    ExitUsage,
	}
}

// WorkspaceResetFailed returns an error when the working folder cannot be
// cleared or recreated.
func WorkspaceResetFailed(root string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to reset working folder: %s", root),
		Hint:    "Close programs holding files under the folder open, or check directory permissions",
		Cause:   cause,
		Code:    ExitGeneral,
	}
}

// ConfigFailed returns an error for configuration save failures.
func ConfigFailed(operation string, cause error) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Failed to %s", operation),
		Hint:    "Check file permissions for your obfusps-tool config directory or run 'obfusps-tool doctor'",
		Cause:   cause,
		Code:    ExitConfig,
	}
}

// PresetNotFound returns an error for an unknown preset name.
func PresetNotFound(name string) *CLIError {
	return &CLIError{
		Message: fmt.Sprintf("Preset not found: %s", name),
		Hint:    "Run 'obfusps-tool preset list' to see available presets",
		Code:    ExitConfig,
	}
}

// KeyNotFound returns an error when no encryption key is stored in the keyring.
func KeyNotFound() *CLIError {
	return &CLIError{
		Message: "No string encryption key stored",
		Hint:    "Run 'obfusps-tool key set' to store one in the system keyring",
		Code:    ExitConfig,
	}
}

// EngineExecutionFailed returns an error for engine failures.
// It detects common error patterns and provides specific hints.
func EngineExecutionFailed(exitCode int, stderr string) *CLIError {
	msg := "Engine execution failed"
	hint := ""

	// Detect common error patterns
	switch {
	case containsAny(stderr, "flag provided but not defined", "unknown flag", "unknown shorthand"):
		msg = "Engine rejected a flag"
		hint = "Run 'obfusps-tool flags' to list the flags the engine accepts"
	case containsAny(stderr, "validation failed", "validation error", "output validation"):
		msg = "Obfuscated output failed validation"
		hint = "Lower the level, or retry with '-validate-stderr ignore' and a larger '-validate-timeout'"
	case containsAny(stderr, "pwsh", "powershell not found"):
		msg = "Engine could not find PowerShell"
		hint = "Install pwsh 7.x for -use-ast and -validate, or rerun without them"
	case containsAny(stderr, "parse error", "could not parse", "tokenize"):
		msg = "Engine could not parse the script"
		hint = "Verify the script runs under PowerShell 5.1/7.x before obfuscating it"
	case exitCode == 1 && stderr == "":
		hint = "Run with --log-level=debug for more details"
	default:
		if stderr != "" {
			// Truncate long error messages
			if len(stderr) > 200 {
				stderr = stderr[:200] + "..."
			}

			hint = stderr
		}
	}

	return &CLIError{
		Message: msg,
		Hint:    hint,
		Code:    ExitExecution,
	}
}

// EngineInterrupted returns an error for interrupted engine execution.
func EngineInterrupted() *CLIError {
	return &CLIError{
		Message: "Engine execution was interrupted",
		Hint:    "The process was terminated by a signal",
		Code:    ExitExecution,
	}
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}

	return false
}
