package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Invocation captures one engine run.
type Invocation struct {
	// Args are the engine arguments, without the command prefix.
	Args []string

	// Stdout and Stderr hold the full captured streams, decoded
	// permissively: invalid UTF-8 bytes are replaced, never dropped as a
	// whole, so partial engine output survives crashes mid-write.
	Stdout string
	Stderr string

	// ExitCode is the engine's exit status. Zero on success.
	ExitCode int

	Duration time.Duration
}

// Run starts the engine with the given arguments and waits for it to exit.
//
// A nonzero engine exit is NOT an error here: the caller gets the full
// Invocation and decides what a failure means for its workload. Run returns
// an error only when the process could not be started or was cancelled
// through ctx before exiting on its own.
func Run(ctx context.Context, strategy Strategy, args []string) (*Invocation, error) {
	argv := append(strategy.argv(), args...)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if strategy.Kind == StrategySourceRun {
		cmd.Dir = strategy.ProjectRoot
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	setProcAttrs(cmd)

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	inv := &Invocation{
		Args:     args,
		Stdout:   strings.ToValidUTF8(stdout.String(), "�"),
		Stderr:   strings.ToValidUTF8(stderr.String(), "�"),
		Duration: duration,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ctx.Err() != nil {
				// Killed by cancellation, not an engine verdict.
				return nil, fmt.Errorf("engine interrupted: %w", ctx.Err())
			}

			inv.ExitCode = exitErr.ExitCode()
			return inv, nil
		}

		return nil, fmt.Errorf("starting engine: %w", err)
	}

	return inv, nil
}

// Probe runs the engine with -h to confirm the resolved strategy actually
// executes. The engine prints usage and exits zero on -h, so any start
// failure here means the strategy is unusable.
func Probe(ctx context.Context, strategy Strategy) error {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	inv, err := Run(probeCtx, strategy, []string{"-h"})
	if err != nil {
		return err
	}

	if inv.ExitCode != 0 {
		return fmt.Errorf("engine probe exited %d: %s", inv.ExitCode, firstLine(inv.Stderr))
	}

	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}

	return strings.TrimSpace(s)
}
