// Package engine locates and invokes the external ObfusPS engine.
//
// The engine is a separate program with its own CLI contract. This package
// decides how to start it (prebuilt binary or a source checkout run through
// the Go toolchain) and captures one invocation per input file. It never
// interprets engine flags beyond -i/-o; those belong to the engine.
package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
)

// ErrNotFound reports that no way to invoke the engine exists.
var ErrNotFound = errors.New("obfusps engine not found")

// StrategyKind enumerates the ways the engine can be started.
type StrategyKind int

const (
	// StrategyBinary invokes a prebuilt engine executable.
	StrategyBinary StrategyKind = iota
	// StrategySourceRun runs the engine from a source checkout via `go run`.
	// Works without a prebuilt binary but pays the toolchain startup cost.
	StrategySourceRun
)

// Strategy describes how to start the engine. Immutable once resolved.
type Strategy struct {
	Kind StrategyKind

	// Path is the executable path for StrategyBinary.
	Path string

	// ProjectRoot is the checkout directory for StrategySourceRun.
	ProjectRoot string
}

// String renders the strategy for status lines and logs.
func (s Strategy) String() string {
	switch s.Kind {
	case StrategyBinary:
		return fmt.Sprintf("binary (%s)", s.Path)
	case StrategySourceRun:
		return fmt.Sprintf("go run (%s)", s.ProjectRoot)
	default:
		return "unresolved"
	}
}

// argv returns the command prefix that starts the engine.
func (s Strategy) argv() []string {
	if s.Kind == StrategySourceRun {
		return []string{"go", "run", "./cmd/obfusps"}
	}

	return []string{s.Path}
}

// binaryNames returns candidate engine executable names for this platform.
func binaryNames() []string {
	if runtime.GOOS == "windows" {
		return []string{"ObfusPS.exe", "obfusps.exe"}
	}

	return []string{"obfusps"}
}

// Resolve probes for the engine in fixed priority order:
//
//  1. explicitPath when set (configuration override)
//  2. a platform-named binary inside searchDir
//  3. `obfusps` on PATH
//  4. a source checkout in searchDir, runnable when `go` is on PATH
//
// The first match wins. No match returns ErrNotFound and nothing on disk
// has been touched.
func Resolve(searchDir, explicitPath string) (Strategy, error) {
	if explicitPath != "" {
		if isRegularFile(explicitPath) {
			return Strategy{Kind: StrategyBinary, Path: explicitPath}, nil
		}

		return Strategy{}, fmt.Errorf("engine.path %q: %w", explicitPath, ErrNotFound)
	}

	for _, name := range binaryNames() {
		candidate := filepath.Join(searchDir, name)
		if isRegularFile(candidate) {
			return Strategy{Kind: StrategyBinary, Path: candidate}, nil
		}
	}

	if path, err := exec.LookPath("obfusps"); err == nil {
		return Strategy{Kind: StrategyBinary, Path: path}, nil
	}

	goMod := filepath.Join(searchDir, "go.mod")
	engineMain := filepath.Join(searchDir, "cmd", "obfusps", "main.go")

	if isRegularFile(goMod) && isRegularFile(engineMain) {
		if _, err := exec.LookPath("go"); err == nil {
			return Strategy{Kind: StrategySourceRun, ProjectRoot: searchDir}, nil
		}
	}

	return Strategy{}, ErrNotFound
}

// SearchDir returns the directory the running tool lives in, the primary
// probe location for a bundled engine binary.
func SearchDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}

	return filepath.Dir(exe)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Locator resolves the strategy once per session and caches the result.
type Locator struct {
	SearchDir    string
	ExplicitPath string

	once     sync.Once
	strategy Strategy
	err      error
}

// Strategy returns the cached resolution, probing on first use.
func (l *Locator) Strategy() (Strategy, error) {
	l.once.Do(func() {
		l.strategy, l.err = Resolve(l.SearchDir, l.ExplicitPath)
	})

	return l.strategy, l.err
}
