// Package workspace manages the on-disk tree a batch writes into: a backup
// folder holding verbatim copies of the inputs and an output folder the
// engine writes obfuscated scripts to.
//
// The tree is reset exactly once per batch. Inputs that live inside the
// tree are cached in memory before the reset destroys them; the cache is
// their only surviving copy afterwards, so capture-before-destroy ordering
// is a correctness requirement, not a courtesy.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	backupDirName = "Script"
	outputDirName = "Script-Obfuscate"
)

// Tree locates the working root and its two managed subdirectories.
type Tree struct {
	Root      string
	ScriptDir string
	OutputDir string
}

// New resolves root to an absolute tree. Nothing is created on disk until
// Prepare runs.
func New(root string) (Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Tree{}, fmt.Errorf("resolving working root %q: %w", root, err)
	}

	return Tree{
		Root:      abs,
		ScriptDir: filepath.Join(abs, backupDirName),
		OutputDir: filepath.Join(abs, outputDirName),
	}, nil
}

// Contains reports whether an absolute path lies underneath the tree root.
// Files inside the root are destroyed by Prepare and must be cached first.
func (t Tree) Contains(path string) bool {
	return strings.HasPrefix(path, t.Root+string(os.PathSeparator))
}

// Snapshot maps original input paths to their byte content, captured before
// the working root was reset.
type Snapshot map[string][]byte

// CaptureWarning reports one input that could not be cached. The batch
// treats it as a per-file problem: the file is skipped later, the rest of
// the batch proceeds.
type CaptureWarning struct {
	Path string
	Err  error
}

// Prepare makes the tree ready for a batch: caches the content of every
// input living inside the root, then removes the root and recreates the
// backup and output directories empty.
//
// Capture failures are returned as warnings and do not stop preparation.
// A root that survives removal is fatal: continuing would mix stale output
// from a previous batch into this one.
func (t Tree) Prepare(paths []string) (Snapshot, []CaptureWarning, error) {
	snapshot, warnings := t.capture(paths)

	if err := t.reset(); err != nil {
		return nil, warnings, err
	}

	return snapshot, warnings, nil
}

func (t Tree) capture(paths []string) (Snapshot, []CaptureWarning) {
	snapshot := make(Snapshot)

	var warnings []CaptureWarning

	for _, path := range paths {
		if !t.Contains(path) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, CaptureWarning{Path: path, Err: err})
			continue
		}

		snapshot[path] = data
	}

	return snapshot, warnings
}

func (t Tree) reset() error {
	// Best-effort removal: what matters is that the root itself is gone
	// before the fresh directories go in.
	_ = os.RemoveAll(t.Root)

	if _, err := os.Stat(t.Root); err == nil {
		return fmt.Errorf("working root %s still exists after removal", t.Root)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking working root: %w", err)
	}

	if err := os.MkdirAll(t.ScriptDir, 0o755); err != nil {
		return fmt.Errorf("creating backup folder: %w", err)
	}

	if err := os.MkdirAll(t.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output folder: %w", err)
	}

	return nil
}
