// Package script validates PowerShell script paths before they reach the
// engine. Validation failures are per-file: callers skip the bad file and
// keep going rather than aborting the batch.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxSize is the largest script the tool will feed to the engine. Larger
// files are almost certainly not hand-written PowerShell and blow up
// obfuscation time.
const MaxSize = 50 << 20

var (
	ErrEmptyPath  = errors.New("path is empty")
	ErrNulByte    = errors.New("path contains a NUL byte")
	ErrMissing    = errors.New("no such file")
	ErrNotRegular = errors.New("not a regular file")
	ErrExtension  = errors.New("not a .ps1 or .psm1 file")
	ErrEmptyFile  = errors.New("file is empty")
	ErrTooLarge   = errors.New("file exceeds the 50 MiB limit")
)

// Sanitize normalizes a user-entered path to an absolute one. Drag-and-drop
// and copy-paste wrap paths in quotes and stray whitespace; both are
// stripped before the path touches the filesystem.
func Sanitize(raw string) (string, error) {
	path := strings.TrimSpace(raw)

	for len(path) >= 2 {
		first, last := path[0], path[len(path)-1]
		if first != last || (first != '"' && first != '\'') {
			break
		}

		path = strings.TrimSpace(path[1 : len(path)-1])
	}

	if path == "" {
		return "", ErrEmptyPath
	}

	if strings.ContainsRune(path, 0) {
		return "", ErrNulByte
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}

	return abs, nil
}

// Validate checks that path names an obfuscatable script: a regular,
// nonempty .ps1 or .psm1 file no larger than MaxSize.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrMissing
		}

		return err
	}

	if !info.Mode().IsRegular() {
		return ErrNotRegular
	}

	if !Supported(path) {
		return ErrExtension
	}

	if info.Size() == 0 {
		return ErrEmptyFile
	}

	if info.Size() > MaxSize {
		return fmt.Errorf("%w (%d bytes)", ErrTooLarge, info.Size())
	}

	return nil
}

// Supported reports whether name carries a PowerShell script extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".ps1" || ext == ".psm1"
}

// IsModule reports whether path names a PowerShell module. Modules get the
// engine's module-aware treatment so exported members survive obfuscation.
func IsModule(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".psm1")
}
