//go:build !windows

package update

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNeedsElevationWritableDir(t *testing.T) {
	binPath := filepath.Join(t.TempDir(), "obfusps-tool")

	if NeedsElevation(binPath) {
		t.Error("NeedsElevation returned true for writable directory")
	}
}

func TestNeedsElevationReadOnlyDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory write permissions")
	}

	readOnly := filepath.Join(t.TempDir(), "readonly")
	if err := os.MkdirAll(readOnly, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(readOnly, 0o755) })

	binPath := filepath.Join(readOnly, "obfusps-tool")

	if !NeedsElevation(binPath) {
		t.Error("NeedsElevation returned false for read-only directory")
	}
}
