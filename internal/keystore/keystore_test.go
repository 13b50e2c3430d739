package keystore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetFromEnv(t *testing.T) {
	t.Setenv(envVarName, "env-key-123")

	source, key := Get()

	// Environment variable has highest priority.
	if source != SourceEnv {
		t.Errorf("source = %v, want %v", source, SourceEnv)
	}

	if key != "env-key-123" {
		t.Errorf("key = %q, want env-key-123", key)
	}
}

func TestKeyFilePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := keyFilePath()
	if path == "" {
		t.Skip("could not determine config directory")
	}

	if !filepath.IsAbs(path) {
		t.Errorf("keyFilePath() = %q, want absolute path", path)
	}

	wantSuffix := filepath.Join("obfusps-tool", "strkey")
	if len(path) < len(wantSuffix) || path[len(path)-len(wantSuffix):] != wantSuffix {
		t.Errorf("keyFilePath() = %q, want suffix %q", path, wantSuffix)
	}
}

func TestSourceString(t *testing.T) {
	tests := []struct {
		source Source
		want   string
	}{
		{SourceEnv, "environment variable"},
		{SourceKeyring, "keyring"},
		{SourceFile, "config file"},
		{SourceNone, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			if got := string(tt.source); got != tt.want {
				t.Errorf("Source = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteAndReadKeyFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := writeKeyFile("file-key-xyz"); err != nil {
		t.Fatalf("writeKeyFile() error = %v", err)
	}

	if got := readKeyFile(); got != "file-key-xyz" {
		t.Errorf("readKeyFile() = %q, want file-key-xyz", got)
	}

	// Owner read/write only.
	info, err := os.Stat(keyFilePath())
	if err != nil {
		t.Fatalf("os.Stat() error = %v", err)
	}

	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file permissions = %o, want 0600", perm)
	}
}

func TestDeleteKeyFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := writeKeyFile("doomed"); err != nil {
		t.Fatalf("writeKeyFile() error = %v", err)
	}

	if err := deleteKeyFile(); err != nil {
		t.Errorf("deleteKeyFile() error = %v", err)
	}

	if _, err := os.Stat(keyFilePath()); !os.IsNotExist(err) {
		t.Error("key file still exists after delete")
	}
}

func TestDeleteKeyFileNotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := deleteKeyFile(); err == nil {
		t.Error("deleteKeyFile() should return an error for a missing file")
	}
}

func TestSetRejectsEmptyKey(t *testing.T) {
	if err := Set(""); err == nil {
		t.Error("Set accepted an empty key")
	}
}
