// Package keystore handles storage and retrieval of the engine's string
// encryption key.
//
// The key is sourced in the following priority order:
//  1. Environment variable: OBFUSPS_STRKEY
//  2. OS Keyring (macOS Keychain, Windows Credential Manager, Linux Secret Service)
//  3. Config file fallback: <user config dir>/obfusps-tool/strkey (for headless environments)
//
// Wherever it lives, the key stays out of preset files and shell history;
// the logging layer redacts it should it ever reach a log attribute.
package keystore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/benzoXdev/obfusps-tool/internal/paths"
)

const (
	// keyringService is the service name used in OS keyring storage.
	keyringService = "obfusps-tool"
	// keyringUser is the user/account name used in OS keyring storage.
	keyringUser = "strkey"
	// envVarName is the environment variable for the key.
	envVarName = "OBFUSPS_STRKEY"
)

// Source indicates where the key was found.
type Source string

// Source constants identify where the key was loaded from.
const (
	SourceEnv     Source = "environment variable"
	SourceKeyring Source = "keyring"
	SourceFile    Source = "config file"
	SourceNone    Source = ""
)

// Get returns the string encryption key and its source.
// Returns empty strings if no key is stored anywhere.
func Get() (source Source, key string) {
	// Priority 1: Environment variable
	if k := os.Getenv(envVarName); k != "" {
		return SourceEnv, k
	}

	// Priority 2: OS Keyring
	if k, err := keyring.Get(keyringService, keyringUser); err == nil && k != "" {
		return SourceKeyring, k
	}

	// Priority 3: Config file fallback
	if k := readKeyFile(); k != "" {
		return SourceFile, k
	}

	return SourceNone, ""
}

// Set stores the key in the OS keyring.
// Falls back to file storage if keyring is unavailable.
func Set(key string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	err := keyring.Set(keyringService, keyringUser, key)
	if err == nil {
		return nil
	}

	return writeKeyFile(key)
}

// Delete removes the stored key from both the keyring and the file
// fallback. It fails only when neither held a key.
func Delete() error {
	keyringErr := keyring.Delete(keyringService, keyringUser)

	fileErr := deleteKeyFile()

	if keyringErr != nil && fileErr != nil {
		return fmt.Errorf("no stored key found")
	}

	return nil
}

func keyFilePath() string {
	path, err := paths.KeyFile()
	if err != nil {
		return ""
	}

	return filepath.Clean(path)
}

func readKeyFile() string {
	path := keyFilePath()
	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from controlled config directory
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func writeKeyFile(key string) error {
	path := keyFilePath()
	if path == "" {
		return fmt.Errorf("could not determine home directory")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Owner read/write only.
	if err := os.WriteFile(path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	return nil
}

func deleteKeyFile() error {
	path := keyFilePath()
	if path == "" {
		return fmt.Errorf("could not determine home directory")
	}

	err := os.Remove(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("key file not found")
	}

	if err != nil {
		return fmt.Errorf("remove key file: %w", err)
	}

	return nil
}
