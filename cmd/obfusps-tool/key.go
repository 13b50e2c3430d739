package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	clierrors "github.com/benzoXdev/obfusps-tool/internal/errors"
	"github.com/benzoXdev/obfusps-tool/internal/keystore"
	"github.com/benzoXdev/obfusps-tool/internal/output"
	"github.com/benzoXdev/obfusps-tool/internal/prompt"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the string encryption key",
		Long: `Store, inspect and clear the engine's -strenc key.

The key is kept in the system keyring (macOS Keychain, Windows Credential
Manager, Linux Secret Service) with a config-file fallback for headless
machines. Command-mode batches that enable -strenc without a -strkey get
the stored key injected automatically.`,
	}

	cmd.AddCommand(newKeySetCmd())
	cmd.AddCommand(newKeyShowCmd())
	cmd.AddCommand(newKeyClearCmd())

	return cmd
}

func newKeySetCmd() *cobra.Command {
	var keyFlag string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the string encryption key",
		Long: `Store the hex key the engine uses for -strenc string encryption.

The key lands in your system's keyring, or in a mode-0600 file under the
config directory when no keyring is available. You can also set the
OBFUSPS_STRKEY environment variable, which takes precedence.`,
		Example: `  obfusps-tool key set`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			prompter := prompt.New(out)

			if os.Getenv("OBFUSPS_STRKEY") != "" {
				out.Info("OBFUSPS_STRKEY environment variable is set")
				out.Muted("Environment variable takes precedence over the stored key")
				out.Println()
			}

			key := keyFlag
			if key == "" {
				if !prompter.CanPrompt() {
					return clierrors.CannotPrompt("OBFUSPS_STRKEY")
				}

				var err error

				key, err = prompter.Password("Enter the string encryption key (hex)")
				if err != nil {
					return fmt.Errorf("read key prompt: %w", err)
				}
			}

			if key == "" {
				return clierrors.New(clierrors.ExitUsage, "Key is empty")
			}

			if _, err := hex.DecodeString(key); err != nil {
				out.Warning("Key is not valid hex; the engine may reject it")
			}

			if err := keystore.Set(key); err != nil {
				return clierrors.ConfigFailed("store key", err)
			}

			out.Success("Stored string encryption key")

			return nil
		},
	}

	cmd.Flags().StringVar(&keyFlag, "key", "", "Key for non-interactive use (prefer OBFUSPS_STRKEY env var to avoid shell history exposure)")

	return cmd
}

// KeyStatus represents the stored key for JSON output.
type KeyStatus struct {
	Source string `json:"source"`
	Key    string `json:"key"`
}

func newKeyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show where the key is stored",
		Long:  `Display the source and a masked form of the stored string encryption key.`,
		Example: `  obfusps-tool key show
  obfusps-tool key show --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			source, key := keystore.Get()
			if key == "" {
				return clierrors.KeyNotFound()
			}

			if out.JSON {
				return out.PrintJSON(KeyStatus{
					Source: string(source),
					Key:    maskKey(key),
				})
			}

			out.Print("Source: %s\n", source)
			out.Print("Key:    %s\n", maskKey(key))

			return nil
		},
	}
}

func newKeyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "clear",
		Short:   "Clear the stored key",
		Long:    `Remove the string encryption key from the keyring and the file fallback.`,
		Example: `  obfusps-tool key clear`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			if err := keystore.Delete(); err != nil {
				if strings.Contains(err.Error(), "no stored key") {
					out.Muted("No stored key found")
					return nil
				}

				return clierrors.ConfigFailed("clear key", err)
			}

			out.Success("Cleared string encryption key")

			if os.Getenv("OBFUSPS_STRKEY") != "" {
				out.Println()
				out.Warning("OBFUSPS_STRKEY environment variable is still set")
			}

			return nil
		},
	}
}

// maskKey keeps just enough of the key to recognize it.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}

	return key[:4] + strings.Repeat("*", len(key)-4)
}
