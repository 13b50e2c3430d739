package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/benzoXdev/obfusps-tool/internal/command"
	"github.com/benzoXdev/obfusps-tool/internal/config"
	clierrors "github.com/benzoXdev/obfusps-tool/internal/errors"
	"github.com/benzoXdev/obfusps-tool/internal/output"
)

// configSettings is every key the tool reads, in display order. list and
// set work off this table so help output and validation cannot drift.
var configSettings = []struct {
	key     string
	summary string
}{
	{"workspace.root", "Working folder for backups and output"},
	{"obfuscate.level", "Default manual-mode level (1-5)"},
	{"obfuscate.profile", "Default manual-mode profile"},
	{"obfuscate.use_ast", "Prefer native AST transforms"},
	{"obfuscate.validate", "Validate output after obfuscation"},
	{"engine.path", "Explicit engine binary path"},
	{"update.check", "Background release checks"},
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View and modify obfusps-tool configuration settings.`,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long: `Display every setting the tool reads with its effective value, merged
from defaults, the config file and OBFUSPS_* environment variables.`,
		Example: `  obfusps-tool config list
  obfusps-tool config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()

			if out.JSON {
				settings := make(map[string]interface{}, len(configSettings))
				for _, s := range configSettings {
					settings[s.key] = cfg.Get(s.key)
				}

				return out.PrintJSON(settings)
			}

			for _, s := range configSettings {
				out.Print("%s = %s\n", s.key, displayValue(cfg.Get(s.key)))
			}

			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the effective value of a single configuration key.`,
		Example: `  obfusps-tool config get workspace.root`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]

			value := config.Load().Get(key)
			if value == nil {
				out.Muted("%s is not set", key)
				return nil
			}

			out.Print("%s = %s\n", key, displayValue(value))

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  `Set a configuration key to the given value and persist it to the config file.`,
		Example: `  obfusps-tool config set workspace.root /srv/obfuscation
  obfusps-tool config set obfuscate.level 5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, value := args[0], args[1]

			if err := validateSetting(out, key, value); err != nil {
				return err
			}

			if err := config.Load().Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			out.Success("Set %s = %s", key, value)

			return nil
		},
	}
}

// validateSetting rejects values the run command could never use and warns
// about keys the tool does not read. Unknown keys are still stored; they
// may belong to a newer tool version sharing the config file.
func validateSetting(out *output.Writer, key, value string) error {
	switch key {
	case "obfuscate.level":
		level, err := strconv.Atoi(value)
		if err != nil || level < 1 || level > command.MaxLevel {
			return &clierrors.CLIError{
				Message: fmt.Sprintf("Invalid level: %s", value),
				Hint:    fmt.Sprintf("Choose a level between 1 and %d", command.MaxLevel),
				Code:    clierrors.ExitUsage,
			}
		}
	case "obfuscate.profile":
		if _, ok := command.ResolveProfile(value); !ok {
			out.Warning("Unknown profile %q; the run command will fall back to %q", value, command.FallbackProfile)
		}
	default:
		known := false

		for _, s := range configSettings {
			if s.key == key {
				known = true
				break
			}
		}

		if !known {
			out.Warning("Unknown setting %q (stored anyway)", key)
		}
	}

	return nil
}

// displayValue renders a config value for humans; empty strings read as
// unset rather than printing nothing after the equals sign.
func displayValue(v interface{}) string {
	s := fmt.Sprintf("%v", v)
	if s == "" {
		return "(not set)"
	}

	return s
}
