package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benzoXdev/obfusps-tool/internal/command"
	"github.com/benzoXdev/obfusps-tool/internal/config"
	clierrors "github.com/benzoXdev/obfusps-tool/internal/errors"
	"github.com/benzoXdev/obfusps-tool/internal/output"
	"github.com/benzoXdev/obfusps-tool/internal/paths"
	"github.com/benzoXdev/obfusps-tool/internal/preset"
	"github.com/benzoXdev/obfusps-tool/internal/prompt"
)

func newPresetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage stored run configurations",
		Long: `Store, inspect and remove named presets.

A preset answers the interactive questions (mode, level, profile, AST,
validation or raw flags) once, so 'run --preset <name>' repeats the same
batch configuration without asking.`,
	}

	cmd.AddCommand(newPresetListCmd())
	cmd.AddCommand(newPresetShowCmd())
	cmd.AddCommand(newPresetSaveCmd())
	cmd.AddCommand(newPresetDeleteCmd())

	return cmd
}

// loadPresetStore opens the store at its standard location.
func loadPresetStore() (*preset.Store, error) {
	path, err := paths.PresetsFile()
	if err != nil {
		return nil, clierrors.ConfigFailed("locate presets file", err)
	}

	store, err := preset.Load(path)
	if err != nil {
		return nil, clierrors.ConfigFailed("read presets file", err)
	}

	return store, nil
}

func newPresetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored presets",
		Long:  `Display all stored presets with a one-line summary of each.`,
		Example: `  obfusps-tool preset list
  obfusps-tool preset list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			store, err := loadPresetStore()
			if err != nil {
				return err
			}

			names := store.Names()

			if out.JSON {
				presets := make(map[string]preset.Preset, len(names))
				for _, name := range names {
					p, _ := store.Get(name)
					presets[name] = p
				}

				return out.PrintJSON(presets)
			}

			if len(names) == 0 {
				out.Muted("No presets saved.")
				out.Print("Save one with: obfusps-tool preset save <name> --mode auto\n")

				return nil
			}

			width := 0
			for _, name := range names {
				if w := cellWidth(name); w > width {
					width = w
				}
			}

			for _, name := range names {
				p, _ := store.Get(name)
				out.Print("%s%s\n", padCell(name, width+2), presetSummary(p))
			}

			return nil
		},
	}
}

// presetSummary renders one preset for the list view. Unset manual fields
// show the values ToMode would fall back to.
func presetSummary(p preset.Preset) string {
	switch p.Mode {
	case "manual":
		level := p.Level
		if level == 0 {
			level = config.DefaultLevel
		}

		profile := p.Profile
		if profile == "" {
			profile = command.FallbackProfile
		}

		return fmt.Sprintf("manual (level %d, profile %s)", level, profile)
	case "command":
		return fmt.Sprintf("command (%s)", p.Flags)
	default:
		return p.Mode
	}
}

func newPresetShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a stored preset",
		Long:  `Display every field of a stored preset.`,
		Example: `  obfusps-tool preset show nightly
  obfusps-tool preset show nightly --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name := args[0]

			store, err := loadPresetStore()
			if err != nil {
				return err
			}

			p, ok := store.Get(name)
			if !ok {
				return clierrors.PresetNotFound(name)
			}

			if out.JSON {
				return out.PrintJSON(p)
			}

			out.Print("Name:        %s\n", name)

			if p.Description != "" {
				out.Print("Description: %s\n", p.Description)
			}

			out.Print("Mode:        %s\n", p.Mode)

			switch p.Mode {
			case "manual":
				level := p.Level
				if level == 0 {
					level = config.DefaultLevel
				}

				profile := p.Profile
				if profile == "" {
					profile = command.FallbackProfile
				}

				out.Print("Level:       %d\n", level)
				out.Print("Profile:     %s\n", profile)
				out.Print("Use AST:     %t\n", p.UseAST)
				out.Print("Validate:    %t\n", p.Validate)
			case "command":
				out.Print("Flags:       %s\n", p.Flags)
			}

			return nil
		},
	}
}

func newPresetSaveCmd() *cobra.Command {
	cfg := config.Load()

	var (
		p     preset.Preset
		force bool
	)

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a preset",
		Long: `Store a named run configuration.

The mode decides which other flags matter: manual uses level, profile,
use-ast and validate; command uses flags; auto and recommend need nothing
else. Saving over an existing name asks first unless --force is given.`,
		Example: `  obfusps-tool preset save nightly --mode auto
  obfusps-tool preset save hard --mode manual --level 5 --profile redteam
  obfusps-tool preset save custom --mode command --flags "-auto -report"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name := args[0]

			if p.Mode == "manual" && cmd.Flags().Changed("profile") {
				resolved, ok := command.ResolveProfile(p.Profile)
				if !ok {
					out.Warning("Unknown profile %q, using %q", p.Profile, resolved)
				}

				p.Profile = resolved
			}

			store, err := loadPresetStore()
			if err != nil {
				return err
			}

			if _, exists := store.Get(name); exists && !force {
				if out.NoInput {
					return clierrors.New(clierrors.ExitUsage, fmt.Sprintf("Preset already exists: %s", name)).
						WithHint("Use --force to overwrite")
				}

				prompter := prompt.New(out)

				confirmed, promptErr := prompter.Confirm(fmt.Sprintf("Overwrite preset '%s'?", name), false)
				if promptErr != nil {
					return clierrors.Wrap(clierrors.ExitGeneral, "Failed to read confirmation", promptErr)
				}

				if !confirmed {
					out.Info("Save canceled")
					return nil
				}
			}

			if err := store.Set(name, p); err != nil {
				return clierrors.Wrap(clierrors.ExitUsage, "Invalid preset", err)
			}

			if err := store.Save(); err != nil {
				return clierrors.ConfigFailed("save presets file", err)
			}

			out.Success("Saved preset %s (%s)", name, presetSummary(p))

			return nil
		},
	}

	cmd.Flags().StringVar(&p.Description, "description", "", "Free-form note shown by preset show")
	cmd.Flags().StringVar(&p.Mode, "mode", "", "Batch mode: auto, manual, command, recommend (required)")
	cmd.Flags().IntVar(&p.Level, "level", 0, "Obfuscation level 1-5 for manual mode")
	cmd.Flags().StringVar(&p.Profile, "profile", "", "Engine profile for manual mode")
	cmd.Flags().BoolVar(&p.UseAST, "use-ast", cfg.UseAST(), "Use the native PowerShell AST when available")
	cmd.Flags().BoolVar(&p.Validate, "validate", cfg.Validate(), "Validate output behavior after obfuscation")
	cmd.Flags().StringVar(&p.Flags, "flags", "", "Raw engine flags for command mode")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing preset without prompting")

	_ = cmd.MarkFlagRequired("mode")

	return cmd
}

func newPresetDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <name>",
		Short:   "Delete a stored preset",
		Long:    `Remove a stored preset. Asks for confirmation unless --force is given.`,
		Example: `  obfusps-tool preset delete nightly`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			name := args[0]

			store, err := loadPresetStore()
			if err != nil {
				return err
			}

			if _, ok := store.Get(name); !ok {
				return clierrors.PresetNotFound(name)
			}

			if !force {
				if out.NoInput {
					return clierrors.New(clierrors.ExitUsage, "Cannot confirm delete in non-interactive mode").
						WithHint("Use --force to skip confirmation")
				}

				prompter := prompt.New(out)

				confirmed, promptErr := prompter.Confirm(fmt.Sprintf("Delete preset '%s'?", name), false)
				if promptErr != nil {
					return clierrors.Wrap(clierrors.ExitGeneral, "Failed to read confirmation", promptErr)
				}

				if !confirmed {
					out.Info("Delete canceled")
					return nil
				}
			}

			store.Delete(name)

			if err := store.Save(); err != nil {
				return clierrors.ConfigFailed("save presets file", err)
			}

			out.Success("Deleted preset %s", name)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
