package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benzoXdev/obfusps-tool/internal/config"
	"github.com/benzoXdev/obfusps-tool/internal/engine"
	"github.com/benzoXdev/obfusps-tool/internal/keystore"
	"github.com/benzoXdev/obfusps-tool/internal/output"
	"github.com/benzoXdev/obfusps-tool/internal/paths"
	"github.com/benzoXdev/obfusps-tool/internal/workspace"
)

// PathsInfo holds all resolved paths for JSON output.
type PathsInfo struct {
	ConfigRoot    string `json:"config_root"`
	StateRoot     string `json:"state_root"`
	ConfigFile    string `json:"config_file"`
	Presets       string `json:"presets"`
	KeyFile       string `json:"key_file"`
	LogFile       string `json:"log_file"`
	UpdateState   string `json:"update_state"`
	WorkspaceRoot string `json:"workspace_root"`
	Engine        string `json:"engine"`
	KeySource     string `json:"key_source"`
}

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show where obfusps-tool stores files",
		Long: `Display all file and directory paths used by obfusps-tool.

Useful for debugging, scripting, and understanding where configuration,
presets, the key fallback and update state live on this system.`,
		Example: `  obfusps-tool paths
  obfusps-tool paths --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			info := resolvePathsInfo()

			if out.JSON {
				return out.PrintJSON(info)
			}

			out.Print("Config root:     %s\n", info.ConfigRoot)
			out.Print("State root:      %s\n", info.StateRoot)
			out.Print("\n")
			out.Print("Config file:     %s\n", info.ConfigFile)
			out.Print("Presets:         %s\n", info.Presets)
			out.Print("Key file:        %s\n", info.KeyFile)
			out.Print("Log file:        %s\n", info.LogFile)
			out.Print("Update state:    %s\n", info.UpdateState)
			out.Print("\n")
			out.Print("Working folder:  %s\n", info.WorkspaceRoot)
			out.Print("Engine:          %s\n", info.Engine)
			out.Print("Key source:      %s\n", info.KeySource)

			return nil
		},
	}
}

func resolvePathsInfo() PathsInfo {
	info := PathsInfo{}

	info.ConfigRoot = resolveOrError(paths.ConfigRoot)
	info.StateRoot = resolveOrError(paths.StateRoot)
	info.Presets = resolveOrError(paths.PresetsFile)
	info.KeyFile = resolveOrError(paths.KeyFile)
	info.LogFile = resolveOrError(paths.DefaultLogFile)
	info.UpdateState = resolveOrError(paths.UpdateStateFile)

	if cr := info.ConfigRoot; cr != "" {
		info.ConfigFile = cr + "/config.yaml"
	} else {
		info.ConfigFile = "<error: config root unavailable>"
	}

	cfg := config.Load()

	if tree, err := workspace.New(cfg.WorkspaceRoot()); err == nil {
		info.WorkspaceRoot = tree.Root
	} else {
		info.WorkspaceRoot = fmt.Sprintf("<error: %v>", err)
	}

	if strategy, err := engine.Resolve(engine.SearchDir(), cfg.EnginePath()); err == nil {
		info.Engine = strategy.String()
	} else {
		info.Engine = "not found"
	}

	source, _ := keystore.Get()
	if source == keystore.SourceNone {
		info.KeySource = "none"
	} else {
		info.KeySource = string(source)
	}

	return info
}

func resolveOrError(fn func() (string, error)) string {
	val, err := fn()
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}

	return val
}
