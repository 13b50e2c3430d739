package main

import (
	"github.com/spf13/cobra"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for your shell.

Load it in the current session or install it permanently:

Bash:
  source <(obfusps-tool completion bash)
  obfusps-tool completion bash > /etc/bash_completion.d/obfusps-tool

Zsh:
  obfusps-tool completion zsh > "${fpath[1]}/_obfusps-tool"

Fish:
  obfusps-tool completion fish > ~/.config/fish/completions/obfusps-tool.fish

PowerShell:
  obfusps-tool completion powershell | Out-String | Invoke-Expression`,
		Example:               `  obfusps-tool completion zsh`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(cmd.OutOrStdout(), true)
			case "zsh":
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			}

			return nil
		},
	}
}
