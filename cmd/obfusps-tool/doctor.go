package main

import (
	"github.com/spf13/cobra"

	"github.com/benzoXdev/obfusps-tool/internal/doctor"
	"github.com/benzoXdev/obfusps-tool/internal/output"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify engine and environment issues.

Checks performed:
  - Engine resolution and probe round-trip
  - PowerShell availability for AST transforms and validation
  - Go toolchain presence for the source-run fallback
  - Config directory writability
  - CLI version against the latest release`,
		Example: `  obfusps-tool doctor`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			out.Println("ObfusPS Doctor")
			out.Println("==============")
			out.Println()

			results := doctor.New().Run(cmd.Context())

			doctor.RenderResults(results, out.Print, out.Success, out.Warning, out.Failure, out.Muted)

			passed, failed, warnings := doctor.Summary(results)

			out.Println()
			out.Print("%d passed", passed)

			if failed > 0 {
				out.Print(", %d failed", failed)
			}

			if warnings > 0 {
				out.Print(", %d warning(s)", warnings)
			}

			out.Println()

			return nil
		},
	}
}
