package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benzoXdev/obfusps-tool/internal/batch"
	"github.com/benzoXdev/obfusps-tool/internal/command"
	clierrors "github.com/benzoXdev/obfusps-tool/internal/errors"
	"github.com/benzoXdev/obfusps-tool/internal/observability"
	"github.com/benzoXdev/obfusps-tool/internal/output"
	"github.com/benzoXdev/obfusps-tool/internal/prompt"
)

func newRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend [script...]",
		Short: "Analyze scripts and print engine recommendations",
		Long: `Run the engine's analysis pass over the given scripts.

Prints the level, profile and transforms the engine would pick for each
script. Nothing is written: no backups, no output files, and the working
folder stays untouched. Equivalent to 'run --mode recommend'.`,
		Example: `  obfusps-tool recommend payload.ps1
  obfusps-tool recommend src/deploy.ps1 src/helpers.psm1`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			logger := observability.FromContext(cmd.Context())
			prompter := prompt.New(out)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			strategy, err := resolveEngine(out, logger)
			if err != nil {
				return err
			}

			files, err := collectScripts(ctx, out, prompter, args)
			if err != nil {
				return err
			}

			valid := filterValid(out, files)
			if len(valid) == 0 {
				return clierrors.NoValidFiles()
			}

			out.Println()

			runner := batch.New(batch.Options{
				Mode:     command.Recommend(),
				Strategy: strategy,
				Output:   out,
				Logger:   logger,
			})

			summary, err := runner.Run(ctx, valid)
			if err != nil {
				return err
			}

			out.Println()
			summary.Report(out)

			return nil
		},
	}
}
