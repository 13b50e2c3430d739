package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benzoXdev/obfusps-tool/internal/batch"
	"github.com/benzoXdev/obfusps-tool/internal/command"
	"github.com/benzoXdev/obfusps-tool/internal/config"
	"github.com/benzoXdev/obfusps-tool/internal/engine"
	clierrors "github.com/benzoXdev/obfusps-tool/internal/errors"
	"github.com/benzoXdev/obfusps-tool/internal/keystore"
	"github.com/benzoXdev/obfusps-tool/internal/observability"
	"github.com/benzoXdev/obfusps-tool/internal/output"
	"github.com/benzoXdev/obfusps-tool/internal/paths"
	"github.com/benzoXdev/obfusps-tool/internal/picker"
	"github.com/benzoXdev/obfusps-tool/internal/preset"
	"github.com/benzoXdev/obfusps-tool/internal/prompt"
	"github.com/benzoXdev/obfusps-tool/internal/script"
	"github.com/benzoXdev/obfusps-tool/internal/workspace"
)

// runOptions carries the run command's flag values. The *Set fields record
// whether the user passed the flag explicitly, which decides when flags
// imply manual mode and when the interactive menu still asks.
type runOptions struct {
	mode      string
	level     int
	profile   string
	useAST    bool
	validate  bool
	rawFlags  string
	preset    string
	workspace string

	levelSet   bool
	profileSet bool
}

func newRunCmd() *cobra.Command {
	cfg := config.Load()

	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [script...]",
		Short: "Obfuscate a batch of PowerShell scripts",
		Long: `Run the ObfusPS engine over a batch of .ps1/.psm1 scripts.

Without arguments, a terminal browser opens to pick scripts and the mode
is chosen from a menu. With script paths (or mode flags), the batch runs
without questions, suitable for scripting and CI.

Each batch resets the working folder: verbatim backups land in Script/,
engine output in Script-Obfuscate/. Scripts that already live inside the
working folder are cached first so the reset cannot eat an input.

Modes: auto lets the engine detect the best settings per script, manual
fixes a level and profile, command passes raw engine flags through, and
recommend only analyzes. -i and -o are always filled in per file.`,
		Example: `  obfusps-tool run
  obfusps-tool run payload.ps1 helper.psm1
  obfusps-tool run --mode manual --level 5 --profile redteam payload.ps1
  obfusps-tool run --flags "-auto -report" payload.ps1
  obfusps-tool run --preset nightly payload.ps1`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.levelSet = cmd.Flags().Changed("level")
			opts.profileSet = cmd.Flags().Changed("profile")

			out := output.FromContext(cmd.Context())
			logger := observability.FromContext(cmd.Context())
			prompter := prompt.New(out)

			// Interrupt stops the engine process group mid-batch; completed
			// outputs stay on disk.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			printBanner(out, version)

			strategy, err := resolveEngine(out, logger)
			if err != nil {
				return err
			}

			// Re-prompt for another batch only in the fully interactive flow;
			// with paths on the command line one batch is the whole job.
			again := len(args) == 0 && prompter.CanPrompt()

			for {
				if err := runBatch(ctx, out, logger, prompter, strategy, opts, args); err != nil {
					return err
				}

				if !again || ctx.Err() != nil {
					return nil
				}

				out.Println()

				more, err := prompter.Confirm("Run another batch?", false)
				if err != nil || !more {
					return nil
				}

				out.Println()
			}
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "", "Batch mode: auto, manual, command, recommend")
	cmd.Flags().IntVar(&opts.level, "level", cfg.Level(), "Obfuscation level 1-5 for manual mode")
	cmd.Flags().StringVar(&opts.profile, "profile", cfg.Profile(), "Engine profile for manual mode")
	cmd.Flags().BoolVar(&opts.useAST, "use-ast", cfg.UseAST(), "Use the native PowerShell AST when available")
	cmd.Flags().BoolVar(&opts.validate, "validate", cfg.Validate(), "Validate output behavior after obfuscation")
	cmd.Flags().StringVar(&opts.rawFlags, "flags", "", "Raw engine flags, implies command mode")
	cmd.Flags().StringVar(&opts.preset, "preset", "", "Run with a stored preset (see 'obfusps-tool preset list')")
	cmd.Flags().StringVar(&opts.workspace, "workspace", cfg.WorkspaceRoot(), "Working folder for backups and output")

	return cmd
}

// resolveEngine locates the engine once for the whole session and reports
// how it will be started.
func resolveEngine(out *output.Writer, logger *slog.Logger) (engine.Strategy, error) {
	cfg := config.Load()

	locator := &engine.Locator{
		SearchDir:    engine.SearchDir(),
		ExplicitPath: cfg.EnginePath(),
	}

	strategy, err := locator.Strategy()
	if err != nil {
		logger.Error("engine resolution failed", slog.String("error", err.Error()))

		return engine.Strategy{}, clierrors.EngineNotFound()
	}

	out.Muted("Engine: %s", strategy)
	logger.Info("engine resolved", slog.String("strategy", strategy.String()))

	return strategy, nil
}

// runBatch executes one full batch: collect files, choose a mode, prepare
// the working folder, process, report.
func runBatch(ctx context.Context, out *output.Writer, logger *slog.Logger, prompter *prompt.Prompter, strategy engine.Strategy, opts runOptions, args []string) error {
	files, err := collectScripts(ctx, out, prompter, args)
	if err != nil {
		return err
	}

	valid := filterValid(out, files)
	if len(valid) == 0 {
		return clierrors.NoValidFiles()
	}

	mode, err := chooseMode(out, prompter, opts)
	if err != nil {
		return err
	}

	mode = injectStoredKey(out, mode)

	out.Info("Mode: %s", mode.Describe())
	logger.InfoContext(ctx, "batch configured",
		slog.String("mode", mode.Kind.String()),
		slog.Int("files", len(valid)),
		slog.String("strategy", strategy.String()),
	)

	batchOpts := batch.Options{
		Mode:     mode,
		Strategy: strategy,
		Output:   out,
		Logger:   logger,
	}

	// Recommend writes nothing, so the working folder stays untouched.
	if mode.Kind != command.KindRecommend {
		tree, err := workspace.New(opts.workspace)
		if err != nil {
			return err
		}

		out.Info("Working folder: %s", tree.Root)

		snapshot, warnings, err := tree.Prepare(valid)
		if err != nil {
			return clierrors.WorkspaceResetFailed(tree.Root, err)
		}

		for _, w := range warnings {
			out.Warning("Cannot read %s: %v", w.Path, w.Err)
		}

		for _, path := range valid {
			if _, ok := snapshot[path]; ok {
				out.Info("Cached: %s (inside working folder)", filepath.Base(path))
			}
		}

		batchOpts.Tree = tree
		batchOpts.Snapshot = snapshot
	}

	out.Println()

	summary, err := batch.New(batchOpts).Run(ctx, valid)
	if err != nil {
		return err
	}

	out.Println()
	summary.Report(out)

	return nil
}

// collectScripts gathers input paths: command-line arguments first, then
// the terminal browser, then manual comma-separated entry as the fallback
// the browser offers on cancel or error.
func collectScripts(ctx context.Context, out *output.Writer, prompter *prompt.Prompter, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	if !prompter.CanPrompt() {
		return nil, clierrors.NoFilesSelected()
	}

	picked, err := picker.Run(ctx, ".")
	if err == nil {
		out.Info("Selected files:")

		for _, path := range picked {
			out.Muted("  %s", path)
		}

		return picked, nil
	}

	if ctx.Err() != nil {
		return nil, err
	}

	if !errors.Is(err, picker.ErrCanceled) {
		out.Warning("Script browser unavailable: %v", err)
	}

	out.Info("No selection. Enter paths manually?")

	entered, err := prompter.PathList("Paths (comma-separated) or Enter to cancel")
	if err != nil {
		if prompt.IsCanceled(err) {
			return nil, clierrors.NoFilesSelected()
		}

		return nil, err
	}

	return entered, nil
}

// filterValid keeps the inputs the engine can work on, reporting each
// reject. Rejects never abort the batch; an all-reject batch does.
func filterValid(out *output.Writer, raws []string) []string {
	valid := make([]string, 0, len(raws))

	for _, raw := range raws {
		path, err := script.Sanitize(raw)
		if err != nil {
			out.Failure("Invalid path %s: %v", strings.TrimSpace(raw), err)
			continue
		}

		if err := script.Validate(path); err != nil {
			out.Failure("%s: %v", path, err)
			continue
		}

		valid = append(valid, path)
	}

	return valid
}

// chooseMode turns flags into a runnable mode, asking interactively only
// when nothing on the command line already decided it.
func chooseMode(out *output.Writer, prompter *prompt.Prompter, opts runOptions) (command.Mode, error) {
	if opts.preset != "" {
		return presetMode(out, opts.preset)
	}

	if opts.rawFlags != "" {
		return commandMode(out, opts.rawFlags)
	}

	name := strings.ToLower(strings.TrimSpace(opts.mode))
	if name == "" && (opts.levelSet || opts.profileSet) {
		name = "manual"
	}

	switch name {
	case "":
		if prompter.CanPrompt() {
			return promptMode(out, prompter, opts)
		}

		return command.Auto(), nil
	case "auto":
		return command.Auto(), nil
	case "manual":
		return manualMode(out, opts)
	case "command":
		if !prompter.CanPrompt() {
			return command.Mode{}, clierrors.CannotPrompt("--flags")
		}

		return promptCommandMode(out, prompter)
	case "recommend":
		return command.Recommend(), nil
	default:
		return command.Mode{}, &clierrors.CLIError{
			Message: fmt.Sprintf("Unknown mode: %s", opts.mode),
			Hint:    "Choose auto, manual, command, or recommend",
			Code:    clierrors.ExitUsage,
		}
	}
}

// presetMode loads a stored preset and converts it into a mode.
func presetMode(out *output.Writer, name string) (command.Mode, error) {
	path, err := paths.PresetsFile()
	if err != nil {
		return command.Mode{}, clierrors.ConfigFailed("locate presets file", err)
	}

	store, err := preset.Load(path)
	if err != nil {
		return command.Mode{}, clierrors.ConfigFailed("read presets file", err)
	}

	stored, ok := store.Get(name)
	if !ok {
		return command.Mode{}, clierrors.PresetNotFound(name)
	}

	mode, ignored, err := stored.ToMode()
	if err != nil {
		return command.Mode{}, err
	}

	reportIgnored(out, ignored)

	return mode, nil
}

// commandMode parses raw engine flags into a command mode and echoes what
// the engine will actually get.
func commandMode(out *output.Writer, raw string) (command.Mode, error) {
	mode, ignored, err := command.Custom(raw)
	if err != nil {
		return command.Mode{}, &clierrors.CLIError{
			Message: fmt.Sprintf("Could not parse flags: %v", err),
			Hint:    "Check quoting; for example: --flags '-strenc xor -validate-args \"arg1 arg2\"'",
			Code:    clierrors.ExitUsage,
		}
	}

	reportIgnored(out, ignored)

	if len(mode.Flags) == 0 {
		out.Info("Flags: (encoding only)")
	} else {
		out.Info("Flags: %s", strings.Join(mode.Flags, " "))
	}

	return mode, nil
}

func reportIgnored(out *output.Writer, ignored []string) {
	for _, flag := range ignored {
		out.Warning("Ignoring %s (filled in per file)", flag)
	}
}

// manualMode builds a manual mode from flag values, falling back to the
// default profile with a warning when the name is unknown.
func manualMode(out *output.Writer, opts runOptions) (command.Mode, error) {
	profile, ok := command.ResolveProfile(opts.profile)
	if !ok {
		out.Warning("Unknown profile %q, using %q", opts.profile, profile)
	}

	return command.Manual(opts.level, profile, opts.useAST, opts.validate)
}

// promptMode walks the interactive menu chain: mode, then whatever the
// chosen mode still needs.
func promptMode(out *output.Writer, prompter *prompt.Prompter, opts runOptions) (command.Mode, error) {
	choice, err := prompter.Select("Mode", []string{
		padCell("AUTO", modeMenuPad) + "engine detects the best settings per script",
		padCell("MANUAL", modeMenuPad) + "choose an obfuscation level and profile",
		padCell("COMMAND", modeMenuPad) + "type raw engine flags",
		padCell("RECOMMEND", modeMenuPad) + "analyze only, write nothing",
	})
	if err != nil {
		return command.Mode{}, fmt.Errorf("reading mode selection: %w", err)
	}

	switch choice {
	case 0:
		return command.Auto(), nil
	case 1:
		return promptManualMode(prompter, opts)
	case 2:
		return promptCommandMode(out, prompter)
	default:
		return command.Recommend(), nil
	}
}

const modeMenuPad = 12

// promptManualMode asks the manual-mode questions in the catalog's menu
// order. Defaults come from configuration via the flag defaults.
func promptManualMode(prompter *prompt.Prompter, opts runOptions) (command.Mode, error) {
	levels := command.Levels()

	levelOptions := make([]string, len(levels))
	for i, level := range levels {
		levelOptions[i] = padCell(level.Name, catalogNameWidth(levels)) + level.Summary
	}

	li, err := prompter.Select("Obfuscation level", levelOptions)
	if err != nil {
		return command.Mode{}, fmt.Errorf("reading level selection: %w", err)
	}

	profiles := command.Profiles()

	profileOptions := make([]string, len(profiles))
	for i, profile := range profiles {
		profileOptions[i] = padCell(profile.Name, profileNameWidth(profiles)) + profile.Summary
	}

	pi, err := prompter.Select("Profile", profileOptions)
	if err != nil {
		return command.Mode{}, fmt.Errorf("reading profile selection: %w", err)
	}

	useAST, err := prompter.Confirm("Use native AST when available?", opts.useAST)
	if err != nil {
		return command.Mode{}, fmt.Errorf("reading AST choice: %w", err)
	}

	validate, err := prompter.Confirm("Validate output after obfuscation?", opts.validate)
	if err != nil {
		return command.Mode{}, fmt.Errorf("reading validation choice: %w", err)
	}

	return command.Manual(levels[li].Value, profiles[pi].Name, useAST, validate)
}

// promptCommandMode shows the flag reference and reads a raw flag string.
func promptCommandMode(out *output.Writer, prompter *prompt.Prompter) (command.Mode, error) {
	out.Info("COMMAND mode: flags go to the engine as typed; -i and -o are filled in per file")
	out.Println()

	renderFlagsCheatSheet(out)

	raw, err := prompter.Input("Flags", "")
	if err != nil {
		return command.Mode{}, fmt.Errorf("reading flags: %w", err)
	}

	return commandMode(out, raw)
}

// injectStoredKey appends the stored string encryption key to command-mode
// flag lists that enable -strenc without naming a -strkey.
func injectStoredKey(out *output.Writer, mode command.Mode) command.Mode {
	if mode.Kind != command.KindCommand {
		return mode
	}

	source, key := keystore.Get()
	if key == "" {
		return mode
	}

	injected := mode.InjectStringKey(key)
	if len(injected.Flags) != len(mode.Flags) {
		out.Info("Using string key from %s", source)
	}

	return injected
}

func catalogNameWidth(levels []command.Level) int {
	width := 0

	for _, level := range levels {
		if w := cellWidth(level.Name); w > width {
			width = w
		}
	}

	return width + 2
}

func profileNameWidth(profiles []command.Profile) int {
	width := 0

	for _, profile := range profiles {
		if w := cellWidth(profile.Name); w > width {
			width = w
		}
	}

	return width + 2
}
