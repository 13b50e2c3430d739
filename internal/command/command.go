// Package command builds engine argument vectors. The four modes differ in
// who decides the obfuscation settings: the engine (auto), the user
// (manual, command) or nobody because nothing is written (recommend).
//
// Whatever the mode, the input and output paths in the final vector are
// always the orchestrator's own. User-supplied overrides are stripped.
package command

import (
	"fmt"
	"strconv"

	shellwords "github.com/mattn/go-shellwords"

	clierrors "github.com/benzoXdev/obfusps-tool/internal/errors"
)

// Kind discriminates the mode variants.
type Kind int

const (
	// KindAuto delegates level, profile and transform selection to the
	// engine's own heuristics.
	KindAuto Kind = iota
	// KindManual uses an explicit level and profile chosen by the user.
	KindManual
	// KindCommand passes a user-assembled flag list through verbatim,
	// except for input/output overrides.
	KindCommand
	// KindRecommend analyzes files without producing output.
	KindRecommend
)

// String names the kind for logs and status lines.
func (k Kind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindManual:
		return "manual"
	case KindCommand:
		return "command"
	case KindRecommend:
		return "recommend"
	default:
		return "unknown"
	}
}

// Mode carries everything Build needs for one batch. Construct through
// Auto, Manual, Custom or Recommend; the zero value is a valid auto mode.
type Mode struct {
	Kind Kind

	// Manual settings.
	Level    int
	Profile  string
	UseAST   bool
	Validate bool

	// Command-mode flag tokens, already sanitized.
	Flags []string
}

// relaxedValidation makes the engine verify its own output without failing
// runs over stderr noise: retry on failure, ignore stderr, bounded runtime.
var relaxedValidation = []string{
	"-auto-retry",
	"-validate-stderr", "ignore",
	"-validate-timeout", "60",
}

// Auto returns the mode that lets the engine pick all settings.
func Auto() Mode {
	return Mode{Kind: KindAuto}
}

// Recommend returns the analysis-only mode.
func Recommend() Mode {
	return Mode{Kind: KindRecommend}
}

// Manual returns a mode with explicit settings. The level must be within
// the engine's scale; there is no sensible fallback for an out-of-range
// level, so the whole session aborts rather than guessing.
func Manual(level int, profile string, useAST, validate bool) (Mode, error) {
	if level < 1 || level > MaxLevel {
		return Mode{}, clierrors.InvalidLevel(level)
	}

	return Mode{
		Kind:     KindManual,
		Level:    level,
		Profile:  profile,
		UseAST:   useAST,
		Validate: validate,
	}, nil
}

// Custom tokenizes a raw flag string with shell quoting rules and returns
// the command mode carrying it. Any -i or -o the user included is dropped,
// along with its value; the returned ignored list names each dropped flag
// so the caller can tell the user.
func Custom(rawFlags string) (Mode, []string, error) {
	flags, ignored, err := sanitizeFlags(rawFlags)
	if err != nil {
		return Mode{}, nil, err
	}

	return Mode{Kind: KindCommand, Flags: flags}, ignored, nil
}

func sanitizeFlags(raw string) (flags, ignored []string, err error) {
	tokens, err := shellwords.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing flags: %w", err)
	}

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		if token == "-i" || token == "-o" {
			ignored = append(ignored, token)

			if i+1 < len(tokens) {
				i++
			}

			continue
		}

		flags = append(flags, token)
	}

	return flags, ignored, nil
}

// Build assembles the engine argument vector for one file. The module flag
// reports whether the input is a .psm1 module, which needs the engine to
// preserve exported member names.
func (m Mode) Build(inputPath, outputPath string, module bool) []string {
	if m.Kind == KindRecommend {
		return []string{"-i", inputPath, "-recommend"}
	}

	args := []string{"-i", inputPath, "-o", outputPath}

	switch m.Kind {
	case KindAuto:
		args = append(args, "-auto")
		args = append(args, relaxedValidation...)

	case KindCommand:
		args = append(args, m.Flags...)

	case KindManual:
		args = append(args, "-level", strconv.Itoa(m.Level), "-profile", m.Profile, "-context-aware")

		if module {
			args = append(args, "-module-aware")
		}

		if m.UseAST {
			args = append(args, "-use-ast")
		}

		if m.Validate {
			args = append(args, "-validate")
			args = append(args, relaxedValidation...)
		}

		if m.Level == MaxLevel {
			args = append(args, "-frag", "profile="+aggressiveFragPreset)
		}
	}

	return args
}

// InjectStringKey returns a copy of a command mode whose flag list gets
// "-strkey <key>" appended when it requests string encryption without
// providing a key. An explicit user key always wins; other modes and empty
// keys pass through unchanged.
func (m Mode) InjectStringKey(key string) Mode {
	if m.Kind != KindCommand || key == "" {
		return m
	}

	hasEnc := false

	for _, flag := range m.Flags {
		if flag == "-strkey" {
			return m
		}

		if flag == "-strenc" {
			hasEnc = true
		}
	}

	if !hasEnc {
		return m
	}

	flags := make([]string, 0, len(m.Flags)+2)
	flags = append(flags, m.Flags...)
	flags = append(flags, "-strkey", key)

	m.Flags = flags

	return m
}

// Describe renders the mode for the batch header and logs.
func (m Mode) Describe() string {
	switch m.Kind {
	case KindAuto:
		return "auto (engine selects settings)"
	case KindManual:
		return fmt.Sprintf("manual (level %d, profile %s)", m.Level, m.Profile)
	case KindCommand:
		if len(m.Flags) == 0 {
			return "command (encoding only)"
		}

		return fmt.Sprintf("command (%d flags)", len(m.Flags))
	case KindRecommend:
		return "recommend (analysis only)"
	default:
		return m.Kind.String()
	}
}
