package main

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/benzoXdev/obfusps-tool/internal/command"
	"github.com/benzoXdev/obfusps-tool/internal/output"
)

// engineFlag is one row of the flag reference: the flag with its argument
// shape, and what it does.
type engineFlag struct {
	spec    string
	summary string
}

type flagGroup struct {
	title string
	flags []engineFlag
}

// engineFlagGroups returns the engine's flag surface grouped by concern.
// Profile and fragmentation names come from the catalog so the sheet can
// never drift from what the menus offer.
func engineFlagGroups() []flagGroup {
	profiles := command.Profiles()

	profileNames := make([]string, len(profiles))
	for i, p := range profiles {
		profileNames[i] = p.Name
	}

	frags := command.FragPresets()

	fragNames := make([]string, len(frags))
	for i, f := range frags {
		fragNames[i] = f.Name
	}

	return []flagGroup{
		{title: "Core", flags: []engineFlag{
			{"-level 1..5", "Obfuscation level (1=weak .. 5=extreme)"},
			{"-profile <name>", "Preset: " + strings.Join(profileNames, "|")},
			{"-layers <L1,L2,...>", "Layers: AST,Flow,Encoding,Runtime"},
			{"-pipeline <t1,t2,...>", "Custom: iden,strenc,stringdict,numenc,fmt,cf,dead"},
		}},
		{title: "Encoding transforms", flags: []engineFlag{
			{"-strenc off|xor|rc4", "String encryption mode"},
			{"-strkey <hex>", "Hex key for -strenc (e.g. a1b2c3d4)"},
			{"-stringdict 0..100", "String tokenization percentage"},
			{"-numenc", "Enable number encoding"},
			{"-iden obf|keep", "Identifier morphing (obf=rename)"},
			{"-fmt off|jitter", "Format jitter (whitespace randomization)"},
		}},
		{title: "Flow transforms", flags: []engineFlag{
			{"-cf-opaque", "Opaque predicate wrapper"},
			{"-cf-shuffle", "Shuffle function blocks"},
			{"-deadcode 0..100", "Dead-code injection probability"},
			{"-flow-unsafe", "Disable FlowSafeMode (redteam/paranoid)"},
		}},
		{title: "Level 5 / fragmentation", flags: []engineFlag{
			{"-frag profile=<p>", "Preset: " + strings.Join(fragNames, "|")},
			{"-minfrag N", "Minimum fragment size (default 10)"},
			{"-maxfrag N", "Maximum fragment size (default 20)"},
			{"-no-integrity", "Disable integrity check (default=true)"},
			{"-no-integrity=false", "Enable integrity check"},
		}},
		{title: "Smart / auto", flags: []engineFlag{
			{"-auto", "Auto-detect best profile/level/flags"},
			{"-auto-retry", "Auto-retry with safer settings on failure"},
			{"-recommend", "Analyze only, print recommendations"},
		}},
		{title: "Validation", flags: []engineFlag{
			{"-validate", "Compare original vs obfuscated output"},
			{`-validate-args "..."`, "Args passed to script during validation"},
			{"-validate-stderr <m>", "strict|ignore (default=strict)"},
			{"-validate-timeout N", "Timeout in seconds (default=30)"},
		}},
		{title: "AST / protection", flags: []engineFlag{
			{"-use-ast", "Use native PowerShell AST (requires pwsh)"},
			{"-context-aware", "Skip strenc for IEX/Add-Type/ScriptBlock"},
			{"-module-aware", "Protect Import-Module, dot-sourcing, exports"},
			{"-anti-reverse", "Inject anti-debug/sandbox checks"},
		}},
		{title: "Output / misc", flags: []engineFlag{
			{"-seed N", "RNG seed (0=random, N=reproducible)"},
			{"-fuzz N", "Generate N fuzzed variants"},
			{"-report", "Emit obfuscation report"},
			{"-dry-run", "Analyze only, no output"},
			{"-noexec", "Payload only, no Invoke-Expression"},
			{"-q", "Quiet mode (no banner)"},
			{"-log file.log", "Write debug log to file"},
		}},
	}
}

// engineFlagExamples are complete flag lines known to work against the
// engine, shown verbatim under the reference.
var engineFlagExamples = []string{
	"-level 5 -profile redteam -anti-reverse -validate",
	"-level 3 -profile balanced -strenc xor -strkey a1b2c3d4 -numenc",
	"-auto -auto-retry -validate -validate-stderr ignore",
	"-layers AST,Flow,Encoding,Runtime -report",
	"-level 4 -pipeline iden,strenc,numenc,fmt -iden obf -strenc rc4 -strkey 0011",
	"-level 5 -frag profile=pro -minfrag 5 -maxfrag 14 -seed 42",
	"-profile heavy -context-aware -use-ast -module-aware -validate",
	"-level 3 -profile safe -seed 12345 -validate -report",
	"-level 5 -profile paranoid -flow-unsafe -anti-reverse -fuzz 3",
	"-dry-run -level 4 -profile stealth",
}

// ruleWidth is the total width of a section rule in terminal cells.
const ruleWidth = 60

// renderFlagsCheatSheet prints the grouped flag reference. Command mode
// shows it before asking for flags; the flags command prints it alone.
func renderFlagsCheatSheet(out *output.Writer) {
	groups := engineFlagGroups()

	width := 0

	for _, group := range groups {
		for _, flag := range group.flags {
			if w := cellWidth(flag.spec); w > width {
				width = w
			}
		}
	}

	for i, group := range groups {
		if i > 0 {
			out.Println()
		}

		out.Print("%s\n", sectionRule(group.title))

		for _, flag := range group.flags {
			out.Print("  %s%s\n", padCell(flag.spec, width+2), flag.summary)
		}
	}

	out.Println()
	out.Print("%s\n", sectionRule("Examples"))

	for _, example := range engineFlagExamples {
		out.Print("  %s\n", example)
	}

	out.Println()
}

// sectionRule renders "── Title ───────" padded to ruleWidth cells.
func sectionRule(title string) string {
	head := "── " + title + " "

	pad := ruleWidth - cellWidth(head)
	if pad < 0 {
		pad = 0
	}

	return head + strings.Repeat("─", pad)
}

// padCell right-pads s with spaces to the given terminal cell width.
// Plain len() would misalign columns the moment a label carries a wide
// rune, so measurement goes through runewidth.
func padCell(s string, width int) string {
	return runewidth.FillRight(s, width)
}

func cellWidth(s string) int {
	return runewidth.StringWidth(s)
}

func newFlagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flags",
		Short: "Show the engine flag reference for command mode",
		Long: `List every flag the obfusps engine accepts, grouped by concern.

These are the flags command mode passes through (run --flags "...").
The tool always fills in -i and -o itself, so they are absent here.`,
		Example: `  obfusps-tool flags`,
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())

			renderFlagsCheatSheet(out)

			return nil
		},
	}
}
