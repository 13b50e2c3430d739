package command

import (
	"embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogFS embed.FS

// MaxLevel is the strongest obfuscation level the engine accepts.
const MaxLevel = 5

// FallbackProfile is used when the user names a profile the engine does not
// know. Falling back keeps the session alive; aborting over a typo would
// throw away the file selection the user already made.
const FallbackProfile = "balanced"

// aggressiveFragPreset is paired with MaxLevel so extreme runs always get
// the densest fragmentation.
const aggressiveFragPreset = "pro"

// Profile is a named engine tuning preset.
type Profile struct {
	Name    string `yaml:"name"`
	Summary string `yaml:"summary"`
}

// Level is one step on the engine's obfuscation strength scale.
type Level struct {
	Value   int    `yaml:"value"`
	Name    string `yaml:"name"`
	Summary string `yaml:"summary"`
}

// FragPreset is a named fragmentation size range understood by the engine's
// -frag flag.
type FragPreset struct {
	Name    string `yaml:"name"`
	Min     int    `yaml:"min"`
	Max     int    `yaml:"max"`
	Summary string `yaml:"summary"`
}

type catalog struct {
	Profiles    []Profile    `yaml:"profiles"`
	Levels      []Level      `yaml:"levels"`
	FragPresets []FragPreset `yaml:"fragPresets"`
}

// engineCatalog is loaded at package init time from the embedded YAML file.
var engineCatalog = mustLoadCatalog(catalogFS)

func mustLoadCatalog(fsys embed.FS) *catalog {
	data, err := fsys.ReadFile("catalog.yaml")
	if err != nil {
		panic(fmt.Sprintf("command: read catalog: %v", err))
	}

	var c catalog
	if unmarshalErr := yaml.Unmarshal(data, &c); unmarshalErr != nil {
		panic(fmt.Sprintf("command: unmarshal catalog: %v", unmarshalErr))
	}

	validateCatalog(&c)

	return &c
}

func validateCatalog(c *catalog) {
	if len(c.Levels) != MaxLevel {
		panic(fmt.Sprintf("command: catalog has %d levels, want %d", len(c.Levels), MaxLevel))
	}

	for i, level := range c.Levels {
		if level.Value != i+1 {
			panic(fmt.Sprintf("command: catalog level %d out of order (value %d)", i, level.Value))
		}
	}

	seen := make(map[string]bool, len(c.Profiles))

	for _, profile := range c.Profiles {
		if profile.Name == "" {
			panic("command: catalog profile with empty name")
		}

		if seen[profile.Name] {
			panic(fmt.Sprintf("command: duplicate catalog profile %q", profile.Name))
		}

		seen[profile.Name] = true
	}

	if !seen[FallbackProfile] {
		panic(fmt.Sprintf("command: catalog missing fallback profile %q", FallbackProfile))
	}

	found := false

	for _, preset := range c.FragPresets {
		if preset.Name == aggressiveFragPreset {
			found = true
			break
		}
	}

	if !found {
		panic(fmt.Sprintf("command: catalog missing frag preset %q", aggressiveFragPreset))
	}
}

// Profiles returns all selectable profiles in menu order.
func Profiles() []Profile {
	out := make([]Profile, len(engineCatalog.Profiles))
	copy(out, engineCatalog.Profiles)

	return out
}

// Levels returns the obfuscation levels in ascending strength order.
func Levels() []Level {
	out := make([]Level, len(engineCatalog.Levels))
	copy(out, engineCatalog.Levels)

	return out
}

// FragPresets returns the fragmentation presets the engine's -frag flag
// accepts.
func FragPresets() []FragPreset {
	out := make([]FragPreset, len(engineCatalog.FragPresets))
	copy(out, engineCatalog.FragPresets)

	return out
}

// ResolveProfile maps user input, a profile name or a 1-based menu index,
// to a catalog profile name. Unknown input resolves to FallbackProfile with
// ok = false so the caller can warn.
func ResolveProfile(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)

	if idx, err := strconv.Atoi(trimmed); err == nil {
		if idx >= 1 && idx <= len(engineCatalog.Profiles) {
			return engineCatalog.Profiles[idx-1].Name, true
		}

		return FallbackProfile, false
	}

	lower := strings.ToLower(trimmed)

	for _, profile := range engineCatalog.Profiles {
		if profile.Name == lower {
			return profile.Name, true
		}
	}

	return FallbackProfile, false
}
