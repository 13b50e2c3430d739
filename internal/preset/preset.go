// Package preset stores named, reusable run configurations in a TOML file
// under the user's config directory. A preset answers the interactive
// questions (mode, level, profile, AST, validation) once so repeat runs
// can skip them.
package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/benzoXdev/obfusps-tool/internal/command"
)

// Preset is one stored run configuration. Mode decides which of the other
// fields matter.
type Preset struct {
	Description string `toml:"description,omitempty"`
	Mode        string `toml:"mode"`
	Level       int    `toml:"level,omitempty"`
	Profile     string `toml:"profile,omitempty"`
	UseAST      bool   `toml:"use_ast,omitempty"`
	Validate    bool   `toml:"validate,omitempty"`
	Flags       string `toml:"flags,omitempty"`
}

type storeFile struct {
	Presets map[string]Preset `toml:"presets"`
}

// Store reads and writes the preset file.
type Store struct {
	path    string
	presets map[string]Preset
}

// Load opens the preset store at path. A missing file is an empty store,
// not an error: the first Save creates it.
func Load(path string) (*Store, error) {
	store := &Store{path: path, presets: make(map[string]Preset)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading presets: %w", err)
	}

	var file storeFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if file.Presets != nil {
		store.presets = file.Presets
	}

	return store, nil
}

// Get returns the named preset.
func (s *Store) Get(name string) (Preset, bool) {
	p, ok := s.presets[name]
	return p, ok
}

// Names returns all preset names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.presets))
	for name := range s.presets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Set stores a preset under name, replacing any existing one.
func (s *Store) Set(name string, p Preset) error {
	if err := validateName(name); err != nil {
		return err
	}

	if err := p.validate(); err != nil {
		return fmt.Errorf("preset %q: %w", name, err)
	}

	s.presets[name] = p

	return nil
}

// Delete removes the named preset and reports whether it existed.
func (s *Store) Delete(name string) bool {
	_, ok := s.presets[name]
	delete(s.presets, name)

	return ok
}

// Save writes the store back to its file, creating parent directories as
// needed.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(storeFile{Presets: s.presets})
	if err != nil {
		return fmt.Errorf("encoding presets: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}

	return nil
}

func validateName(name string) error {
	if name == "" {
		return errors.New("preset name is required")
	}

	if strings.ContainsAny(name, " \t\n/\\") {
		return fmt.Errorf("invalid preset name %q", name)
	}

	return nil
}

func (p Preset) validate() error {
	switch p.Mode {
	case "auto", "recommend":
		return nil
	case "manual":
		if p.Level != 0 && (p.Level < 1 || p.Level > command.MaxLevel) {
			return fmt.Errorf("level %d out of range 1-%d", p.Level, command.MaxLevel)
		}

		return nil
	case "command":
		if strings.TrimSpace(p.Flags) == "" {
			return errors.New("command preset needs flags")
		}

		return nil
	case "":
		return errors.New("mode is required")
	default:
		return fmt.Errorf("unknown mode %q (use auto, manual, command or recommend)", p.Mode)
	}
}

// ToMode converts the preset into a runnable mode. The second return value
// names flags that were stripped from a command preset, mirroring Custom.
// Unset manual fields fall back to level 3 and the default profile.
func (p Preset) ToMode() (command.Mode, []string, error) {
	switch p.Mode {
	case "auto":
		return command.Auto(), nil, nil

	case "recommend":
		return command.Recommend(), nil, nil

	case "command":
		return command.Custom(p.Flags)

	case "manual":
		level := p.Level
		if level == 0 {
			level = 3
		}

		profile := p.Profile
		if profile == "" {
			profile = command.FallbackProfile
		} else {
			profile, _ = command.ResolveProfile(profile)
		}

		mode, err := command.Manual(level, profile, p.UseAST, p.Validate)

		return mode, nil, err

	default:
		return command.Mode{}, nil, fmt.Errorf("unknown preset mode %q", p.Mode)
	}
}
