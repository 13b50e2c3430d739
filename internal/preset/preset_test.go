package preset

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/benzoXdev/obfusps-tool/internal/command"
)

func tempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Load(filepath.Join(t.TempDir(), "presets.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	return store
}

func TestLoadMissingFileIsEmptyStore(t *testing.T) {
	store := tempStore(t)

	if names := store.Names(); len(names) != 0 {
		t.Errorf("Names() = %v, want empty", names)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "presets.toml")

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	release := Preset{
		Description: "ship builds",
		Mode:        "manual",
		Level:       4,
		Profile:     "stealth",
		UseAST:      true,
		Validate:    true,
	}

	if err := store.Set("release", release); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := store.Set("quick", Preset{Mode: "auto"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if got := reloaded.Names(); !reflect.DeepEqual(got, []string{"quick", "release"}) {
		t.Errorf("Names() = %v, want [quick release]", got)
	}

	got, ok := reloaded.Get("release")
	if !ok {
		t.Fatal("release preset missing after reload")
	}

	if got != release {
		t.Errorf("reloaded = %+v, want %+v", got, release)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	if err := os.WriteFile(path, []byte("presets = not toml ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a broken file")
	}
}

func TestSetValidation(t *testing.T) {
	store := tempStore(t)

	tests := []struct {
		name    string
		preset  Preset
		keyName string
		wantErr string
	}{
		{
			name:    "empty name",
			keyName: "",
			preset:  Preset{Mode: "auto"},
			wantErr: "name is required",
		},
		{
			name:    "name with spaces",
			keyName: "my preset",
			preset:  Preset{Mode: "auto"},
			wantErr: "invalid preset name",
		},
		{
			name:    "missing mode",
			keyName: "broken",
			preset:  Preset{},
			wantErr: "mode is required",
		},
		{
			name:    "unknown mode",
			keyName: "broken",
			preset:  Preset{Mode: "turbo"},
			wantErr: "unknown mode",
		},
		{
			name:    "manual level out of range",
			keyName: "broken",
			preset:  Preset{Mode: "manual", Level: 9},
			wantErr: "out of range",
		},
		{
			name:    "command without flags",
			keyName: "broken",
			preset:  Preset{Mode: "command"},
			wantErr: "needs flags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Set(tt.keyName, tt.preset)
			if err == nil {
				t.Fatal("Set accepted an invalid preset")
			}

			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	store := tempStore(t)

	if err := store.Set("gone", Preset{Mode: "auto"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if !store.Delete("gone") {
		t.Error("Delete returned false for an existing preset")
	}

	if store.Delete("gone") {
		t.Error("Delete returned true for a missing preset")
	}
}

func TestToMode(t *testing.T) {
	t.Run("auto", func(t *testing.T) {
		mode, ignored, err := Preset{Mode: "auto"}.ToMode()
		if err != nil {
			t.Fatalf("ToMode: %v", err)
		}

		if mode.Kind != command.KindAuto || len(ignored) != 0 {
			t.Errorf("mode = %+v, ignored = %v", mode, ignored)
		}
	})

	t.Run("manual with defaults", func(t *testing.T) {
		mode, _, err := Preset{Mode: "manual"}.ToMode()
		if err != nil {
			t.Fatalf("ToMode: %v", err)
		}

		if mode.Level != 3 || mode.Profile != command.FallbackProfile {
			t.Errorf("mode = %+v, want level 3 profile %s", mode, command.FallbackProfile)
		}
	})

	t.Run("manual resolves profile", func(t *testing.T) {
		mode, _, err := Preset{Mode: "manual", Level: 5, Profile: "STEALTH"}.ToMode()
		if err != nil {
			t.Fatalf("ToMode: %v", err)
		}

		if mode.Profile != "stealth" {
			t.Errorf("Profile = %q, want stealth", mode.Profile)
		}

		args := mode.Build("/in.ps1", "/out.ps1", false)

		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "-frag profile=pro") {
			t.Errorf("level 5 preset missing frag preset: %v", args)
		}
	})

	t.Run("command strips overrides", func(t *testing.T) {
		mode, ignored, err := Preset{Mode: "command", Flags: "-strenc xor -i sneaky.ps1"}.ToMode()
		if err != nil {
			t.Fatalf("ToMode: %v", err)
		}

		if mode.Kind != command.KindCommand {
			t.Errorf("Kind = %v, want KindCommand", mode.Kind)
		}

		if !reflect.DeepEqual(ignored, []string{"-i"}) {
			t.Errorf("ignored = %v, want [-i]", ignored)
		}
	})

	t.Run("recommend", func(t *testing.T) {
		mode, _, err := Preset{Mode: "recommend"}.ToMode()
		if err != nil {
			t.Fatalf("ToMode: %v", err)
		}

		if mode.Kind != command.KindRecommend {
			t.Errorf("Kind = %v, want KindRecommend", mode.Kind)
		}
	})
}
