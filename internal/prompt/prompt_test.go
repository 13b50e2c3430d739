package prompt

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/benzoXdev/obfusps-tool/internal/output"
	"github.com/benzoXdev/obfusps-tool/internal/terminal"
)

func testPrompter(t *testing.T, input string) (*Prompter, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	term := &terminal.Info{IsTTY: false, NoColor: true, Width: 80, Height: 24}
	out := output.NewWriter(&buf, &buf, term)

	return NewWithReader(out, strings.NewReader(input)), &buf
}

func TestIsCanceled(t *testing.T) {
	if !IsCanceled(errCanceled) {
		t.Fatal("IsCanceled(errCanceled) = false, want true")
	}

	if !IsCanceled(errors.Join(errors.New("other"), errCanceled)) {
		t.Fatal("IsCanceled(wrapped errCanceled) = false, want true")
	}

	if IsCanceled(errors.New("not canceled")) {
		t.Fatal("IsCanceled(unrelated error) = true, want false")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		defaultValue bool
		want         bool
	}{
		{"yes", "y\n", false, true},
		{"yes word", "yes\n", false, true},
		{"no", "n\n", true, false},
		{"empty uses default true", "\n", true, true},
		{"empty uses default false", "\n", false, false},
		{"uppercase", "Y\n", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := testPrompter(t, tt.input)

			got, err := p.Confirm("Continue?", tt.defaultValue)
			if err != nil {
				t.Fatalf("Confirm() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"first option", "1\n", 0},
		{"last option", "3\n", 2},
		{"retries after junk", "abc\n0\n9\n2\n", 1},
		{"retries after blank", "\n3\n", 2},
	}

	options := []string{"AUTO", "MANUAL", "COMMAND"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := testPrompter(t, tt.input)

			got, err := p.Select("Choose a mode:", options)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("Select(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelect_EOF(t *testing.T) {
	p, _ := testPrompter(t, "")

	if _, err := p.Select("Choose:", []string{"a"}); err == nil {
		t.Fatal("Select() on EOF should fail")
	}
}

func TestInput(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		defaultValue string
		want         string
	}{
		{"plain value", "-level 4 -frag\n", "", "-level 4 -frag"},
		{"empty uses default", "\n", "balanced", "balanced"},
		{"whitespace trimmed", "  heavy  \n", "", "heavy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := testPrompter(t, tt.input)

			got, err := p.Input("Flags", tt.defaultValue)
			if err != nil {
				t.Fatalf("Input() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("Input(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPathList(t *testing.T) {
	p, _ := testPrompter(t, "a.ps1, b.psm1 ,, c.ps1\n")

	got, err := p.PathList("Enter paths")
	if err != nil {
		t.Fatalf("PathList() error = %v", err)
	}

	want := []string{"a.ps1", "b.psm1", "c.ps1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PathList() = %v, want %v", got, want)
	}
}

func TestPathList_EmptyCancels(t *testing.T) {
	p, _ := testPrompter(t, "\n")

	_, err := p.PathList("Enter paths")
	if !IsCanceled(err) {
		t.Fatalf("PathList() error = %v, want canceled", err)
	}
}
