// Package ansi normalizes engine output for display and logs.
//
// The engine colors its stderr diagnostics; stored logs and non-TTY
// output need the plain text.
package ansi

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// Strip removes ANSI escape sequences from a string.
func Strip(s string) string {
	return xansi.Strip(s)
}

// Lines strips escape sequences from raw output and splits it into
// non-empty, whitespace-trimmed lines.
func Lines(raw string) []string {
	var lines []string

	for _, line := range strings.Split(Strip(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		lines = append(lines, line)
	}

	return lines
}
