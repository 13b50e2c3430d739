package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/benzoXdev/obfusps-tool/internal/output"
)

// Project links shown under the banner, same as the upstream engine page.
const (
	projectGitHub    = "github.com/BenzoXdev"
	projectTelegram  = "t.me/benzoXdev"
	projectInstagram = "instagram.com/just._.amar_x1"
)

// bannerArt is the ObfusPS wordmark. Shaded block glyphs render on any
// UTF-8 terminal; color is layered on top with lipgloss.
const bannerArt = `▒█████   ▄▄▄▄     █████▒█    ██   ██████  ██▓███    ██████
▒██▒  ██▒▓█████▄ ▓██   ▒ ██  ▓██▒▒██    ▒ ▓██░  ██▒▒██    ▒
▒██░  ██▒▒██▒ ▄██▒████ ░▓██  ▒██░░ ▓██▄   ▓██░ ██▓▒░ ▓██▄
▒██   ██░▒██░█▀  ░▓█▒  ░▓▓█  ░██░  ▒   ██▒▒██▄█▓▒ ▒  ▒   ██▒
░ ████▓▒░░▓█  ▀█▓░▒█░   ▒▒█████▓ ▒██████▒▒▒██▒ ░  ░▒██████▒▒
░ ▒░▒░▒░ ░▒▓███▀▒ ▒ ░   ░▒▓▒ ▒ ▒ ▒ ▒▓▒ ▒ ░▒▓▒░ ░  ░▒ ▒▓▒ ▒ ░`

var (
	bannerArtStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	bannerHeadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	bannerBoxStyle  = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1)
	bannerLinkStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	bannerLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
)

// banner renders the startup banner. Width centers the block under the art;
// non-positive widths fall back to the art's own width.
func banner(toolVersion string) string {
	head := "ObfusPS  |  obfusps-tool v" + toolVersion
	box := bannerBoxStyle.Render("Obfuscator Tool")

	var b strings.Builder

	b.WriteString(bannerArtStyle.Render(bannerArt))
	b.WriteString("\n\n")
	b.WriteString(bannerHeadStyle.Render(head))
	b.WriteString("\n")
	b.WriteString(bannerLinkStyle.Render("GitHub : " + projectGitHub))
	b.WriteString("\n\n")
	b.WriteString(box)
	b.WriteString("\n\n")
	b.WriteString(bannerLabelStyle.Render("[>]") + bannerLinkStyle.Render(" Telegram  : "+projectTelegram))
	b.WriteString("\n")
	b.WriteString(bannerLabelStyle.Render("[>]") + bannerLinkStyle.Render(" Instagram : "+projectInstagram))
	b.WriteString("\n")

	return b.String()
}

// printBanner shows the banner and sets the terminal title. Skipped for
// machine-readable output, where decoration would corrupt the stream.
func printBanner(out *output.Writer, toolVersion string) {
	if out.JSON || out.Quiet {
		return
	}

	out.Terminal().SetTitle(out, "ObfusPS - Obfuscator Tool | By: BenzoXdev")
	out.Print("%s\n", banner(toolVersion))
}
