// Package picker implements the interactive script browser used when a
// batch is started without explicit input paths.
//
// The browser lists PowerShell scripts in one directory at a time,
// descends into subdirectories, and lets the user toggle any number of
// files before confirming. Confirmed paths come back in selection order.
package picker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/benzoXdev/obfusps-tool/internal/script"
)

// ErrCanceled is returned when the user leaves the browser without
// confirming a selection.
var ErrCanceled = errors.New("selection canceled")

const minListRows = 3

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	pathStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	countStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dirStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	All    key.Binding
	Enter  key.Binding
	Parent key.Binding
	Filter key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle: key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
		All:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle all")),
		Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/confirm")),
		Parent: key.NewBinding(key.WithKeys("backspace", "left"), key.WithHelp("backspace", "parent dir")),
		Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Quit:   key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"), key.WithHelp("esc", "cancel")),
	}
}

type entry struct {
	name  string
	path  string
	isDir bool
}

type model struct {
	keys      keyMap
	filter    textinput.Model
	dir       string
	entries   []entry
	visible   []int
	cursor    int
	offset    int
	width     int
	height    int
	selected  map[string]struct{}
	order     []string
	filtering bool
	done      bool
	canceled  bool
	status    string
}

func newModel(dir string) (*model, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	entries, err := readEntries(abs)
	if err != nil {
		return nil, err
	}

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter"
	ti.CharLimit = 64
	ti.Width = 32

	m := &model{
		keys:     defaultKeyMap(),
		filter:   ti,
		dir:      abs,
		entries:  entries,
		selected: map[string]struct{}{},
	}
	m.applyFilter()

	return m, nil
}

func readEntries(dir string) ([]entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var dirs, files []entry

	for _, de := range dirents {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		full := filepath.Join(dir, name)
		switch {
		case de.IsDir():
			dirs = append(dirs, entry{name: name + string(os.PathSeparator), path: full, isDir: true})
		case script.Supported(name):
			files = append(files, entry{name: name, path: full})
		}
	}

	sortEntries(dirs)
	sortEntries(files)

	return append(dirs, files...), nil
}

func sortEntries(entries []entry) {
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].name) < strings.ToLower(entries[j].name)
	})
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = v.Width
		m.height = v.Height
		m.clamp()
		return m, nil
	case tea.KeyMsg:
		if m.done || m.canceled {
			return m, nil
		}
		if m.filtering {
			return m, m.handleFilterKey(v)
		}
		return m, m.handleBrowseKey(v)
	default:
		if m.filtering {
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

func (m *model) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.canceled = true
		return tea.Quit
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.Reset()
		m.applyFilter()
		return nil
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return nil
	default:
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return cmd
	}
}

func (m *model) handleBrowseKey(msg tea.KeyMsg) tea.Cmd {
	m.status = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.canceled = true
		return tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.cursor--
		m.clamp()
	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clamp()
	case key.Matches(msg, m.keys.Toggle):
		if e, ok := m.entryUnderCursor(); ok && !e.isDir {
			m.toggle(e.path)
		}
	case key.Matches(msg, m.keys.All):
		m.toggleAll()
	case key.Matches(msg, m.keys.Parent):
		m.navigate(filepath.Dir(m.dir))
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m.filter.Focus()
	case key.Matches(msg, m.keys.Enter):
		if e, ok := m.entryUnderCursor(); ok && e.isDir {
			m.navigate(e.path)
			return nil
		}
		if len(m.order) == 0 {
			m.status = "Select at least one script (space toggles)"
			return nil
		}
		m.done = true
		return tea.Quit
	}

	return nil
}

func (m *model) entryUnderCursor() (entry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return entry{}, false
	}

	return m.entries[m.visible[m.cursor]], true
}

func (m *model) toggle(path string) {
	if _, ok := m.selected[path]; ok {
		delete(m.selected, path)
		for i, p := range m.order {
			if p == path {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
		return
	}

	m.selected[path] = struct{}{}
	m.order = append(m.order, path)
}

// toggleAll selects every visible file, or clears them when all are
// already selected.
func (m *model) toggleAll() {
	var files []entry
	allSelected := true

	for _, idx := range m.visible {
		e := m.entries[idx]
		if e.isDir {
			continue
		}
		files = append(files, e)
		if _, ok := m.selected[e.path]; !ok {
			allSelected = false
		}
	}

	if len(files) == 0 {
		return
	}

	for _, e := range files {
		_, ok := m.selected[e.path]
		if allSelected && ok {
			m.toggle(e.path)
		} else if !allSelected && !ok {
			m.toggle(e.path)
		}
	}
}

func (m *model) navigate(dir string) {
	if dir == m.dir {
		return
	}

	entries, err := readEntries(dir)
	if err != nil {
		m.status = err.Error()
		return
	}

	m.dir = dir
	m.entries = entries
	m.cursor = 0
	m.offset = 0
	m.filter.Reset()
	m.applyFilter()
}

func (m *model) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))

	m.visible = m.visible[:0]
	for i, e := range m.entries {
		if q == "" || strings.Contains(strings.ToLower(e.name), q) {
			m.visible = append(m.visible, i)
		}
	}

	m.clamp()
}

func (m *model) clamp() {
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if h := m.listHeight(); m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// listHeight is the row budget for entries: the title, filter, status,
// and help lines take four rows of the window.
func (m *model) listHeight() int {
	h := m.height - 4
	if h < minListRows {
		return minListRows
	}

	return h
}

func (m *model) View() string {
	if m.done || m.canceled {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Select scripts"))
	b.WriteString("  ")
	b.WriteString(pathStyle.Render(m.dir))
	b.WriteString("  ")
	b.WriteString(countStyle.Render(fmt.Sprintf("%d selected", len(m.order))))
	b.WriteString("\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}

	if len(m.visible) == 0 {
		b.WriteString(mutedStyle.Render("  (no PowerShell scripts here)"))
		b.WriteString("\n")
	}

	end := m.offset + m.listHeight()
	if end > len(m.visible) {
		end = len(m.visible)
	}

	for i := m.offset; i < end; i++ {
		e := m.entries[m.visible[i]]

		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}

		var line string
		switch {
		case e.isDir:
			line = marker + dirStyle.Render("    "+e.name)
		default:
			box := "[ ] "
			style := lipgloss.NewStyle()
			if _, ok := m.selected[e.path]; ok {
				box = "[x] "
				style = selectedStyle
			}
			if i == m.cursor {
				style = cursorStyle
			}
			line = marker + style.Render(box+e.name)
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.status != "" {
		style := statusStyle
		if strings.Contains(m.status, "reading") {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(mutedStyle.Render(m.helpLine()))
	b.WriteString("\n")

	return b.String()
}

func (m *model) helpLine() string {
	bindings := []key.Binding{
		m.keys.Toggle, m.keys.All, m.keys.Enter,
		m.keys.Filter, m.keys.Parent, m.keys.Quit,
	}

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}

	return strings.Join(parts, "  ·  ")
}

// Result returns the confirmed selection in the order the files were
// toggled, or ErrCanceled when the browser was dismissed.
func (m *model) Result() ([]string, error) {
	if !m.done {
		return nil, ErrCanceled
	}

	return append([]string(nil), m.order...), nil
}

// Run opens the browser rooted at dir on the controlling terminal and
// blocks until the user confirms or cancels a selection.
func Run(ctx context.Context, dir string) ([]string, error) {
	m, err := newModel(dir)
	if err != nil {
		return nil, err
	}

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	out, err := prog.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil, fmt.Errorf("script browser interrupted: %w", err)
		}
		return nil, fmt.Errorf("running script browser: %w", err)
	}

	final, ok := out.(*model)
	if !ok {
		return nil, fmt.Errorf("running script browser: unexpected model %T", out)
	}

	return final.Result()
}
