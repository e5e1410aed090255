package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/membrane-wasm/membrane/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	layoutStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type inspectState int

const (
	stateSelectType inspectState = iota
	stateShowLayout
)

type inspectModel struct {
	names    []string
	filter   textinput.Model
	selected int
	state    inspectState
	showFlat bool
}

func newInspectModel() *inspectModel {
	filter := textinput.New()
	filter.Placeholder = "filter"
	filter.Prompt = "/ "
	filter.Width = 24
	filter.Focus()

	return &inspectModel{
		names:  catalogNames(),
		filter: filter,
		state:  stateSelectType,
	}
}

func (m *inspectModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *inspectModel) visible() []string {
	needle := strings.ToLower(m.filter.Value())
	if needle == "" {
		return m.names
	}
	var out []string
	for _, name := range m.names {
		if strings.Contains(name, needle) {
			out = append(out, name)
		}
	}
	return out
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "ctrl+k":
			if m.state == stateSelectType && m.selected > 0 {
				m.selected--
			}

		case "down", "ctrl+j":
			if m.state == stateSelectType {
				if m.selected < len(m.visible())-1 {
					m.selected++
				}
			}

		case "enter":
			if m.state == stateSelectType && len(m.visible()) > 0 {
				m.state = stateShowLayout
			}

		case "f":
			if m.state == stateShowLayout {
				m.showFlat = !m.showFlat
			}

		case "esc":
			if m.state == stateShowLayout {
				m.state = stateSelectType
			}
		}
	}

	if m.state == stateSelectType {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		if m.selected >= len(m.visible()) {
			m.selected = 0
		}
		return m, cmd
	}
	return m, nil
}

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Layout Inspector"))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectType:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, name := range m.visible() {
			line := nameStyle.Render(name) + "  " + typeStyle.Render(catalog[name].String())
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + name))
				b.WriteString("  " + typeStyle.Render(catalog[name].String()))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter layout • q quit"))

	case stateShowLayout:
		names := m.visible()
		name := names[m.selected]
		t := catalog[name]
		b.WriteString(layoutStyle.Render(describe(name, t)))
		if m.showFlat {
			b.WriteString("\n\n")
			b.WriteString(typeStyle.Render(flatLine(t)))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("f toggle flat shape • esc back • q quit"))
	}

	return b.String()
}

func flatLine(t *schema.Type) string {
	parts := make([]string, 0, t.FlatCount())
	for _, f := range t.Flat() {
		parts = append(parts, f.String())
	}
	return "flat: (" + strings.Join(parts, ", ") + ")"
}

func runInteractive() error {
	p := tea.NewProgram(newInspectModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
