package help

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// KeyBinding represents a keyboard shortcut
type KeyBinding struct {
	Key         string
	Description string
}

// GetGlobalKeys returns global key bindings
func GetGlobalKeys() []KeyBinding {
	return []KeyBinding{
		{"?", "Toggle help"},
		{"q, Ctrl+C", "Quit"},
		{"Tab", "Switch panel focus"},
		{"1-5", "Data / Structure / SQL / Definition / History view"},
		{"r", "Refresh database list and page"},
		{"Esc", "Dismiss error"},
	}
}

// GetNavigationKeys returns navigation key bindings
func GetNavigationKeys() []KeyBinding {
	return []KeyBinding{
		{"↑/k", "Move up"},
		{"↓/j", "Move down"},
		{"Enter", "Select database or table"},
	}
}

// GetDataViewKeys returns data view key bindings
func GetDataViewKeys() []KeyBinding {
	return []KeyBinding{
		{"h/l", "Move between columns"},
		{"n, ]", "Next page"},
		{"p, [", "Previous page"},
		{"g", "Go to row"},
		{"o", "Cycle sort on selected column"},
		{"e", "Edit selected cell"},
		{"y", "Copy selected cell"},
		{"x", "Export page to CSV"},
	}
}

// GetSQLKeys returns SQL view key bindings
func GetSQLKeys() []KeyBinding {
	return []KeyBinding{
		{"Ctrl+E", "Execute query"},
		{"Ctrl+F", "Toggle favorite"},
		{"Ctrl+O", "Open favorites"},
		{"Esc", "Back to data view"},
	}
}

// Render creates the help view
func Render(width, height int) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Padding(1, 0)

	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("75")).
		Padding(0, 0, 0, 2)

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")).
		Width(20)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("dbscope - Keyboard Shortcuts"))
	b.WriteString("\n\n")

	sections := []struct {
		title string
		keys  []KeyBinding
	}{
		{"Global", GetGlobalKeys()},
		{"Navigation", GetNavigationKeys()},
		{"Data View", GetDataViewKeys()},
		{"SQL View", GetSQLKeys()},
	}

	for _, section := range sections {
		b.WriteString(sectionStyle.Render(section.title))
		b.WriteString("\n")
		for _, kb := range section.keys {
			b.WriteString("  ")
			b.WriteString(keyStyle.Render(kb.Key))
			b.WriteString(descStyle.Render(kb.Description))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press '?' or Esc to close help"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(width - 4).
		Height(height - 4)

	return boxStyle.Render(b.String())
}
