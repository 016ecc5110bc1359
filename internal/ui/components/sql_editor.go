package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dbscope/dbscope/internal/ui/theme"
)

// SQLEditor is the free-form query editor shown in the SQL view. It wraps a
// textarea and renders the last execution outcome underneath.
type SQLEditor struct {
	area  textarea.Model
	Theme theme.Theme

	Width  int
	Height int
}

// NewSQLEditor creates a new SQL editor
func NewSQLEditor(th theme.Theme) *SQLEditor {
	area := textarea.New()
	area.Placeholder = "SELECT * FROM ..."
	area.Prompt = "│ "
	area.ShowLineNumbers = false
	area.Focus()
	return &SQLEditor{area: area, Theme: th}
}

// SetSize resizes the editor area.
func (e *SQLEditor) SetSize(width, height int) {
	e.Width = width
	e.Height = height
	e.area.SetWidth(width)
	editorHeight := height / 3
	if editorHeight < 3 {
		editorHeight = 3
	}
	e.area.SetHeight(editorHeight)
}

// Value returns the current buffer.
func (e *SQLEditor) Value() string {
	return strings.TrimRight(e.area.Value(), "\n")
}

// SetValue replaces the buffer, used when recalling history or favorites.
func (e *SQLEditor) SetValue(text string) {
	e.area.SetValue(text)
}

// Update forwards key input to the textarea.
func (e *SQLEditor) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	e.area, cmd = e.area.Update(msg)
	return cmd
}

// View renders the editor plus a hint line.
func (e *SQLEditor) View() string {
	hint := lipgloss.NewStyle().
		Foreground(e.Theme.Metadata).
		Render("ctrl+e execute · ctrl+f toggle favorite · ctrl+o favorites · esc back")
	return e.area.View() + "\n" + hint
}
