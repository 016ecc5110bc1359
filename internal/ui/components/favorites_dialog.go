package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dbscope/dbscope/internal/ui/theme"
)

// PickFavoriteMsg is sent when a favorite is chosen from the dialog.
type PickFavoriteMsg struct {
	Query string
}

// CloseFavoritesDialogMsg is sent when the dialog should close.
type CloseFavoritesDialogMsg struct{}

// FavoritesDialog lists saved favorite queries. Choosing one loads it into the
// SQL editor.
type FavoritesDialog struct {
	Width  int
	Height int
	Theme  theme.Theme

	favorites []string
	selected  int
	offset    int
}

// NewFavoritesDialog creates a new favorites dialog
func NewFavoritesDialog(th theme.Theme) *FavoritesDialog {
	return &FavoritesDialog{
		Width:  80,
		Height: 20,
		Theme:  th,
	}
}

// SetFavorites updates the favorites list
func (fd *FavoritesDialog) SetFavorites(favorites []string) {
	fd.favorites = favorites
	if fd.selected >= len(favorites) {
		fd.selected = 0
		fd.offset = 0
	}
}

// Update handles keyboard input
func (fd *FavoritesDialog) Update(msg tea.KeyMsg) (*FavoritesDialog, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		return fd, func() tea.Msg { return CloseFavoritesDialogMsg{} }
	case "up", "k":
		if fd.selected > 0 {
			fd.selected--
			if fd.selected < fd.offset {
				fd.offset = fd.selected
			}
		}
	case "down", "j":
		if fd.selected < len(fd.favorites)-1 {
			fd.selected++
			if fd.selected >= fd.offset+fd.visibleRows() {
				fd.offset = fd.selected - fd.visibleRows() + 1
			}
		}
	case "enter":
		if fd.selected < len(fd.favorites) {
			query := fd.favorites[fd.selected]
			return fd, func() tea.Msg { return PickFavoriteMsg{Query: query} }
		}
	}
	return fd, nil
}

func (fd *FavoritesDialog) visibleRows() int {
	rows := fd.Height - 6
	if rows < 1 {
		rows = 1
	}
	return rows
}

// View renders the dialog
func (fd *FavoritesDialog) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(fd.Theme.Info)

	selectedStyle := lipgloss.NewStyle().
		Background(fd.Theme.Selection).
		Foreground(fd.Theme.Foreground)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Favorites (%d)", len(fd.favorites))))
	b.WriteString("\n\n")

	if len(fd.favorites) == 0 {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render("No favorites yet. Ctrl+F in the SQL view saves the current query."))
	} else {
		end := fd.offset + fd.visibleRows()
		if end > len(fd.favorites) {
			end = len(fd.favorites)
		}
		for i := fd.offset; i < end; i++ {
			line := truncateLine(fd.favorites[i], fd.Width-8)
			if i == fd.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("enter load · esc close"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(fd.Theme.BorderFocused).
		Padding(1, 2).
		Width(fd.Width - 4)

	return boxStyle.Render(b.String())
}

func truncateLine(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width > 1 && len(s) > width {
		return s[:width-1] + "…"
	}
	return s
}
