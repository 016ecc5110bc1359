package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dbscope/dbscope/internal/present"
	"github.com/dbscope/dbscope/internal/ui/theme"
)

// TableView renders one present.TableData window with a cursor over rows and
// columns. Highlighted rows (the row-edit target set) are styled separately
// from the cursor row.
type TableView struct {
	Data   present.TableData
	Width  int
	Height int
	Theme  theme.Theme

	TopRow      int
	VisibleRows int
	SelectedRow int
	SelectedCol int

	columnWidths []int
}

// NewTableView creates a new table view
func NewTableView(th theme.Theme) *TableView {
	return &TableView{Theme: th}
}

// SetData replaces the rendered window and clamps the cursor into it.
func (tv *TableView) SetData(data present.TableData) {
	tv.Data = data
	if tv.SelectedRow >= len(data.Rows) {
		tv.SelectedRow = len(data.Rows) - 1
	}
	if tv.SelectedRow < 0 {
		tv.SelectedRow = 0
	}
	if tv.SelectedCol >= len(data.Columns) {
		tv.SelectedCol = len(data.Columns) - 1
	}
	if tv.SelectedCol < 0 {
		tv.SelectedCol = 0
	}
	if tv.TopRow > tv.SelectedRow {
		tv.TopRow = tv.SelectedRow
	}
	tv.calculateColumnWidths()
}

// SelectedColumn returns the name of the column under the cursor.
func (tv *TableView) SelectedColumn() string {
	if tv.SelectedCol < 0 || tv.SelectedCol >= len(tv.Data.Columns) {
		return ""
	}
	return tv.Data.Columns[tv.SelectedCol]
}

// SelectedCell returns the rendered cell under the cursor.
func (tv *TableView) SelectedCell() (string, bool) {
	if tv.SelectedRow < 0 || tv.SelectedRow >= len(tv.Data.Rows) {
		return "", false
	}
	row := tv.Data.Rows[tv.SelectedRow]
	if tv.SelectedCol < 0 || tv.SelectedCol >= len(row) {
		return "", false
	}
	return row[tv.SelectedCol], true
}

// calculateColumnWidths sizes columns to content, within bounds.
func (tv *TableView) calculateColumnWidths() {
	tv.columnWidths = make([]int, len(tv.Data.Columns))
	for i, col := range tv.Data.Columns {
		tv.columnWidths[i] = len(col)
	}
	for _, row := range tv.Data.Rows {
		for i, cell := range row {
			if i < len(tv.columnWidths) && len(cell) > tv.columnWidths[i] {
				tv.columnWidths[i] = len(cell)
			}
		}
	}
	for i := range tv.columnWidths {
		if tv.columnWidths[i] > 40 {
			tv.columnWidths[i] = 40
		}
		if tv.columnWidths[i] < 4 {
			tv.columnWidths[i] = 4
		}
	}
}

// View renders the table
func (tv *TableView) View() string {
	if len(tv.Data.Columns) == 0 {
		return lipgloss.NewStyle().Foreground(tv.Theme.Metadata).Render("no data")
	}

	var b strings.Builder
	b.WriteString(tv.renderHeader())
	b.WriteString("\n")
	b.WriteString(tv.renderSeparator())
	b.WriteString("\n")

	tv.VisibleRows = tv.Height - 2
	if tv.VisibleRows < 1 {
		tv.VisibleRows = 1
	}

	endRow := tv.TopRow + tv.VisibleRows
	if endRow > len(tv.Data.Rows) {
		endRow = len(tv.Data.Rows)
	}

	for i := tv.TopRow; i < endRow; i++ {
		b.WriteString(tv.renderRow(i))
		if i < endRow-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (tv *TableView) renderHeader() string {
	var parts []string
	for i, col := range tv.Data.Columns {
		cell := tv.pad(col, tv.columnWidths[i])
		if i == tv.SelectedCol {
			cell = lipgloss.NewStyle().Underline(true).Render(cell)
		}
		parts = append(parts, cell)
	}
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(tv.Theme.TableHeader)
	return headerStyle.Render(" " + strings.Join(parts, " │ ") + " ")
}

func (tv *TableView) renderSeparator() string {
	var parts []string
	for _, width := range tv.columnWidths {
		parts = append(parts, strings.Repeat("─", width))
	}
	return lipgloss.NewStyle().
		Foreground(tv.Theme.Border).
		Render("─" + strings.Join(parts, "─┼─") + "─")
}

func (tv *TableView) renderRow(idx int) string {
	row := tv.Data.Rows[idx]
	var parts []string
	for i, cell := range row {
		if i >= len(tv.columnWidths) {
			break
		}
		parts = append(parts, tv.pad(cell, tv.columnWidths[i]))
	}
	line := " " + strings.Join(parts, " │ ") + " "

	switch {
	case idx == tv.SelectedRow:
		return lipgloss.NewStyle().
			Background(tv.Theme.TableRowSelected).
			Foreground(tv.Theme.Foreground).
			Bold(true).
			Render(line)
	case containsInt(tv.Data.Highlighted, idx):
		return lipgloss.NewStyle().
			Background(tv.Theme.TableRowEdited).
			Render(line)
	default:
		return line
	}
}

func (tv *TableView) pad(s string, width int) string {
	if len(s) > width {
		if width > 3 {
			return s[:width-3] + "..."
		}
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// MoveSelection moves the row cursor, scrolling the window as needed.
func (tv *TableView) MoveSelection(delta int) {
	tv.SelectedRow += delta
	if tv.SelectedRow < 0 {
		tv.SelectedRow = 0
	}
	if tv.SelectedRow >= len(tv.Data.Rows) {
		tv.SelectedRow = len(tv.Data.Rows) - 1
	}
	if tv.SelectedRow < 0 {
		tv.SelectedRow = 0
	}
	if tv.SelectedRow < tv.TopRow {
		tv.TopRow = tv.SelectedRow
	}
	if tv.VisibleRows > 0 && tv.SelectedRow >= tv.TopRow+tv.VisibleRows {
		tv.TopRow = tv.SelectedRow - tv.VisibleRows + 1
	}
}

// MoveColumn moves the column cursor.
func (tv *TableView) MoveColumn(delta int) {
	tv.SelectedCol += delta
	if tv.SelectedCol < 0 {
		tv.SelectedCol = 0
	}
	if tv.SelectedCol >= len(tv.Data.Columns) {
		tv.SelectedCol = len(tv.Data.Columns) - 1
	}
	if tv.SelectedCol < 0 {
		tv.SelectedCol = 0
	}
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}
