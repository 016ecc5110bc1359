// Package present maps store snapshots into the renderable table contract the
// widget layer consumes. It owns the cell rendering rules (NULL, booleans,
// base64 byte buffers) so every view displays values the same way.
package present

import (
	"fmt"
	"strconv"

	"github.com/dbscope/dbscope/internal/models"
	"github.com/dbscope/dbscope/internal/store"
)

// TableData is the data contract between the sync core and the table widget.
type TableData struct {
	Columns     []string
	Rows        [][]string
	Highlighted []int
}

// renderRows converts typed cells to display strings.
func renderRows(rows [][]models.Value) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = v.Display()
		}
		out[i] = cells
	}
	return out
}

// DataPage renders the fetched page for the data view. Column headers carry
// the active sort marker.
func DataPage(st store.State) TableData {
	if st.CurrentPage == nil {
		return TableData{}
	}
	columns := append([]string{}, st.CurrentPage.Columns...)
	if st.CurrentSort != nil {
		for i, col := range columns {
			if col != st.CurrentSort.Key {
				continue
			}
			if st.CurrentSort.Reversed() {
				columns[i] = col + " ▼"
			} else {
				columns[i] = col + " ▲"
			}
		}
	}
	return TableData{
		Columns:     columns,
		Rows:        renderRows(st.CurrentPage.Rows),
		Highlighted: st.CurrentPage.HighlightedRows,
	}
}

// StructureColumns renders the column metadata of the structure view.
func StructureColumns(st store.State) TableData {
	if st.CurrentStructure == nil {
		return TableData{}
	}
	return TableData{
		Columns: st.CurrentStructure.Columns,
		Rows:    renderRows(st.CurrentStructure.Rows),
	}
}

// StructureIndexes renders the index metadata of the structure view.
func StructureIndexes(st store.State) TableData {
	if st.CurrentStructure == nil {
		return TableData{}
	}
	return TableData{
		Columns: st.CurrentStructure.IndexesColumns,
		Rows:    renderRows(st.CurrentStructure.IndexesValues),
	}
}

// QueryResult renders whichever execution outcome is populated.
func QueryResult(st store.State) TableData {
	if st.QueryResult == nil {
		return TableData{}
	}
	switch st.QueryResult.Kind {
	case models.ResultSelect:
		return TableData{
			Columns:     st.QueryResult.Columns,
			Rows:        renderRows(st.QueryResult.Rows),
			Highlighted: st.QueryResult.HighlightedRows,
		}
	case models.ResultInsert:
		return TableData{
			Columns: []string{"inserted id"},
			Rows:    [][]string{{strconv.FormatInt(st.QueryResult.InsertedID, 10)}},
		}
	case models.ResultUpdateDelete:
		return TableData{
			Columns: []string{"affected rows"},
			Rows:    [][]string{{strconv.Itoa(st.QueryResult.AffectedCount)}},
		}
	default:
		return TableData{}
	}
}

// History renders the session's submitted queries in submission order.
func History(st store.State) TableData {
	rows := make([][]string, len(st.QueryHistory))
	for i, q := range st.QueryHistory {
		rows[i] = []string{q.Time, q.Value}
	}
	return TableData{Columns: []string{"time", "query"}, Rows: rows}
}

// Status summarizes the pagination window for the status bar.
func Status(st store.State) string {
	if st.CurrentPage == nil {
		return "loading…"
	}
	p := st.CurrentPage
	if p.Total == 0 {
		return "0 rows"
	}
	first := p.Start + 1
	last := p.Start + p.Count
	return fmt.Sprintf("rows %d-%d of %d", first, last, p.Total)
}
