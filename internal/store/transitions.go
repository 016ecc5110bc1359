package store

import (
	"sort"
	"time"

	"github.com/dbscope/dbscope/internal/models"
)

// QueryTimeFormat renders the human-readable timestamp attached to query
// buffer edits, submissions and history entries.
const QueryTimeFormat = "15:04:05"

// UpdateDatabases replaces the database list with entries sorted by ascending
// id and re-derives both selections. An existing database selection is kept;
// the table selection is kept only if it still exists under the selected
// database, otherwise it falls back to that database's first table. When both
// selections survive unchanged, the fetched page and sort survive with them.
func UpdateDatabases(s State, dbs []models.DatabaseEntry) State {
	sorted := make([]models.DatabaseEntry, len(dbs))
	copy(sorted, dbs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	selected := s.SelectedDatabase
	if selected == 0 && len(sorted) > 0 {
		selected = sorted[0].ID
	}

	table := ""
	for _, db := range sorted {
		if db.ID != selected {
			continue
		}
		if containsString(db.Tables, s.SelectedTable) {
			table = s.SelectedTable
		} else if len(db.Tables) > 0 {
			table = db.Tables[0]
		}
		break
	}

	sameTableSelected := selected == s.SelectedDatabase && table == s.SelectedTable

	next := s
	next.Databases = sorted
	next.SelectedDatabase = selected
	next.SelectedTable = table
	next.OutdatedDatabaseList = false
	if !sameTableSelected {
		next.PageRowNumber = 0
		next.CurrentPage = nil
		next.CurrentStructure = nil
		next.CurrentSort = nil
	}
	return next
}

// SelectDatabase switches the database selection and resets the table to the
// new database's first table.
func SelectDatabase(s State, id int) State {
	next := s
	next.SelectedDatabase = id
	next.SelectedTable = ""
	if db, ok := s.DatabaseByID(id); ok && len(db.Tables) > 0 {
		next.SelectedTable = db.Tables[0]
	}
	next.PageRowNumber = 0
	next.CurrentPage = nil
	next.CurrentStructure = nil
	next.CurrentSort = nil
	return next
}

// SelectTable switches the table selection. Sort is table-scoped and does not
// carry across tables.
func SelectTable(s State, name string) State {
	next := s
	next.SelectedTable = name
	next.PageRowNumber = 0
	next.CurrentPage = nil
	next.CurrentStructure = nil
	next.CurrentSort = nil
	return next
}

// SetViewMode switches the rendered view. Mode switches count as
// error-dismissing user actions.
func SetViewMode(s State, mode models.ViewMode) State {
	next := s
	next.ViewMode = mode
	next.Error = ""
	return next
}

// NextPage advances the pagination cursor by one page and forces a refetch.
func NextPage(s State) State {
	next := s
	next.PageRowNumber += models.PageSize
	next.CurrentPage = nil
	return next
}

// PreviousPage retreats the pagination cursor by one page, clamped at 0.
func PreviousPage(s State) State {
	next := s
	next.PageRowNumber -= models.PageSize
	if next.PageRowNumber < 0 {
		next.PageRowNumber = 0
	}
	next.CurrentPage = nil
	return next
}

// GoToRow jumps the cursor to row, clamped into [0, total-pageSize] using the
// currently loaded page's total. Without a loaded page this is a no-op.
func GoToRow(s State, row int) State {
	if s.CurrentPage == nil {
		return s
	}
	max := s.CurrentPage.Total - models.PageSize
	if max < 0 {
		max = 0
	}
	if row > max {
		row = max
	}
	if row < 0 {
		row = 0
	}
	next := s
	next.PageRowNumber = row
	next.CurrentPage = nil
	return next
}

// SortBy installs a new sort order. Sorting always restarts from the first
// page.
func SortBy(s State, order *models.SortOrder) State {
	next := s
	next.CurrentSort = order
	next.PageRowNumber = 0
	next.CurrentPage = nil
	return next
}

// Refresh marks the database list outdated and drops the fetched page.
// Structure is considered stable across a manual refresh.
func Refresh(s State) State {
	next := s
	next.OutdatedDatabaseList = true
	next.CurrentPage = nil
	return next
}

// SetQuery replaces the SQL editor buffer. The timestamp recorded here is an
// edit placeholder; submission stamps it again.
func SetQuery(s State, text string, now time.Time) State {
	next := s
	next.Query = &models.Query{Value: text, Time: now.Format(QueryTimeFormat)}
	return next
}

// ToggleFavorite removes the current query string from the favorites if
// present and appends it otherwise. Persistence is the caller's concern.
func ToggleFavorite(s State) State {
	if s.Query == nil || s.Query.Value == "" {
		return s
	}
	next := s
	if containsString(s.Favorites, s.Query.Value) {
		kept := make([]string, 0, len(s.Favorites)-1)
		for _, f := range s.Favorites {
			if f != s.Query.Value {
				kept = append(kept, f)
			}
		}
		next.Favorites = kept
	} else {
		next.Favorites = append(append([]string{}, s.Favorites...), s.Query.Value)
	}
	return next
}

// SetFavorites installs a persisted favorites list, typically at session
// start.
func SetFavorites(s State, favorites []string) State {
	next := s
	next.Favorites = favorites
	return next
}

// AppendQueryHistory records a submitted query. Submission order is
// preserved and entries are recorded whether or not execution succeeds.
func AppendQueryHistory(s State, q models.Query) State {
	next := s
	next.QueryHistory = append(append([]models.Query{}, s.QueryHistory...), q)
	return next
}

// SetError surfaces a remote failure as a displayable message. Unrelated
// state is left alone.
func SetError(s State, msg string) State {
	next := s
	next.Error = msg
	return next
}

// MergePage installs a freshly fetched page. A page keyed to a selection that
// has since changed is discarded.
func MergePage(s State, page *models.Page) State {
	if page == nil || !s.SelectionMatches(page.DatabaseID, page.Table) {
		return s
	}
	next := s
	next.CurrentPage = page
	next.Error = ""
	return next
}

// MergeStructure installs freshly fetched structure metadata, subject to the
// same key check as MergePage.
func MergeStructure(s State, structure *models.Structure) State {
	if structure == nil || !s.SelectionMatches(structure.DatabaseID, structure.Table) {
		return s
	}
	next := s
	next.CurrentStructure = structure
	next.Error = ""
	return next
}

// SetTableInfo installs fetched table definition text, keyed like the other
// merges.
func SetTableInfo(s State, databaseID int, table, definition string) State {
	if !s.SelectionMatches(databaseID, table) {
		return s
	}
	next := s
	next.TableInfo = definition
	next.Error = ""
	return next
}

// SetQueryResult installs an execution outcome and the observed wall-clock
// duration, clearing any prior error.
func SetQueryResult(s State, result *models.QueryResult, elapsed time.Duration) State {
	next := s
	next.QueryResult = result
	next.ExecutionTime = elapsed
	next.Error = ""
	return next
}

// SetHighlightedRows replaces the highlighted row set of the loaded page.
func SetHighlightedRows(s State, rows []int) State {
	if s.CurrentPage == nil {
		return s
	}
	page := *s.CurrentPage
	page.HighlightedRows = append([]int{}, rows...)
	next := s
	next.CurrentPage = &page
	return next
}

// CellPatch overwrites one cell of a page row.
type CellPatch struct {
	Column int
	Value  models.Value
}

// PatchPageRow applies optimistic local cell updates to one row of the loaded
// page. The patch is keyed like a response merge and dropped if the page or
// selection moved on.
func PatchPageRow(s State, databaseID int, table string, row int, patches []CellPatch) State {
	if s.CurrentPage == nil || !s.SelectionMatches(databaseID, table) {
		return s
	}
	if !s.SelectionMatches(s.CurrentPage.DatabaseID, s.CurrentPage.Table) {
		return s
	}
	if row < 0 || row >= len(s.CurrentPage.Rows) {
		return s
	}

	page := *s.CurrentPage
	page.Rows = append([][]models.Value{}, s.CurrentPage.Rows...)
	cells := append([]models.Value{}, page.Rows[row]...)
	for _, p := range patches {
		if p.Column >= 0 && p.Column < len(cells) {
			cells[p.Column] = p.Value
		}
	}
	page.Rows[row] = cells

	next := s
	next.CurrentPage = &page
	return next
}

func containsString(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
