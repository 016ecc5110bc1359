package store

import (
	"testing"
	"time"

	"github.com/dbscope/dbscope/internal/models"
)

func twoDatabases() []models.DatabaseEntry {
	return []models.DatabaseEntry{
		{ID: 2, Name: "cache", Tables: []string{"entries"}},
		{ID: 1, Name: "app", Tables: []string{"users", "orders"}},
	}
}

func loadedState() State {
	s := NewState()
	s = UpdateDatabases(s, twoDatabases())
	s.CurrentPage = &models.Page{
		DatabaseID: 1,
		Table:      "users",
		Columns:    []string{"id", "name"},
		Rows: [][]models.Value{
			{models.Number(7), models.String("Alice")},
			{models.Number(8), models.String("Bob")},
		},
		Start: 0,
		Count: 2,
		Total: 120,
	}
	s.CurrentStructure = &models.Structure{DatabaseID: 1, Table: "users"}
	return s
}

func TestUpdateDatabases_SortsAndDefaultsSelection(t *testing.T) {
	s := UpdateDatabases(NewState(), twoDatabases())

	if s.Databases[0].ID != 1 || s.Databases[1].ID != 2 {
		t.Fatalf("expected databases sorted by id, got %v", s.Databases)
	}
	if s.SelectedDatabase != 1 {
		t.Errorf("expected first database selected, got %d", s.SelectedDatabase)
	}
	if s.SelectedTable != "users" {
		t.Errorf("expected first table selected, got %q", s.SelectedTable)
	}
	if s.OutdatedDatabaseList {
		t.Error("expected outdated flag cleared")
	}
}

func TestUpdateDatabases_SelectedTableAlwaysValid(t *testing.T) {
	s := UpdateDatabases(NewState(), twoDatabases())
	s = SelectTable(s, "orders")

	// The refreshed list no longer carries "orders".
	s = UpdateDatabases(s, []models.DatabaseEntry{
		{ID: 1, Name: "app", Tables: []string{"users"}},
		{ID: 2, Name: "cache", Tables: []string{"entries"}},
	})

	db, ok := s.DatabaseByID(s.SelectedDatabase)
	if !ok {
		t.Fatalf("selected database %d not in list", s.SelectedDatabase)
	}
	found := false
	for _, tbl := range db.Tables {
		if tbl == s.SelectedTable {
			found = true
		}
	}
	if !found {
		t.Errorf("selected table %q not in %v", s.SelectedTable, db.Tables)
	}
}

func TestUpdateDatabases_EmptyTableListYieldsNoTable(t *testing.T) {
	s := UpdateDatabases(NewState(), []models.DatabaseEntry{{ID: 1, Name: "empty"}})
	if s.SelectedTable != "" {
		t.Errorf("expected no table selected, got %q", s.SelectedTable)
	}
}

func TestUpdateDatabases_SameSelectionPreservesPageAndSort(t *testing.T) {
	s := loadedState()
	s.CurrentSort = &models.SortOrder{Key: "name", Direction: models.SortUp}

	s2 := UpdateDatabases(s, twoDatabases())

	if s2.CurrentPage == nil {
		t.Error("expected page preserved when selection unchanged")
	}
	if s2.CurrentSort == nil {
		t.Error("expected sort preserved when selection unchanged")
	}
}

func TestUpdateDatabases_ChangedSelectionClearsPageAndSort(t *testing.T) {
	s := loadedState()
	s.CurrentSort = &models.SortOrder{Key: "name", Direction: models.SortUp}
	s.PageRowNumber = 50

	// The selected table disappears, forcing a fallback.
	s2 := UpdateDatabases(s, []models.DatabaseEntry{
		{ID: 1, Name: "app", Tables: []string{"orders"}},
	})

	if s2.CurrentPage != nil || s2.CurrentStructure != nil || s2.CurrentSort != nil {
		t.Error("expected page, structure and sort cleared on selection change")
	}
	if s2.PageRowNumber != 0 {
		t.Errorf("expected pagination reset, got %d", s2.PageRowNumber)
	}
}

func TestSelectDatabase_ResetsTableAndFetchedData(t *testing.T) {
	s := loadedState()
	s2 := SelectDatabase(s, 2)

	if s2.SelectedDatabase != 2 {
		t.Fatalf("expected database 2, got %d", s2.SelectedDatabase)
	}
	if s2.SelectedTable != "entries" {
		t.Errorf("expected first table of new database, got %q", s2.SelectedTable)
	}
	if s2.CurrentPage != nil || s2.CurrentStructure != nil || s2.CurrentSort != nil {
		t.Error("expected fetched data cleared")
	}
	if s2.PageRowNumber != 0 {
		t.Errorf("expected pagination reset, got %d", s2.PageRowNumber)
	}
}

func TestSelectTable_ClearsFetchedData(t *testing.T) {
	s := loadedState()
	s.CurrentSort = &models.SortOrder{Key: "id", Direction: models.SortDown}

	s2 := SelectTable(s, "orders")

	if s2.CurrentPage != nil || s2.CurrentStructure != nil {
		t.Error("expected page and structure cleared")
	}
	if s2.CurrentSort != nil {
		t.Error("sort is table-scoped and must not carry over")
	}
}

func TestNextPreviousPage(t *testing.T) {
	s := loadedState()

	s2 := NextPage(s)
	if s2.PageRowNumber != models.PageSize {
		t.Errorf("expected cursor at %d, got %d", models.PageSize, s2.PageRowNumber)
	}
	if s2.CurrentPage != nil {
		t.Error("expected page invalidated")
	}

	s3 := s
	s3.PageRowNumber = 20
	s3 = PreviousPage(s3)
	if s3.PageRowNumber != 0 {
		t.Errorf("previous page must clamp at 0, got %d", s3.PageRowNumber)
	}
}

func TestGoToRow_Clamps(t *testing.T) {
	s := loadedState() // total 120

	s2 := GoToRow(s, 1000)
	if s2.PageRowNumber != 70 {
		t.Errorf("expected clamp to 70, got %d", s2.PageRowNumber)
	}
	if s2.CurrentPage != nil {
		t.Error("expected page invalidated")
	}

	s3 := GoToRow(s, -5)
	if s3.PageRowNumber != 0 {
		t.Errorf("expected clamp to 0, got %d", s3.PageRowNumber)
	}
}

func TestGoToRow_SmallTable(t *testing.T) {
	s := loadedState()
	s.CurrentPage.Total = 30

	s2 := GoToRow(s, 10)
	if s2.PageRowNumber != 0 {
		t.Errorf("expected clamp to 0 for table smaller than a page, got %d", s2.PageRowNumber)
	}
}

func TestGoToRow_NoPageIsNoop(t *testing.T) {
	s := loadedState()
	s.CurrentPage = nil
	s.PageRowNumber = 50

	s2 := GoToRow(s, 0)
	if s2.PageRowNumber != 50 {
		t.Errorf("expected no-op without a loaded page, got %d", s2.PageRowNumber)
	}
}

func TestSortBy_ResetsPagination(t *testing.T) {
	s := loadedState()
	s.PageRowNumber = 100

	s2 := SortBy(s, &models.SortOrder{Key: "name", Direction: models.SortDown})
	if s2.PageRowNumber != 0 {
		t.Errorf("sorting must restart from the first page, got %d", s2.PageRowNumber)
	}
	if s2.CurrentPage != nil {
		t.Error("expected page invalidated")
	}
	if !s2.CurrentSort.Reversed() {
		t.Error("expected descending sort reported as reversed")
	}
}

func TestSetViewMode_ClearsError(t *testing.T) {
	s := loadedState()
	s.Error = "boom"

	s2 := SetViewMode(s, models.ViewStructure)
	if s2.Error != "" {
		t.Error("mode switch must dismiss the error")
	}
	if s2.CurrentPage == nil {
		t.Error("mode switch must not invalidate fetched data")
	}
}

func TestRefresh_KeepsStructure(t *testing.T) {
	s := loadedState()
	s2 := Refresh(s)

	if !s2.OutdatedDatabaseList {
		t.Error("expected database list marked outdated")
	}
	if s2.CurrentPage != nil {
		t.Error("expected page invalidated")
	}
	if s2.CurrentStructure == nil {
		t.Error("structure is stable across a manual refresh")
	}
}

func TestToggleFavorite_IsItsOwnInverse(t *testing.T) {
	s := NewState()
	s = SetQuery(s, "SELECT 1", time.Now())

	s1 := ToggleFavorite(s)
	if len(s1.Favorites) != 1 || s1.Favorites[0] != "SELECT 1" {
		t.Fatalf("expected query appended, got %v", s1.Favorites)
	}

	s2 := ToggleFavorite(s1)
	if len(s2.Favorites) != 0 {
		t.Errorf("expected toggle to remove the query again, got %v", s2.Favorites)
	}
}

func TestToggleFavorite_EmptyQueryIsNoop(t *testing.T) {
	s := ToggleFavorite(NewState())
	if len(s.Favorites) != 0 {
		t.Errorf("expected no favorites, got %v", s.Favorites)
	}
}

func TestMergePage_DiscardsStaleKey(t *testing.T) {
	s := loadedState()
	s = SelectTable(s, "orders")

	late := &models.Page{DatabaseID: 1, Table: "users", Total: 120}
	s2 := MergePage(s, late)

	if s2.CurrentPage != nil {
		t.Error("a response for a previously selected table must be discarded")
	}
}

func TestMergePage_ClearsError(t *testing.T) {
	s := loadedState()
	s = SelectTable(s, "orders")
	s.Error = "boom"

	s2 := MergePage(s, &models.Page{DatabaseID: 1, Table: "orders"})
	if s2.CurrentPage == nil {
		t.Fatal("expected page merged")
	}
	if s2.Error != "" {
		t.Error("a successful merge clears the previous error")
	}
}

func TestSetTableInfo_KeyChecked(t *testing.T) {
	s := loadedState()
	s2 := SetTableInfo(s, 2, "entries", "CREATE TABLE entries (...)")
	if s2.TableInfo != "" {
		t.Error("definition for a non-selected table must be discarded")
	}

	s3 := SetTableInfo(s, 1, "users", "CREATE TABLE users (...)")
	if s3.TableInfo == "" {
		t.Error("expected definition stored for the selected table")
	}
}

func TestAppendQueryHistory_PreservesOrder(t *testing.T) {
	s := NewState()
	s = AppendQueryHistory(s, models.Query{Value: "A"})
	s = AppendQueryHistory(s, models.Query{Value: "B"})

	if len(s.QueryHistory) != 2 || s.QueryHistory[0].Value != "A" || s.QueryHistory[1].Value != "B" {
		t.Errorf("expected history [A B], got %v", s.QueryHistory)
	}
}

func TestPatchPageRow_DoesNotMutateSnapshot(t *testing.T) {
	s := loadedState()
	before := s.CurrentPage.Rows[1][1].Text()

	s2 := PatchPageRow(s, 1, "users", 1, []CellPatch{
		{Column: 1, Value: models.String("Robert")},
	})

	if got := s2.CurrentPage.Rows[1][1].Text(); got != "Robert" {
		t.Errorf("expected patched cell, got %q", got)
	}
	if got := s.CurrentPage.Rows[1][1].Text(); got != before {
		t.Errorf("patch must not mutate the previous snapshot, got %q", got)
	}
	if s2.CurrentPage.Rows[1][0].Text() != s.CurrentPage.Rows[1][0].Text() {
		t.Error("untouched cells must survive the patch")
	}
}

func TestPatchPageRow_KeyChecked(t *testing.T) {
	s := loadedState()
	s2 := PatchPageRow(s, 2, "entries", 0, []CellPatch{
		{Column: 0, Value: models.Null()},
	})
	if s2.CurrentPage.Rows[0][0].Type == models.TypeNull {
		t.Error("a patch keyed to another table must be dropped")
	}
}

func TestSetHighlightedRows(t *testing.T) {
	s := loadedState()
	s2 := SetHighlightedRows(s, []int{1})

	if len(s2.CurrentPage.HighlightedRows) != 1 || s2.CurrentPage.HighlightedRows[0] != 1 {
		t.Errorf("expected highlight on row 1, got %v", s2.CurrentPage.HighlightedRows)
	}
	if len(s.CurrentPage.HighlightedRows) != 0 {
		t.Error("highlight must not mutate the previous snapshot")
	}
}
