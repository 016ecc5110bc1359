// Package store owns the single mutable view-model value for a dbscope
// session. All mutation happens through pure transition functions applied via
// Store.Apply; nothing outside this package mutates a State in place.
package store

import (
	"time"

	"github.com/dbscope/dbscope/internal/models"
)

// State is one immutable snapshot of the session view model. Database ids
// assigned by the agent start at 1, so the zero SelectedDatabase means no
// selection; the empty SelectedTable likewise.
type State struct {
	Databases        []models.DatabaseEntry
	SelectedDatabase int
	SelectedTable    string
	ViewMode         models.ViewMode
	Error            string

	CurrentPage      *models.Page
	CurrentStructure *models.Structure
	CurrentSort      *models.SortOrder
	PageRowNumber    int

	Query         *models.Query
	QueryResult   *models.QueryResult
	QueryHistory  []models.Query
	ExecutionTime time.Duration

	Favorites []string
	TableInfo string

	OutdatedDatabaseList bool
}

// NewState returns the initial session state. The database list starts
// outdated so the first orchestrator pass fetches it.
func NewState() State {
	return State{OutdatedDatabaseList: true}
}

// HasSelection reports whether both a database and a table are selected.
func (s State) HasSelection() bool {
	return s.SelectedDatabase != 0 && s.SelectedTable != ""
}

// DatabaseByID looks up a database entry by id.
func (s State) DatabaseByID(id int) (models.DatabaseEntry, bool) {
	for _, db := range s.Databases {
		if db.ID == id {
			return db, true
		}
	}
	return models.DatabaseEntry{}, false
}

// SelectionMatches reports whether a response keyed by (database id, table)
// still targets the current selection. Responses for stale keys are
// discarded, never merged.
func (s State) SelectionMatches(databaseID int, table string) bool {
	return s.SelectedDatabase == databaseID && s.SelectedTable == table
}
