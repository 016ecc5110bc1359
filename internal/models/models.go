package models

// PageSize is the fixed window size for table data fetches.
const PageSize = 50

// DatabaseEntry is one database exposed by the remote agent.
type DatabaseEntry struct {
	ID     int      `json:"id"`
	Name   string   `json:"name"`
	Tables []string `json:"tables"`
}

// SortDirection orders a sorted column.
type SortDirection string

const (
	SortUp   SortDirection = "up"
	SortDown SortDirection = "down"
)

// SortOrder is the active sort for the data view. Sort is table-scoped and
// never carried across table or database changes.
type SortOrder struct {
	Key       string
	Direction SortDirection
}

// Reversed reports whether the remote fetch should invert the order.
func (o SortOrder) Reversed() bool {
	return o.Direction == SortDown
}

// Page is one fetched window of table data. It is replaced atomically on
// every successful fetch and never merged partially.
type Page struct {
	DatabaseID      int
	Table           string
	Columns         []string
	Rows            [][]Value
	Start           int
	Count           int
	Total           int
	HighlightedRows []int
}

// Structure describes column and index metadata for one table. Column
// metadata is itself tabular: Columns names the metadata fields (the
// column_name / data_type / nullable / primary_key contract) and each entry
// of Rows describes one table column.
type Structure struct {
	DatabaseID     int
	Table          string
	Columns        []string
	Rows           [][]Value
	IndexesColumns []string
	IndexesValues  [][]Value
}

// Query is the SQL editor buffer plus the timestamp of its last edit or
// submission.
type Query struct {
	Value string
	Time  string
}

// QueryResultKind tags which of the three execution outcomes was produced.
type QueryResultKind string

const (
	ResultSelect       QueryResultKind = "select"
	ResultInsert       QueryResultKind = "insert"
	ResultUpdateDelete QueryResultKind = "update_delete"
)

// QueryResult holds exactly one execution outcome, selected by Kind.
type QueryResult struct {
	Kind QueryResultKind

	// ResultSelect
	Columns         []string
	Rows            [][]Value
	HighlightedRows []int

	// ResultInsert
	InsertedID int64

	// ResultUpdateDelete
	AffectedCount int
}

// ViewMode selects which fetched artifact the right panel renders.
type ViewMode int

const (
	ViewData ViewMode = iota
	ViewStructure
	ViewSQL
	ViewTableInfo
	ViewQueryHistory
)

func (m ViewMode) String() string {
	switch m {
	case ViewData:
		return "data"
	case ViewStructure:
		return "structure"
	case ViewSQL:
		return "sql"
	case ViewTableInfo:
		return "tableinfo"
	case ViewQueryHistory:
		return "history"
	default:
		return "unknown"
	}
}
