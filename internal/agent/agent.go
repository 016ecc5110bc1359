// Package agent implements the remote side of the dbscope protocol: it
// exposes a set of attached SQLite databases over the request/response wire.
// Database ids are assigned in attachment order starting at 1.
package agent

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/models"
	"github.com/dbscope/dbscope/internal/protocol"
)

// Structure metadata field names emitted by getTableStructure. The client's
// update-statement builder locates these by name; they are part of the wire
// contract.
var structureColumns = []string{"column_name", "data_type", "nullable", "default", "primary_key"}

var indexesColumns = []string{"index_name", "unique", "columns"}

type database struct {
	id   int
	name string
	db   *sql.DB
}

// Agent answers protocol requests against its attached databases.
type Agent struct {
	databases []*database
	log       *zap.Logger
}

func New(log *zap.Logger) *Agent {
	return &Agent{log: log}
}

// Attach opens the SQLite file at path and exposes it under name.
func (a *Agent) Attach(name, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("open %s: %w", path, err)
	}
	a.databases = append(a.databases, &database{
		id:   len(a.databases) + 1,
		name: name,
		db:   db,
	})
	a.log.Info("database attached", zap.String("name", name), zap.String("path", path))
	return nil
}

// Close closes every attached database.
func (a *Agent) Close() {
	for _, d := range a.databases {
		_ = d.db.Close()
	}
}

// Handle implements transport.Handler.
func (a *Agent) Handle(method string, params json.RawMessage) (any, error) {
	switch method {
	case protocol.MethodDatabaseList:
		return a.databaseList()
	case protocol.MethodGetTableData:
		var req protocol.GetTableDataRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("bad %s request: %w", method, err)
		}
		return a.tableData(req)
	case protocol.MethodGetTableStructure:
		var req protocol.GetTableStructureRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("bad %s request: %w", method, err)
		}
		return a.tableStructure(req)
	case protocol.MethodGetTableInfo:
		var req protocol.GetTableInfoRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("bad %s request: %w", method, err)
		}
		return a.tableInfo(req)
	case protocol.MethodExecute:
		var req protocol.ExecuteRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("bad %s request: %w", method, err)
		}
		return a.execute(req)
	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

func (a *Agent) byID(id int) (*database, error) {
	for _, d := range a.databases {
		if d.id == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no database with id %d", id)
}

func (a *Agent) databaseList() (*protocol.DatabaseListResponse, error) {
	resp := &protocol.DatabaseListResponse{Databases: []models.DatabaseEntry{}}
	for _, d := range a.databases {
		tables, err := listTables(d.db)
		if err != nil {
			return nil, fmt.Errorf("list tables of %s: %w", d.name, err)
		}
		resp.Databases = append(resp.Databases, models.DatabaseEntry{
			ID:     d.id,
			Name:   d.name,
			Tables: tables,
		})
	}
	return resp, nil
}

func listTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// resolveTable guards against table names that were never listed; identifiers
// are interpolated into the generated SQL, so unknown names are refused
// outright.
func resolveTable(db *sql.DB, table string) error {
	tables, err := listTables(db)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("unknown table %q", table)
}

func (a *Agent) tableData(req protocol.GetTableDataRequest) (*protocol.GetTableDataResponse, error) {
	d, err := a.byID(req.DatabaseID)
	if err != nil {
		return nil, err
	}
	if err := resolveTable(d.db, req.Table); err != nil {
		return nil, err
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(req.Table))
	if err := d.db.QueryRow(countQuery).Scan(&total); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	// Clamp the window so start+count never walks past the table.
	start := req.Start
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	count := req.Count
	if count < 0 {
		count = 0
	}
	if start+count > total {
		count = total - start
	}

	query := fmt.Sprintf("SELECT * FROM %s", quoteIdent(req.Table))
	if req.Order != "" {
		columns, err := tableColumns(d.db, req.Table)
		if err != nil {
			return nil, err
		}
		if !containsString(columns, req.Order) {
			return nil, fmt.Errorf("unknown sort column %q", req.Order)
		}
		dir := "ASC"
		if req.Reverse {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", quoteIdent(req.Order), dir)
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", count, start)

	columns, values, err := queryValues(d.db, query)
	if err != nil {
		return nil, fmt.Errorf("query table data: %w", err)
	}

	return &protocol.GetTableDataResponse{
		Columns: columns,
		Values:  values,
		Start:   start,
		Count:   len(values),
		Total:   total,
	}, nil
}

func tableColumns(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dflt      any
			pkOrdinal int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pkOrdinal); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func (a *Agent) tableStructure(req protocol.GetTableStructureRequest) (*protocol.GetTableStructureResponse, error) {
	d, err := a.byID(req.DatabaseID)
	if err != nil {
		return nil, err
	}
	if err := resolveTable(d.db, req.Table); err != nil {
		return nil, err
	}

	rows, err := d.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(req.Table)))
	if err != nil {
		return nil, fmt.Errorf("table_info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	resp := &protocol.GetTableStructureResponse{
		StructureColumns: structureColumns,
		StructureValues:  [][]models.Value{},
		IndexesColumns:   indexesColumns,
		IndexesValues:    [][]models.Value{},
	}

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dflt      any
			pkOrdinal int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pkOrdinal); err != nil {
			return nil, err
		}
		resp.StructureValues = append(resp.StructureValues, []models.Value{
			models.String(name),
			models.String(colType),
			models.Boolean(notNull == 0),
			models.FromDriver(dflt),
			models.Boolean(pkOrdinal > 0),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes, err := tableIndexes(d.db, req.Table)
	if err != nil {
		return nil, fmt.Errorf("index metadata: %w", err)
	}
	resp.IndexesValues = indexes

	return resp, nil
}

func tableIndexes(db *sql.DB, table string) ([][]models.Value, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}

	type index struct {
		name   string
		unique bool
	}
	var indexes []index
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			_ = rows.Close()
			return nil, err
		}
		indexes = append(indexes, index{name: name, unique: unique == 1})
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	values := [][]models.Value{}
	for _, idx := range indexes {
		cols, err := indexColumns(db, idx.name)
		if err != nil {
			return nil, err
		}
		values = append(values, []models.Value{
			models.String(idx.name),
			models.Boolean(idx.unique),
			models.String(strings.Join(cols, ", ")),
		})
	}
	return values, nil
}

func indexColumns(db *sql.DB, index string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(index)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var (
			seqno int
			cid   int
			name  sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

func (a *Agent) tableInfo(req protocol.GetTableInfoRequest) (*protocol.GetTableInfoResponse, error) {
	d, err := a.byID(req.DatabaseID)
	if err != nil {
		return nil, err
	}

	var definition sql.NullString
	err = d.db.QueryRow(`
		SELECT sql FROM sqlite_master
		WHERE type = 'table' AND name = ?`, req.Table).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown table %q", req.Table)
	}
	if err != nil {
		return nil, err
	}
	return &protocol.GetTableInfoResponse{Definition: definition.String}, nil
}

func (a *Agent) execute(req protocol.ExecuteRequest) (*protocol.ExecuteResponse, error) {
	d, err := a.byID(req.DatabaseID)
	if err != nil {
		return nil, err
	}

	if returnsRows(req.Value) {
		columns, values, err := queryValues(d.db, req.Value)
		if err != nil {
			return nil, err
		}
		return &protocol.ExecuteResponse{
			Type:    models.ResultSelect,
			Columns: columns,
			Values:  values,
		}, nil
	}

	result, err := d.db.Exec(req.Value)
	if err != nil {
		return nil, err
	}
	if isInsert(req.Value) {
		id, _ := result.LastInsertId()
		return &protocol.ExecuteResponse{Type: models.ResultInsert, InsertedID: id}, nil
	}
	affected, _ := result.RowsAffected()
	return &protocol.ExecuteResponse{
		Type:          models.ResultUpdateDelete,
		AffectedCount: int(affected),
	}, nil
}

func returnsRows(query string) bool {
	switch firstWord(query) {
	case "select", "with", "pragma", "explain":
		return true
	}
	return false
}

func isInsert(query string) bool {
	return firstWord(query) == "insert"
}

func firstWord(query string) string {
	fields := strings.Fields(strings.TrimSpace(query))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func queryValues(db *sql.DB, query string) ([]string, [][]models.Value, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	values := [][]models.Value{}
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}

		row := make([]models.Value, len(columns))
		for i, v := range raw {
			row[i] = models.FromDriver(v)
		}
		values = append(values, row)
	}
	return columns, values, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
