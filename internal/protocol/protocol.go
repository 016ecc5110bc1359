// Package protocol defines the request/response contract between the dbscope
// client and the dbscoped agent. The sync core depends only on the Caller
// interface, never on a concrete transport.
package protocol

import "github.com/dbscope/dbscope/internal/models"

// Method names understood by the agent.
const (
	MethodDatabaseList      = "databaseList"
	MethodGetTableData      = "getTableData"
	MethodGetTableStructure = "getTableStructure"
	MethodGetTableInfo      = "getTableInfo"
	MethodExecute           = "execute"
)

// Caller submits one request and delivers the decoded response to done later.
// Call never blocks on the round trip; done runs on the transport's delivery
// goroutine once the response (or failure) arrives. result must be a pointer
// and is only valid when done receives a nil error.
type Caller interface {
	Call(method string, params any, result any, done func(error))
}

// DatabaseListResponse is the full set of databases the agent exposes.
type DatabaseListResponse struct {
	Databases []models.DatabaseEntry `json:"databases"`
}

type GetTableDataRequest struct {
	DatabaseID int    `json:"databaseId"`
	Table      string `json:"table"`
	Start      int    `json:"start"`
	Count      int    `json:"count"`
	Order      string `json:"order,omitempty"`
	Reverse    bool   `json:"reverse"`
}

type GetTableDataResponse struct {
	Columns []string         `json:"columns"`
	Values  [][]models.Value `json:"values"`
	Start   int              `json:"start"`
	Count   int              `json:"count"`
	Total   int              `json:"total"`
}

type GetTableStructureRequest struct {
	DatabaseID int    `json:"databaseId"`
	Table      string `json:"table"`
}

type GetTableStructureResponse struct {
	StructureColumns []string         `json:"structureColumns"`
	StructureValues  [][]models.Value `json:"structureValues"`
	IndexesColumns   []string         `json:"indexesColumns"`
	IndexesValues    [][]models.Value `json:"indexesValues"`
}

type GetTableInfoRequest struct {
	DatabaseID int    `json:"databaseId"`
	Table      string `json:"table"`
}

type GetTableInfoResponse struct {
	Definition string `json:"definition"`
}

type ExecuteRequest struct {
	DatabaseID int    `json:"databaseId"`
	Value      string `json:"value"`
}

// ExecuteResponse reports exactly one outcome, selected by Type.
type ExecuteResponse struct {
	Type          models.QueryResultKind `json:"type"`
	Columns       []string               `json:"columns,omitempty"`
	Values        [][]models.Value       `json:"values,omitempty"`
	InsertedID    int64                  `json:"insertedId,omitempty"`
	AffectedCount int                    `json:"affectedCount,omitempty"`
}
