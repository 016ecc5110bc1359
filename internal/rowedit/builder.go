// Package rowedit reconstructs a primary-key-scoped UPDATE statement from a
// cell-level edit, the structure metadata of the table and a snapshot of the
// currently loaded page.
package rowedit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/models"
	"github.com/dbscope/dbscope/internal/store"
)

// Structure metadata field names. These are a contract with the agent: the
// builder locates primary-key and type information by looking these names up
// in the structure's column list, not by position.
const (
	MetaPrimaryKey = "primary_key"
	MetaColumnName = "column_name"
	MetaDataType   = "data_type"
	MetaNullable   = "nullable"
)

// Edit maps an edited column name to its new raw text. A nil entry requests
// SQL NULL.
type Edit map[string]*string

// Statement is a built row update: the SQL to send to the agent plus the
// optimistic local patch for the highlighted page row.
type Statement struct {
	SQL     string
	Row     int
	Patches []store.CellPatch
}

type columnMeta struct {
	dataType string
	nullable bool
}

// Build derives the UPDATE statement for edit against the single highlighted
// row of page. It returns nil without error when the preconditions for an
// edit are not met (no single highlighted row, no structure, empty edit);
// metadata-shape problems return an error and emit no statement. Individual
// cells whose value cannot be coerced to the declared column type are logged
// and skipped rather than failing the whole edit.
func Build(page *models.Page, structure *models.Structure, edit Edit, log *zap.Logger) (*Statement, error) {
	if page == nil || structure == nil || len(edit) == 0 {
		return nil, nil
	}
	if len(page.HighlightedRows) != 1 {
		return nil, nil
	}
	row := page.HighlightedRows[0]
	if row < 0 || row >= len(page.Rows) {
		return nil, fmt.Errorf("highlighted row %d outside loaded page", row)
	}

	pkIdx := indexOf(structure.Columns, MetaPrimaryKey)
	nameIdx := indexOf(structure.Columns, MetaColumnName)
	typeIdx := indexOf(structure.Columns, MetaDataType)
	nullIdx := indexOf(structure.Columns, MetaNullable)
	if pkIdx < 0 || nameIdx < 0 || typeIdx < 0 {
		return nil, fmt.Errorf("structure for %q is missing %s/%s/%s metadata",
			structure.Table, MetaPrimaryKey, MetaColumnName, MetaDataType)
	}

	// Primary-key predicate columns, resolved to page column indexes. Names
	// the page does not carry are dropped; a structure/page mismatch must not
	// crash the edit.
	keyIndexes := map[string]int{}
	meta := map[string]columnMeta{}
	for _, srow := range structure.Rows {
		if nameIdx >= len(srow) || typeIdx >= len(srow) {
			continue
		}
		name := srow[nameIdx].Text()
		if name == "" {
			continue
		}
		nullable := true
		if nullIdx >= 0 && nullIdx < len(srow) {
			cell := srow[nullIdx]
			if cell.Type == models.TypeBoolean && !cell.Bool() {
				nullable = false
			}
		}
		meta[name] = columnMeta{dataType: srow[typeIdx].Text(), nullable: nullable}

		if pkIdx < len(srow) && srow[pkIdx].Bool() {
			if pageIdx := indexOf(page.Columns, name); pageIdx >= 0 {
				keyIndexes[name] = pageIdx
			}
		}
	}
	if len(keyIndexes) == 0 {
		return nil, fmt.Errorf("table %q has no primary key usable as a unique predicate", structure.Table)
	}

	// Coerce edited values. A failed coercion skips that column only.
	names := make([]string, 0, len(edit))
	for name := range edit {
		names = append(names, name)
	}
	sort.Strings(names)

	var sets []string
	var patches []store.CellPatch
	for _, name := range names {
		m, ok := meta[name]
		if !ok {
			log.Error("edited column missing from structure metadata",
				zap.String("table", structure.Table),
				zap.String("column", name))
			continue
		}
		value, err := coerce(edit[name], m)
		if err != nil {
			log.Error("cannot coerce edited value",
				zap.String("table", structure.Table),
				zap.String("column", name),
				zap.Error(err))
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", quoteIdent(name), value.SQLLiteral()))
		if pageIdx := indexOf(page.Columns, name); pageIdx >= 0 {
			patches = append(patches, store.CellPatch{Column: pageIdx, Value: value})
		}
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("no edited column survived type coercion")
	}

	// The WHERE clause pins the row by its pre-edit key values, read from the
	// page snapshot rather than the edit.
	keyNames := make([]string, 0, len(keyIndexes))
	for name := range keyIndexes {
		keyNames = append(keyNames, name)
	}
	sort.Strings(keyNames)

	var preds []string
	for _, name := range keyNames {
		current := page.Rows[row][keyIndexes[name]]
		preds = append(preds, fmt.Sprintf("%s = %s", quoteIdent(name), current.SQLLiteral()))
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteIdent(structure.Table),
		strings.Join(sets, ", "),
		strings.Join(preds, " AND "))

	return &Statement{SQL: sql, Row: row, Patches: patches}, nil
}

func coerce(raw *string, m columnMeta) (models.Value, error) {
	if raw == nil {
		if !m.nullable {
			return models.Value{}, fmt.Errorf("column is not nullable")
		}
		return models.Null(), nil
	}

	t := strings.ToUpper(m.dataType)
	switch {
	case strings.Contains(t, "INT"):
		i, err := strconv.ParseInt(strings.TrimSpace(*raw), 10, 64)
		if err != nil {
			return models.Value{}, fmt.Errorf("%q is not an integer", *raw)
		}
		return models.FromDriver(i), nil
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"),
		strings.Contains(t, "DOUB"), strings.Contains(t, "NUMERIC"),
		strings.Contains(t, "DECIMAL"):
		f, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
		if err != nil {
			return models.Value{}, fmt.Errorf("%q is not a number", *raw)
		}
		return models.Number(f), nil
	case strings.Contains(t, "BOOL"):
		switch strings.ToLower(strings.TrimSpace(*raw)) {
		case "true", "1":
			return models.Boolean(true), nil
		case "false", "0":
			return models.Boolean(false), nil
		}
		return models.Value{}, fmt.Errorf("%q is not a boolean", *raw)
	case strings.Contains(t, "BLOB"):
		return models.Bytes([]byte(*raw)), nil
	default:
		return models.String(*raw), nil
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
