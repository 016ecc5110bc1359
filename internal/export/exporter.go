// Package export writes the currently loaded page to a file, using the typed
// page snapshot rather than the rendered cells so byte columns keep their
// encoding and numbers keep their precision.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dbscope/dbscope/internal/models"
)

// PageToCSV writes page as CSV with one header row.
func PageToCSV(page *models.Page, path string) error {
	if page == nil {
		return fmt.Errorf("no page loaded")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(page.Columns); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, row := range page.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = v.Display()
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}

	return writer.Error()
}

// PageToJSON writes page as a JSON array of column-keyed objects, preserving
// the typed wire representation of every cell.
func PageToJSON(page *models.Page, path string) error {
	if page == nil {
		return fmt.Errorf("no page loaded")
	}

	rows := make([]map[string]models.Value, 0, len(page.Rows))
	for _, row := range page.Rows {
		obj := make(map[string]models.Value, len(row))
		for i, v := range row {
			if i < len(page.Columns) {
				obj[page.Columns[i]] = v
			}
		}
		rows = append(rows, obj)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write JSON file: %w", err)
	}
	return nil
}
