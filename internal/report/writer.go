package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write emits an escaped CSV report to w.
func Write(w io.Writer, headers []string, rows [][]string) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(EscapeRow(headers)); err != nil {
		return fmt.Errorf("writing headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(EscapeRow(row)); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteFile writes an escaped CSV report to path, creating parent
// directories as needed.
func WriteFile(path string, headers []string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV file: %w", err)
	}
	defer file.Close()

	return Write(file, headers, rows)
}
