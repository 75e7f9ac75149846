package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// WriteFailureCSV writes the run's per-item failures as a two-column CSV
// (id, message) at path. Nothing is written when the run had no failures.
func WriteFailureCSV(res *Result, path string) error {
	if len(res.Errors) == 0 {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failure report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "message"}); err != nil {
		return fmt.Errorf("write failure report: %w", err)
	}
	for _, ie := range res.Errors {
		if err := w.Write([]string{strconv.Itoa(ie.ID), ie.Message}); err != nil {
			return fmt.Errorf("write failure report: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush failure report: %w", err)
	}
	return nil
}
