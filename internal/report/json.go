// Package report handles diagnosis serialization and progress reporting
// for the pipeline CLI and its callers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/trace2pass/core/internal/model"
)

// WriteJSON serializes record as indented JSON. If path is "-" or empty,
// it writes to stdout.
func WriteJSON(record *model.BugRecord, path string) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// WriteJSONBatch serializes a slice of records as an indented JSON array,
// for queue/listing output.
func WriteJSONBatch(records []model.BugRecord, path string) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
