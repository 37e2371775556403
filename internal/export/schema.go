// Package export reads and writes the portable JSON backup of the event
// log. A document round-trips through export and import on the same or a
// replacement device; stored week labels are recomputed on import under
// the importing device's convention.
package export

import (
	"encoding/json"
	"fmt"
	"os"
)

// Version is the document format version this build reads and writes.
const Version = 1

// Document is the top-level JSON structure of a backup file.
type Document struct {
	Version    int           `json:"version"`
	Subject    string        `json:"subject"`
	ExportedAt string        `json:"exported_at"`
	Events     []EventRecord `json:"events"`
}

// EventRecord is one logged time event in the backup file. ID is kept so
// re-importing the same file skips events already present.
type EventRecord struct {
	ID    string `json:"id,omitempty"`
	Job   string `json:"job"`
	Start string `json:"start"` // RFC3339
	End   string `json:"end"`   // RFC3339
	Note  string `json:"note,omitempty"`
}

// LoadDocument reads and parses a backup file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing backup file: %w", err)
	}
	return &doc, nil
}

// WriteFile writes the document as indented JSON.
func (d *Document) WriteFile(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
