// Package transfer reads and writes the portable export document.
package transfer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/aretw0/memovault/pkg/core"
)

// FormatVersion is written into every export.
const FormatVersion = "1.0"

const schemaURL = "https://memovault.local/schema/export.json"

//go:embed schema.json
var schemaJSON string

// Document is the export envelope.
type Document struct {
	Version    string      `json:"version"`
	ExportDate time.Time   `json:"exportDate"`
	Notes      []core.Note `json:"memos"`
}

var exportSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// ExportFilename is the suggested file name of an export taken at t.
func ExportFilename(t time.Time) string {
	return "memos_export_" + t.Format("20060102_1504") + ".json"
}

// Export writes the notes as an indented export document.
func Export(w io.Writer, notes []core.Note, now time.Time) error {
	doc := Document{
		Version:    FormatVersion,
		ExportDate: now.UTC(),
		Notes:      core.CloneNotes(notes),
	}
	if doc.Notes == nil {
		doc.Notes = []core.Note{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// Import reads and validates an export document. Any problem is reported
// as core.ErrImportValidation and nothing is returned.
func Import(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read import: %w", err)
	}

	sch, err := exportSchema()
	if err != nil {
		return Document{}, fmt.Errorf("compile export schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("%w: not JSON: %v", core.ErrImportValidation, err)
	}
	if err := sch.Validate(inst); err != nil {
		return Document{}, fmt.Errorf("%w: %v", core.ErrImportValidation, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", core.ErrImportValidation, err)
	}
	if doc.Notes == nil {
		doc.Notes = []core.Note{}
	}
	return doc, nil
}
