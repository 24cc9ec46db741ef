// Package persist writes a run's artifacts to the data root in the layout
// <data_root>/runs/<run_id>/{metadata.json, receipts.json,
// receipts/<receipt_id>.json, worldline_slice.json}.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"

	"openibank/worldline"
)

// Metadata is the content of a run's metadata.json.
type Metadata struct {
	RunID       string `json:"run_id"`
	Mode        string `json:"mode"`
	WorldLineID string `json:"worldline_id"`
	Version     string `json:"version"`
}

// ReceiptRef names one receipt to be written both into the run's aggregate
// receipts.json and its own per-receipt file.
type ReceiptRef struct {
	ID    string
	Value any
}

// Writer persists run artifacts under a resolved data root.
type Writer struct {
	dataRoot string
}

// New constructs a Writer rooted at dataRoot (see config.DefaultDataRoot).
func New(dataRoot string) *Writer {
	return &Writer{dataRoot: dataRoot}
}

func (w *Writer) runDir(runID string) string {
	return filepath.Join(w.dataRoot, "runs", runID)
}

// WriteMetadata writes metadata.json for the run.
func (w *Writer) WriteMetadata(meta Metadata) error {
	return writeJSON(filepath.Join(w.runDir(meta.RunID), "metadata.json"), meta)
}

// WriteReceipts writes receipts.json (the full array) and one file per
// receipt under receipts/<receipt_id>.json.
func (w *Writer) WriteReceipts(runID string, receipts []ReceiptRef) error {
	values := make([]any, len(receipts))
	for i, r := range receipts {
		values[i] = r.Value
	}
	if err := writeJSON(filepath.Join(w.runDir(runID), "receipts.json"), values); err != nil {
		return err
	}
	for _, r := range receipts {
		path := filepath.Join(w.runDir(runID), "receipts", r.ID+".json")
		if err := writeJSON(path, r.Value); err != nil {
			return err
		}
	}
	return nil
}

// WriteWorldLineSlice writes the run's full event stream, in append order,
// to worldline_slice.json.
func (w *Writer) WriteWorldLineSlice(runID string, events []worldline.Event) error {
	return writeJSON(filepath.Join(w.runDir(runID), "worldline_slice.json"), events)
}

func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
