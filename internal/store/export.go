package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/pendlab/internal/analysis"
	"github.com/san-kum/pendlab/internal/dynamo"
)

// ExportData is the single-file JSON form of a run, metadata and
// trace together.
type ExportData struct {
	Meta    RunMetadata       `json:"meta"`
	Metrics analysis.Metrics  `json:"metrics"`
	Steps   int               `json:"steps"`
	Data    []dynamo.Snapshot `json:"data"`
}

func NewExportData(meta RunMetadata, log []dynamo.Snapshot) ExportData {
	return ExportData{
		Meta:    meta,
		Metrics: meta.Metrics,
		Steps:   len(log),
		Data:    log,
	}
}

func ExportJSON(path string, meta RunMetadata, log []dynamo.Snapshot) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeExport(file, NewExportData(meta, log))
}

func ExportJSONStdout(meta RunMetadata, log []dynamo.Snapshot) error {
	return writeExport(os.Stdout, NewExportData(meta, log))
}

func writeExport(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ImportJSON reads a run exported with ExportJSON.
func ImportJSON(path string) (*ExportData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
