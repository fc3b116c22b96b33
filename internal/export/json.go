package export

import (
	"encoding/json"
	"io"

	"github.com/alienxp03/tradedebate/internal/core"
)

// JSONExporter exports runs to JSON format.
type JSONExporter struct{}

// ExportData represents the full export structure.
type ExportData struct {
	Run      *core.Run             `json:"run"`
	Messages []*core.StoredMessage `json:"messages"`
}

// Export writes the run as JSON.
func (e *JSONExporter) Export(run *core.Run, messages []*core.StoredMessage, w io.Writer) error {
	if messages == nil {
		messages = []*core.StoredMessage{}
	}
	data := ExportData{
		Run:      run,
		Messages: messages,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}

// ContentType returns the MIME type for JSON.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}
