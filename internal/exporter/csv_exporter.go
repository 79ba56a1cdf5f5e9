package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"evalgate/internal/audit"
)

// SchemaVersion identifies the auth event CSV layout. Bump it when columns
// are added, removed or reordered.
const SchemaVersion = "1"

var csvColumns = []string{
	"schemaVersion",
	"id",
	"kind",
	"subjectId",
	"reason",
	"path",
	"occurredAt",
}

// CSVExporter writes auth events as CSV for download.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType is the media type of Export's output.
func (e *CSVExporter) ContentType() string {
	return "text/csv; charset=utf-8"
}

// Export writes a header row followed by one row per event.
func (e *CSVExporter) Export(w io.Writer, events []audit.Event) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, event := range events {
		if err := writer.Write(eventToRow(event)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func eventToRow(event audit.Event) []string {
	return []string{
		SchemaVersion,
		event.ID.String(),
		string(event.Kind),
		event.SubjectID,
		event.Reason,
		sanitizeCell(event.Path),
		formatTime(event.OccurredAt),
	}
}

// sanitizeCell neutralises values that spreadsheet applications would
// otherwise evaluate as formulas.
func sanitizeCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	return value
}

// formatTime formats a time to an RFC3339 string in UTC.
func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
