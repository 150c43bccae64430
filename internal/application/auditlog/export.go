package auditlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// exportRecord is the flattened representation written to export files.
type exportRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	Details   string `json:"details,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Timestamp string `json:"timestamp"`
	Severity  string `json:"severity"`
	Category  string `json:"category"`
	Tags      string `json:"tags,omitempty"`
}

var exportHeader = []string{
	"id", "user_id", "session_id", "action", "resource",
	"details", "ip_address", "timestamp", "severity", "category", "tags",
}

// Export produces a compliance dump of entries within [from, to] in the
// requested format. The export itself is audited.
func (l *Logger) Export(ctx context.Context, from, to time.Time, format string) ([]byte, error) {
	entries, err := l.repo.Range(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit entries for export: %w", err)
	}

	records := make([]exportRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, toExportRecord(e))
	}

	var out []byte
	switch strings.ToLower(format) {
	case FormatJSON:
		out, err = json.MarshalIndent(records, "", "  ")
	case FormatCSV:
		out, err = writeCSV(records)
	case FormatXLSX:
		out, err = writeXLSX(records)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}

	l.LogExport(audit.ExportEvent{
		Resource: "audit_logs",
		Format:   strings.ToLower(format),
		From:     from,
		To:       to,
		Rows:     len(records),
	})

	return out, nil
}

func toExportRecord(e *audit.Entry) exportRecord {
	details := ""
	if len(e.Details) > 0 {
		if b, err := json.Marshal(e.Details); err == nil {
			details = string(b)
		}
	}
	return exportRecord{
		ID:        e.ID.String(),
		UserID:    e.UserID,
		SessionID: e.SessionID,
		Action:    string(e.Action),
		Resource:  e.Resource,
		Details:   details,
		IPAddress: e.IPAddress,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Severity:  string(e.Severity),
		Category:  string(e.Category),
		Tags:      strings.Join(e.Tags, ","),
	}
}

func writeCSV(records []exportRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := w.Write(r.fields()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXLSX(records []exportRecord) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Audit Logs"

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for col, name := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return nil, err
		}
	}

	for row, r := range records {
		for col, value := range r.fields() {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r exportRecord) fields() []string {
	return []string{
		r.ID, r.UserID, r.SessionID, r.Action, r.Resource,
		r.Details, r.IPAddress, r.Timestamp, r.Severity, r.Category, r.Tags,
	}
}
