package data

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eeg-monitor/internal/models"
)

// ExportSessions renders session records as a downloadable file.
// Returns body, content type and file name.
func ExportSessions(format string, records []models.SessionRecord, timeRange models.TimeRange, now time.Time) ([]byte, string, string, error) {
	switch strings.ToLower(format) {
	case "csv":
		return exportCSV(records, timeRange, now)
	case "json":
		return exportJSON(records, timeRange, now)
	default:
		return nil, "", "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func exportFilename(timeRange models.TimeRange, now time.Time, ext string) string {
	return fmt.Sprintf("eeg_sessions_%s_%s.%s", timeRange, now.Format("20060102_150405"), ext)
}

func exportCSV(records []models.SessionRecord, timeRange models.TimeRange, now time.Time) ([]byte, string, string, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	rows := [][]string{{
		"id",
		"timestamp",
		"emotion",
		"confidence_percent",
		"alpha",
		"beta",
		"theta",
		"delta",
	}}

	for _, record := range records {
		rows = append(rows, []string{
			record.ID,
			record.CreatedAt.Format(time.RFC3339),
			string(record.Emotion),
			fmt.Sprintf("%.2f", record.Confidence),
			fmt.Sprintf("%.4f", record.EEGData.Alpha),
			fmt.Sprintf("%.4f", record.EEGData.Beta),
			fmt.Sprintf("%.4f", record.EEGData.Theta),
			fmt.Sprintf("%.4f", record.EEGData.Delta),
		})
	}

	if err := writer.WriteAll(rows); err != nil {
		return nil, "", "", fmt.Errorf("write csv: %w", err)
	}

	return []byte(buf.String()), "text/csv", exportFilename(timeRange, now, "csv"), nil
}

func exportJSON(records []models.SessionRecord, timeRange models.TimeRange, now time.Time) ([]byte, string, string, error) {
	if records == nil {
		records = []models.SessionRecord{}
	}

	payload := map[string]interface{}{
		"metadata": map[string]interface{}{
			"exported_at":    now.Format(time.RFC3339),
			"time_range":     timeRange,
			"total_sessions": len(records),
		},
		"sessions": records,
	}

	jsonData, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, "", "", fmt.Errorf("marshal sessions: %w", err)
	}

	return jsonData, "application/json", exportFilename(timeRange, now, "json"), nil
}
