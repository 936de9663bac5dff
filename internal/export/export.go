// Package export renders sensor log history as downloadable reports.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"home-sensor-backend/internal/model"
)

// Format is a report file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts "xlsx" (the default when empty) or "pdf".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename returns the attachment name for a report generated at t.
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("sensor-logs-%s.%s", t.UTC().Format("20060102-150405"), f)
}

// Summary is the header block of a report.
type Summary struct {
	GeneratedAt time.Time
	Filter      string
	Total       int
	Critical    int
	Warning     int
}

// Summarize counts logs by status.
func Summarize(logs []model.SensorLog, filter string, now time.Time) Summary {
	s := Summary{GeneratedAt: now, Filter: filter, Total: len(logs)}
	for _, l := range logs {
		switch l.Status {
		case "critical":
			s.Critical++
		case "warning":
			s.Warning++
		}
	}
	return s
}

// Render builds the report in the given format.
func Render(f Format, sum Summary, logs []model.SensorLog) ([]byte, error) {
	if f == FormatPDF {
		return BuildLogsPDF(sum, logs)
	}
	return BuildLogsXLSX(sum, logs)
}

var columns = []string{"Time", "Room", "Location", "Status", "Event", "Flood %", "Quake", "Temp", "Humidity", "RSSI", "Message"}

// BuildLogsXLSX renders a workbook with a summary sheet and a logs sheet.
func BuildLogsXLSX(sum Summary, logs []model.SensorLog) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	logsSheet := "logs"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(logsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Sensor Log Report")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", sum.GeneratedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Filter")
	_ = f.SetCellValue(summarySheet, "B4", sum.Filter)
	_ = f.SetCellValue(summarySheet, "A5", "Total")
	_ = f.SetCellValue(summarySheet, "B5", sum.Total)
	_ = f.SetCellValue(summarySheet, "A6", "Critical")
	_ = f.SetCellValue(summarySheet, "B6", sum.Critical)
	_ = f.SetCellValue(summarySheet, "A7", "Warning")
	_ = f.SetCellValue(summarySheet, "B7", sum.Warning)

	for i, c := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(logsSheet, cell, c)
	}
	for i, l := range logs {
		row := i + 2
		values := []any{
			l.Timestamp.UTC().Format(time.RFC3339),
			l.RoomName,
			l.Location,
			l.Status,
			l.EventType,
			l.FloodLevel,
			l.QuakeIntensity,
			optional(l.Temperature),
			optional(l.Humidity),
			l.RSSI,
			l.Message,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(logsSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildLogsPDF renders a landscape table of the logs.
func BuildLogsPDF(sum Summary, logs []model.SensorLog) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Sensor Log Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", sum.GeneratedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	if sum.Filter != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Filter: %s", sum.Filter))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Total: %d  Critical: %d  Warning: %d", sum.Total, sum.Critical, sum.Warning))
	pdf.Ln(8)

	widths := []float64{40, 32, 30, 20, 20, 60, 20, 55}
	header := []string{"Time", "Room", "Location", "Status", "Event", "Readings", "RSSI", "Message"}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range header {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, l := range logs {
		row := []string{
			l.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			l.RoomName,
			l.Location,
			l.Status,
			l.EventType,
			readingSummary(l),
			fmt.Sprintf("%d", l.RSSI),
			truncate(l.Message, 40),
		}
		for i, v := range row {
			pdf.CellFormat(widths[i], 5, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func readingSummary(l model.SensorLog) string {
	parts := []string{fmt.Sprintf("flood %d%%", l.FloodLevel)}
	if l.QuakeIntensity > 0 {
		parts = append(parts, fmt.Sprintf("quake %.1f", l.QuakeIntensity))
	}
	if l.Temperature != nil {
		parts = append(parts, fmt.Sprintf("%.1fC", *l.Temperature))
	}
	if l.Humidity != nil {
		parts = append(parts, fmt.Sprintf("%.0f%%RH", *l.Humidity))
	}
	return strings.Join(parts, ", ")
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
