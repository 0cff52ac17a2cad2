// Package export renders a plant's monthly daily-yield strip as a
// spreadsheet or a printable PDF.
package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/xuri/excelize/v2"
)

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"

	summarySheet = "summary"
	daysSheet    = "days"
)

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Filename is the suggested download name of an export.
func Filename(plant types.Plant, span series.MonthSpan, format string) string {
	month := span.StartDate
	if len(month) >= 7 {
		month = month[:7]
	}
	return fmt.Sprintf("plant-%d-%s.%s", plant.ID, month, format)
}

func total(days []types.DailyYield) float64 {
	var sum float64
	for _, d := range days {
		sum += d.Yield
	}
	return sum
}

// MonthXLSX renders a summary sheet and one row per day.
func MonthXLSX(plant types.Plant, span series.MonthSpan, days []types.DailyYield) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(daysSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	cells := []struct {
		sheet string
		cell  string
		value interface{}
	}{
		{summarySheet, "A1", "Daily Yield"},
		{summarySheet, "A3", "Plant"},
		{summarySheet, "B3", plant.Name},
		{summarySheet, "A4", "Plant ID"},
		{summarySheet, "B4", plant.ID},
		{summarySheet, "A5", "Month"},
		{summarySheet, "B5", span.Label},
		{summarySheet, "A6", "From"},
		{summarySheet, "B6", span.StartDate},
		{summarySheet, "A7", "To"},
		{summarySheet, "B7", span.EndDate},
		{summarySheet, "A8", "Total Yield (kWh)"},
		{summarySheet, "B8", total(days)},
		{daysSheet, "A1", "Date"},
		{daysSheet, "B1", "Yield (kWh)"},
	}
	for _, c := range cells {
		if err := f.SetCellValue(c.sheet, c.cell, c.value); err != nil {
			return nil, fmt.Errorf("failed to set %s!%s: %w", c.sheet, c.cell, err)
		}
	}
	for i, d := range days {
		row := i + 2
		if err := f.SetCellValue(daysSheet, fmt.Sprintf("A%d", row), d.Date); err != nil {
			return nil, fmt.Errorf("failed to set day row %d: %w", row, err)
		}
		if err := f.SetCellValue(daysSheet, fmt.Sprintf("B%d", row), d.Yield); err != nil {
			return nil, fmt.Errorf("failed to set day row %d: %w", row, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// MonthPDF renders a header, one table row per day and the month total.
func MonthPDF(plant types.Plant, span series.MonthSpan, days []types.DailyYield) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252, plant names are UTF-8
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()
	pdf.Cell(0, 8, "Daily Yield")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Plant: %s (%d)", plant.Name, plant.ID)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", span.Label))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s", span.StartDate, span.EndDate))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Yield (kWh)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, d := range days {
		pdf.CellFormat(50, 6, d.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.2f", d.Yield), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Total", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, fmt.Sprintf("%.2f", total(days)), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
