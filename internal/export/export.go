// Package export renders tabular reports as XLSX workbooks and PDF documents.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Money marks a cell value as a currency amount.
type Money float64

// WriteXLSX writes a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, sheet string, headers []string, rows [][]any) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = "Report"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E0E0E0"}},
	})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if len(headers) > 0 {
		last, err := excelize.CoordinatesToCellName(len(headers), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return err
		}
	}

	for r, row := range rows {
		values := make([]any, len(row))
		var moneyCols []int
		for c, v := range row {
			if m, ok := v.(Money); ok {
				values[c] = float64(m)
				moneyCols = append(moneyCols, c+1)
				continue
			}
			values[c] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		for _, col := range moneyCols {
			cell, err := excelize.CoordinatesToCellName(col, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, cell, cell, money); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}

const (
	pageWidth  = 277.0
	rowHeight  = 7.0
	headerSize = 9.0
)

// WritePDF writes a landscape A4 document with a title and one table.
func WritePDF(w io.Writer, title string, headers []string, rows [][]any) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(pageWidth, 10, title)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(pageWidth, 6, "Generated "+time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	pdf.Ln(10)

	width := pageWidth
	if len(headers) > 0 {
		width = pageWidth / float64(len(headers))
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	printHeader := func() {
		pdf.SetFont("Arial", "B", headerSize)
		pdf.SetFillColor(224, 224, 224)
		for _, h := range headers {
			pdf.CellFormat(width, rowHeight, tr(h), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", headerSize)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			printHeader()
		}
	})
	printHeader()

	for _, row := range rows {
		for c := range headers {
			var v any
			if c < len(row) {
				v = row[c]
			}
			text, align := pdfCell(v)
			pdf.CellFormat(width, rowHeight, tr(fit(pdf, text, width)), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(rows) == 0 {
		pdf.SetFont("Arial", "I", headerSize)
		pdf.CellFormat(pageWidth, rowHeight, "No records", "1", 1, "C", false, 0, "")
	}
	return pdf.Output(w)
}

func pdfCell(v any) (string, string) {
	switch val := v.(type) {
	case nil:
		return "", "L"
	case Money:
		return decimal.NewFromFloat(float64(val)).StringFixed(2), "R"
	case float64:
		return decimal.NewFromFloat(val).String(), "R"
	case int:
		return fmt.Sprintf("%d", val), "R"
	case bool:
		if val {
			return "Yes", "C"
		}
		return "No", "C"
	default:
		return fmt.Sprint(val), "L"
	}
}

// fit shortens text to the cell width.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
