package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CSVParser flattens a CSV file into one line per row, cells joined
// with ", ". The flattened shape keeps column values adjacent so row
// content embeds as a coherent unit.
type CSVParser struct{}

var _ Parser = (*CSVParser)(nil)

func (p *CSVParser) Parse(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("csv contains no rows")
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, strings.Join(rec, ", "))
	}
	return strings.Join(lines, "\n"), nil
}

// XLSXParser flattens a workbook the same way as CSV, sheet by sheet.
type XLSXParser struct{}

var _ Parser = (*XLSXParser)(nil)

func (p *XLSXParser) Parse(data []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	var parts []string
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, ", "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			parts = append(parts, sheet+"\n"+strings.Join(lines, "\n"))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("workbook contains no data")
	}
	return strings.Join(parts, "\n\n"), nil
}
