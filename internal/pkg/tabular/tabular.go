// Package tabular reads and writes header-first tables in CSV and XLSX form.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies a tabular file type
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for anything but csv and xlsx
var ErrUnsupportedFormat = errors.New("unsupported tabular format")

// ErrEmptyTable is returned when the input has no header row
var ErrEmptyTable = errors.New("file has no header row")

const utf8BOM = "\ufeff"

// FormatFromFilename picks the format from the file extension
func FormatFromFilename(name string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ParseFormat parses "csv" or "xlsx", case-insensitively
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type used when serving the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Row is one data row. Number is 1-based with the header as row 1.
// Err is set when the row itself could not be parsed.
type Row struct {
	Number int
	Cells  []string
	Err    error
}

// Table is a parsed header plus its data rows
type Table struct {
	Header  []string
	Rows    []Row
	columns map[string]int
}

func newTable(header []string) *Table {
	t := &Table{Header: header, columns: make(map[string]int, len(header))}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if i == 0 {
			key = strings.TrimPrefix(key, utf8BOM)
		}
		if _, dup := t.columns[key]; !dup && key != "" {
			t.columns[key] = i
		}
	}
	return t
}

// HasColumn reports whether the header names the column
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// MissingColumns returns the names absent from the header, in the given order
func (t *Table) MissingColumns(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Value returns the trimmed cell for the named column, or "" when absent
func (t *Table) Value(row Row, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(row.Cells) {
		return ""
	}
	return strings.TrimSpace(row.Cells[idx])
}

// Read parses the whole input in the given format
func Read(r io.Reader, format Format) (*Table, error) {
	switch format {
	case FormatCSV:
		return readCSV(r)
	case FormatXLSX:
		return readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func readCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	table := newTable(header)
	number := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		number++

		var parseErr *csv.ParseError
		switch {
		case errors.As(err, &parseErr):
			table.Rows = append(table.Rows, Row{Number: number, Err: parseErr.Err})
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		if isBlank(record) {
			continue
		}
		table.Rows = append(table.Rows, Row{Number: number, Cells: record})
	}
	return table, nil
}

func readXLSX(r io.Reader) (*Table, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyTable
	}

	table := newTable(rows[0])
	for i, cells := range rows[1:] {
		if isBlank(cells) {
			continue
		}
		table.Rows = append(table.Rows, Row{Number: i + 2, Cells: cells})
	}
	return table, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Write renders header and rows in the given format
func Write(w io.Writer, format Format, header []string, rows [][]string) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, header, rows)
	case FormatXLSX:
		return writeXLSX(w, header, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, header []string, rows [][]string) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	if err := setRow(file, sheet, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(file, sheet, i+2, row); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func setRow(file *excelize.File, sheet string, number int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, number)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", number, err)
	}
	return nil
}
