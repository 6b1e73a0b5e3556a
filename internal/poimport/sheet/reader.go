// Package sheet turns uploaded purchase-order spreadsheets into raw rows.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/partsdesk/partsdesk/internal/poimport"
)

var (
	// ErrUnsupportedFormat is returned for extensions other than xlsx/xlsm/csv.
	ErrUnsupportedFormat = errors.New("sheet: unsupported file format")
	// ErrNoHeader is returned when the file has no non-empty header row.
	ErrNoHeader = errors.New("sheet: header row not found")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Read dispatches on the filename extension.
func Read(filename string, r io.Reader) ([]poimport.RawRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".csv", ".txt":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// ReadXLSX reads the first worksheet. Numeric cells are returned as float64
// (date cells stay as day serials); text cells are returned as strings.
func ReadXLSX(r io.Reader) ([]poimport.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: open workbook: %w", err)
	}
	defer f.Close()

	name := f.GetSheetName(0)
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet: read rows: %w", err)
	}

	headerAt := firstNonEmpty(rows)
	if headerAt < 0 {
		return nil, ErrNoHeader
	}
	header := trimAll(rows[headerAt])

	var out []poimport.RawRow
	for i := headerAt + 1; i < len(rows); i++ {
		if isBlank(rows[i]) {
			continue
		}
		row := make(poimport.RawRow, len(header))
		for col, value := range rows[i] {
			if col >= len(header) || header[col] == "" {
				continue
			}
			row[header[col]] = xlsxValue(f, name, col+1, i+1, value)
		}
		out = append(out, row)
	}
	return out, nil
}

func xlsxValue(f *excelize.File, sheet string, col, row int, value string) any {
	if value == "" {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return value
	}
	kind, err := f.GetCellType(sheet, cell)
	if err != nil {
		return value
	}
	switch kind {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			return n
		}
	}
	return value
}

// ReadCSV reads a comma separated file with a header row. Input that is not
// valid UTF-8 is decoded as Windows-1252, which is what spreadsheet
// applications commonly emit.
func ReadCSV(r io.Reader) ([]poimport.RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, charmap.Windows1252.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sheet: parse csv: %w", err)
	}

	headerAt := firstNonEmpty(records)
	if headerAt < 0 {
		return nil, ErrNoHeader
	}
	header := trimAll(records[headerAt])

	var out []poimport.RawRow
	for _, rec := range records[headerAt+1:] {
		if isBlank(rec) {
			continue
		}
		row := make(poimport.RawRow, len(header))
		for col, value := range rec {
			if col >= len(header) || header[col] == "" {
				continue
			}
			if value == "" {
				row[header[col]] = nil
				continue
			}
			row[header[col]] = value
		}
		out = append(out, row)
	}
	return out, nil
}

func firstNonEmpty(rows [][]string) int {
	for i, r := range rows {
		if !isBlank(r) {
			return i
		}
	}
	return -1
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
