package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadCSV reads a delimited file with a mandatory header row. At most limit
// data rows are kept; limit <= 0 means unlimited.
func ReadCSV(path string, limit int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		r.Comma = '\t'
	}

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: %s is empty", filepath.Base(path))
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &Table{Header: append([]string(nil), header...)}
	for limit <= 0 || len(t.Rows) < limit {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadXLSX reads the named sheet, or the first sheet when sheet is empty.
// The first row is the header.
func ReadXLSX(path, sheet string, limit int) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
	}
	target := sheets[0]
	if sheet != "" {
		target = ""
		for _, s := range sheets {
			if strings.EqualFold(s, sheet) {
				target = s
				break
			}
		}
		if target == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				sheet, filepath.Base(path), strings.Join(sheets, ", "))
		}
	}
	rows, err := f.GetRows(target)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", target, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read header: sheet %s is empty", target)
	}
	t := &Table{Header: rows[0]}
	for _, row := range rows[1:] {
		if limit > 0 && len(t.Rows) >= limit {
			break
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
