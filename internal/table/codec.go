package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/casualty.report/internal/fsutil"
)

// DefaultSheet is the worksheet written by WriteXLSX.
const DefaultSheet = "Sheet1"

// ReadCSV parses a CSV stream whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv: empty input, expected header row")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: failed to read header: %w", err)
	}
	t, err := New(trimHeader(header))
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		if err := t.Append(rec); err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
	}
	return t, nil
}

// WriteCSV writes the header then every row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("csv: failed to write header: %w", err)
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return fmt.Errorf("csv: failed to write rows: %w", err)
	}
	return nil
}

// ReadXLSX reads the first worksheet of a workbook. Rows shorter than the
// header (excelize trims trailing empty cells) are padded with "".
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx: failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("xlsx: failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("xlsx: sheet %q is empty, expected header row", sheets[0])
	}

	t, err := New(trimHeader(rows[0]))
	if err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	width := len(t.columns)
	for i, r := range rows[1:] {
		if len(r) > width {
			return nil, fmt.Errorf("xlsx: row %d has %d cells, header has %d", i+2, len(r), width)
		}
		row := make([]string, width)
		copy(row, r)
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// WriteXLSX streams the table into a single-sheet workbook.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(DefaultSheet)
	if err != nil {
		return fmt.Errorf("xlsx: failed to create stream writer: %w", err)
	}
	writeRow := func(n int, cells []string) error {
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		return sw.SetRow(cell, values)
	}

	if err := writeRow(1, t.columns); err != nil {
		return fmt.Errorf("xlsx: failed to write header: %w", err)
	}
	for i, r := range t.rows {
		if err := writeRow(i+2, r); err != nil {
			return fmt.Errorf("xlsx: failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsx: failed to flush: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx: failed to write workbook: %w", err)
	}
	return nil
}

// Load reads path from fsys, choosing the codec by extension (.xlsx or CSV).
func Load(fsys fsutil.FileSystem, path string) (*Table, error) {
	f, err := fsys.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	if isXLSX(path) {
		return ReadXLSX(f)
	}
	return ReadCSV(f)
}

// Save writes t to path on fsys, choosing the codec by extension.
func Save(fsys fsutil.FileSystem, path string, t *Table) error {
	w, err := fsys.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	if isXLSX(path) {
		err = WriteXLSX(w, t)
	} else {
		err = WriteCSV(w, t)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

// trimHeader strips whitespace and a UTF-8 byte order mark from header names.
func trimHeader(h []string) []string {
	out := make([]string, len(h))
	for i, c := range h {
		if i == 0 {
			c = strings.TrimPrefix(c, "\ufeff")
		}
		out[i] = strings.TrimSpace(c)
	}
	return out
}
