// Package table holds the in-memory string table that flows between the
// pipeline stages. Cells are kept as text; stages parse numbers on demand.
package table

import (
	"fmt"
	"sort"
)

// Table is a row-major table with a named header.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New creates an empty table with the given header. Duplicate column names
// are rejected.
func New(columns []string) (*Table, error) {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range t.columns {
		if _, dup := t.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		t.index[c] = i
	}
	return t, nil
}

// MustNew is New for fixed headers known to be valid.
func MustNew(columns ...string) *Table {
	t, err := New(columns)
	if err != nil {
		panic(err)
	}
	return t
}

// Columns returns a copy of the header.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether col is in the header.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Index returns the position of col in the header.
func (t *Table) Index(col string) (int, bool) {
	i, ok := t.index[col]
	return i, ok
}

// Append adds a row. The row is copied and must match the header width.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("row has %d cells, header has %d", len(row), len(t.columns))
	}
	t.rows = append(t.rows, append([]string(nil), row...))
	return nil
}

// Row returns row i. The slice aliases table storage.
func (t *Table) Row(i int) []string { return t.rows[i] }

// Get returns the cell at row i, column col, or "" when col is absent.
func (t *Table) Get(i int, col string) string {
	j, ok := t.index[col]
	if !ok {
		return ""
	}
	return t.rows[i][j]
}

// Set writes the cell at row i, column col. Absent columns are ignored.
func (t *Table) Set(i int, col, v string) {
	if j, ok := t.index[col]; ok {
		t.rows[i][j] = v
	}
}

// Column returns a copy of every value in col, or nil when col is absent.
func (t *Table) Column(col string) []string {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// AddColumn appends col filled with fill. An existing column is overwritten
// with fill instead.
func (t *Table) AddColumn(col, fill string) {
	if j, ok := t.index[col]; ok {
		for _, r := range t.rows {
			r[j] = fill
		}
		return
	}
	t.index[col] = len(t.columns)
	t.columns = append(t.columns, col)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], fill)
	}
}

// Rename changes a column name. It is a no-op when from is absent and an
// error when to already exists.
func (t *Table) Rename(from, to string) error {
	j, ok := t.index[from]
	if !ok || from == to {
		return nil
	}
	if _, exists := t.index[to]; exists {
		return fmt.Errorf("cannot rename %q: column %q already exists", from, to)
	}
	delete(t.index, from)
	t.index[to] = j
	t.columns[j] = to
	return nil
}

// Drop removes the named columns; absent names are ignored.
func (t *Table) Drop(cols ...string) {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		if t.Has(c) {
			drop[c] = true
		}
	}
	if len(drop) == 0 {
		return
	}
	keep := make([]string, 0, len(t.columns)-len(drop))
	for _, c := range t.columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	*t = *t.Select(keep)
}

// Select returns a new table with only cols, in the given order. Absent
// columns are skipped.
func (t *Table) Select(cols []string) *Table {
	src := make([]int, 0, len(cols))
	names := make([]string, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if j, ok := t.index[c]; ok && !seen[c] {
			seen[c] = true
			src = append(src, j)
			names = append(names, c)
		}
	}
	out := MustNew(names...)
	out.rows = make([][]string, len(t.rows))
	for i, r := range t.rows {
		row := make([]string, len(src))
		for k, j := range src {
			row[k] = r[j]
		}
		out.rows[i] = row
	}
	return out
}

// SortColumns returns a copy with columns in lexicographic order.
func (t *Table) SortColumns() *Table {
	cols := t.Columns()
	sort.Strings(cols)
	return t.Select(cols)
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return t.Select(t.columns)
}
