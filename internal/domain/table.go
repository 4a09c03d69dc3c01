package domain

import "strings"

// Table is one worksheet held as a grid of strings.
// Rows may be shorter than Header; missing cells read as "".
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// NewTable creates an empty table with the given header
func NewTable(name string, header []string) *Table {
	h := make([]string, len(header))
	copy(h, header)
	return &Table{Name: name, Header: h}
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the index of the first header equal to name
// (trimmed, case-insensitive), or -1.
func (t *Table) ColumnIndex(name string) int {
	want := strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i
		}
	}
	return -1
}

// FindColumn returns the first alias present in the header, or "" if none is
func (t *Table) FindColumn(aliases ...string) string {
	for _, a := range aliases {
		if idx := t.ColumnIndex(a); idx >= 0 {
			return t.Header[idx]
		}
	}
	return ""
}

// FindColumnContaining returns the first header that contains any of the
// fragments (case-insensitive), checking fragments in order.
func (t *Table) FindColumnContaining(fragments ...string) string {
	for _, f := range fragments {
		f = strings.ToUpper(f)
		for _, h := range t.Header {
			if strings.Contains(strings.ToUpper(h), f) {
				return h
			}
		}
	}
	return ""
}

// EnsureColumn returns the index of name, appending the column when absent
func (t *Table) EnsureColumn(name string) int {
	if idx := t.ColumnIndex(name); idx >= 0 {
		return idx
	}
	t.Header = append(t.Header, name)
	return len(t.Header) - 1
}

// Cell returns the value at (row, col), "" when out of range
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// Value returns the value of the named column at row
func (t *Table) Value(row int, column string) string {
	return t.Cell(row, t.ColumnIndex(column))
}

// SetCell writes value at (row, col), growing the row as needed
func (t *Table) SetCell(row, col int, value string) {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return
	}
	for len(t.Rows[row]) <= col {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][col] = value
}

// AppendRow appends a row built from column-name keyed values.
// Keys missing from the header are added as new columns.
func (t *Table) AppendRow(values map[string]string) {
	row := make([]string, len(t.Header))
	for k, v := range values {
		idx := t.EnsureColumn(k)
		for len(row) <= idx {
			row = append(row, "")
		}
		row[idx] = v
	}
	t.Rows = append(t.Rows, row)
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	c := NewTable(t.Name, t.Header)
	c.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		c.Rows[i] = append([]string(nil), r...)
	}
	return c
}

// MoveColumnsFirst reorders the table so the named columns lead, in the
// given order. Names not in the header are ignored.
func (t *Table) MoveColumnsFirst(names ...string) {
	order := make([]int, 0, len(t.Header))
	used := make(map[int]bool)
	for _, n := range names {
		if idx := t.ColumnIndex(n); idx >= 0 && !used[idx] {
			order = append(order, idx)
			used[idx] = true
		}
	}
	for i := range t.Header {
		if !used[i] {
			order = append(order, i)
		}
	}

	header := make([]string, len(order))
	for i, idx := range order {
		header[i] = t.Header[idx]
	}
	for r := range t.Rows {
		row := make([]string, len(order))
		for i, idx := range order {
			row[i] = t.Cell(r, idx)
		}
		t.Rows[r] = row
	}
	t.Header = header
}

// IsBlank reports whether a cell value is empty or whitespace-only
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
