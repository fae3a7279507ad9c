// Package dataset loads the honey sensor measurements into an in-memory table
// and partitions encoded rows into training and test sets.
//
// Tables are read from CSV files, Excel workbooks or an HTTP(S) URL. Cells are
// kept as strings; typed access happens per column so that a chart can check
// for the columns it needs without failing the whole load.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

var (
	// ErrNotFound is returned when the dataset file or URL does not exist.
	ErrNotFound = errors.New("dataset not found")
	// ErrMissingColumns is returned when a required column is absent.
	ErrMissingColumns = errors.New("missing columns")
)

// Table is an immutable, row-oriented view of a delimited dataset.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewTable builds a table and indexes its header. Rows shorter than the
// header are rejected.
func NewTable(header []string, rows [][]string) (*Table, error) {
	t := &Table{
		Header: make([]string, len(header)),
		Rows:   rows,
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.Header[i] = h
		if _, dup := t.index[h]; dup {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		t.index[h] = i
	}
	for i, row := range rows {
		if len(row) < len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", i+1, len(header), len(row))
		}
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column in the header.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// MissingColumns returns the subset of names not present in the header.
func (t *Table) MissingColumns(names ...string) []string {
	var missing []string
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// Require returns ErrMissingColumns when any of names is absent.
func (t *Table) Require(names ...string) error {
	if missing := t.MissingColumns(names...); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// Strings returns a copy of a column's cells with surrounding space trimmed.
func (t *Table) Strings(name string) ([]string, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, name)
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = strings.TrimSpace(row[i])
	}
	return out, nil
}

// Floats parses a column as float64. The first unparsable cell aborts with
// its 1-based row number.
func (t *Table) Floats(name string) ([]float64, error) {
	cells, err := t.Strings(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for r, c := range cells {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: invalid number %q", name, r+1, c)
		}
		out[r] = v
	}
	return out, nil
}

// Head returns a table holding at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Header: t.Header, Rows: t.Rows[:n], index: t.index}
}

// Fprint writes the table as aligned text with a leading row number column.
func (t *Table) Fprint(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(t.Header, "\t"))
	for i, row := range t.Rows {
		fmt.Fprintf(tw, "%d\t%s\t\n", i, strings.Join(row[:len(t.Header)], "\t"))
	}
	return tw.Flush()
}
