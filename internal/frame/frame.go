// Package frame holds tabular provider output as ordered columns and string
// cells, the shape shared by collectors, the CSV cache and mapping tables.
package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Frame is an ordered table of string cells.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// Row is a single record addressed by column name.
type Row map[string]string

// New creates an empty frame with the given columns.
func New(columns ...string) *Frame {
	return &Frame{Columns: columns}
}

// Len returns the number of rows. A nil frame has none.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Empty reports whether the frame carries no rows.
func (f *Frame) Empty() bool {
	return f.Len() == 0
}

// Append adds a row. Short rows are padded, long rows are truncated.
func (f *Frame) Append(cells ...string) {
	row := make([]string, len(f.Columns))
	copy(row, cells)
	f.Rows = append(f.Rows, row)
}

// AppendRow adds a row given as a column map. Unknown columns are ignored.
func (f *Frame) AppendRow(r Row) {
	row := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		row[i] = r[c]
	}
	f.Rows = append(f.Rows, row)
}

// Row returns row i as a column map.
func (f *Frame) Row(i int) Row {
	r := make(Row, len(f.Columns))
	for j, c := range f.Columns {
		if j < len(f.Rows[i]) {
			r[c] = f.Rows[i][j]
		}
	}
	return r
}

// Records returns every row as a column map.
func (f *Frame) Records() []Row {
	out := make([]Row, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		out = append(out, f.Row(i))
	}
	return out
}

// Column returns all values of the named column, or nil if it is absent.
func (f *Frame) Column(name string) []string {
	idx := f.index(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, 0, f.Len())
	for _, row := range f.Rows {
		out = append(out, row[idx])
	}
	return out
}

// Has reports whether the frame carries the named column.
func (f *Frame) Has(name string) bool {
	return f.index(name) >= 0
}

// Filter returns a new frame holding the rows keep accepts.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	out := New(f.Columns...)
	for i := 0; i < f.Len(); i++ {
		if keep(f.Row(i)) {
			out.Rows = append(out.Rows, f.Rows[i])
		}
	}
	return out
}

func (f *Frame) index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// WriteCSV writes the header and rows.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(f.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// ReadCSV reads a frame written by WriteCSV. The first record is the header.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: missing header")
		}
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	f := New(header...)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	f.Rows = rows
	return f, nil
}
