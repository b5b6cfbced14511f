// Package dataset holds the tabular inputs of a modeling run: the training
// occurrences, the background pool, and the prediction grid. It owns the
// feature schema shared by all three and the per-iteration bootstrap
// assembly of balanced training sets.
package dataset

import (
	"github.com/habitatlab/sdmgo/pkg/errors"
)

// Table is a named, column-major table of raw string cells, as read from a
// delimited file. Typing happens later, against a Schema.
type Table struct {
	Name    string
	Columns []string
	cells   [][]string // one slice per column, parallel to Columns
}

// NewTable builds a Table from column names and row-major records.
func NewTable(name string, columns []string, records [][]string) (*Table, error) {
	cells := make([][]string, len(columns))
	for i := range cells {
		cells[i] = make([]string, 0, len(records))
	}
	for _, rec := range records {
		if len(rec) != len(columns) {
			return nil, errors.NewDimensionError("NewTable", len(columns), len(rec), 1)
		}
		for i, v := range rec {
			cells[i] = append(cells[i], v)
		}
	}
	return &Table{Name: name, Columns: columns, cells: cells}, nil
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	if len(t.cells) == 0 {
		return 0
	}
	return len(t.cells[0])
}

// Column returns the raw cells of the named column.
func (t *Table) Column(name string) ([]string, bool) {
	for i, c := range t.Columns {
		if c == name {
			return t.cells[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Row returns one row as a slice ordered like Columns.
func (t *Table) Row(i int) []string {
	row := make([]string, len(t.Columns))
	for j := range t.Columns {
		row[j] = t.cells[j][i]
	}
	return row
}
