// Package dataset defines the immutable tabular model the analyzers consume.
// A Table is column oriented: an ordered set of named columns of equal length.
package dataset

import (
	"fmt"
)

// ErrEmptyDataset is returned when an operation requires at least one row.
var ErrEmptyDataset = fmt.Errorf("dataset is empty")

// Column is a named, ordered list of cells
type Column struct {
	Name   string
	Values []Value
}

// Table is a column-oriented dataset. Analyzers treat it as read only;
// mutating operations return a new Table.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a Table from ordered columns. Every column must have a unique
// name and the same number of values.
func New(columns []Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, dup := t.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		if i == 0 {
			t.rows = len(col.Values)
		} else if len(col.Values) != t.rows {
			return nil, fmt.Errorf("column %q has %d values, expected %d",
				col.Name, len(col.Values), t.rows)
		}
		t.index[col.Name] = len(t.columns)
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// Rows returns the number of rows
func (t *Table) Rows() int { return t.rows }

// Cols returns the number of columns
func (t *Table) Cols() int { return len(t.columns) }

// IsEmpty reports whether the table has no rows or no columns
func (t *Table) IsEmpty() bool { return t.rows == 0 || len(t.columns) == 0 }

// ColumnNames returns the column names in declaration order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// Columns returns the ordered columns. Callers must not mutate the result.
func (t *Table) Columns() []Column { return t.columns }

// Column returns the named column, or false when absent
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the named column exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	cols := make([]Column, len(t.columns))
	for i, col := range t.columns {
		values := make([]Value, len(col.Values))
		copy(values, col.Values)
		cols[i] = Column{Name: col.Name, Values: values}
	}
	clone, _ := New(cols)
	return clone
}

// ReplaceColumn returns a copy of the table with the named column's values
// swapped for the given ones. The column keeps its position.
func (t *Table) ReplaceColumn(name string, values []Value) (*Table, error) {
	if _, ok := t.index[name]; !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	if len(values) != t.rows {
		return nil, fmt.Errorf("replacement for %q has %d values, expected %d",
			name, len(values), t.rows)
	}
	clone := t.Clone()
	clone.columns[clone.index[name]].Values = values
	return clone, nil
}

// DropColumn returns a copy of the table without the named column
func (t *Table) DropColumn(name string) (*Table, error) {
	if _, ok := t.index[name]; !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	cols := make([]Column, 0, len(t.columns)-1)
	for _, col := range t.columns {
		if col.Name == name {
			continue
		}
		values := make([]Value, len(col.Values))
		copy(values, col.Values)
		cols = append(cols, Column{Name: col.Name, Values: values})
	}
	return New(cols)
}

// NonNull returns the count of non-null cells in the column
func (c Column) NonNull() int {
	n := 0
	for _, v := range c.Values {
		if !v.IsNull() {
			n++
		}
	}
	return n
}
