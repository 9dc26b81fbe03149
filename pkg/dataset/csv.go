package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FromCSV reads a header-first CSV stream into a Table. Cells are typed by
// a cheap value-level probe: empty and common NA markers become null,
// integers and floats are parsed, everything else stays a string. Date
// detection is deferred to the analyzers, which probe with AsTime.
func FromCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("reading csv header: %w", ErrEmptyDataset)
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = Column{Name: strings.TrimSpace(name)}
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		for i := range cols {
			var cell string
			if i < len(record) {
				cell = record[i]
			}
			cols[i].Values = append(cols[i].Values, parseCell(cell))
		}
	}

	return New(cols)
}

// WriteCSV renders the table as header-first CSV. Null cells become empty
// strings, the inverse of the NA handling in FromCSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	cols := t.Columns()
	record := make([]string, len(cols))
	for row := 0; row < t.Rows(); row++ {
		for i, col := range cols {
			v := col.Values[row]
			if v.IsNull() {
				record[i] = ""
			} else {
				record[i] = v.Text()
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row %d: %w", row, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

var naMarkers = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true,
}

func parseCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if naMarkers[strings.ToLower(s)] {
		return Null()
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return String(s)
}
