package dataset

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidColumns(t *testing.T) {
	_, err := New([]Column{
		{Name: "a", Values: []Value{Int(1)}},
		{Name: "a", Values: []Value{Int(2)}},
	})
	assert.Error(t, err, "duplicate names must be rejected")

	_, err = New([]Column{
		{Name: "a", Values: []Value{Int(1), Int(2)}},
		{Name: "b", Values: []Value{Int(3)}},
	})
	assert.Error(t, err, "ragged columns must be rejected")

	_, err = New([]Column{{Name: "", Values: nil}})
	assert.Error(t, err, "unnamed columns must be rejected")
}

func TestTableAccessors(t *testing.T) {
	table, err := New([]Column{
		{Name: "edad", Values: []Value{Int(34), Null(), Int(45)}},
		{Name: "sexo", Values: []Value{String("M"), String("F"), String("M")}},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, table.Rows())
	assert.Equal(t, 2, table.Cols())
	assert.False(t, table.IsEmpty())
	assert.Equal(t, []string{"edad", "sexo"}, table.ColumnNames())
	assert.True(t, table.HasColumn("edad"))
	assert.False(t, table.HasColumn("metodo"))

	col, ok := table.Column("edad")
	require.True(t, ok)
	assert.Equal(t, 2, col.NonNull())
}

func TestCloneIsIndependent(t *testing.T) {
	table, err := New([]Column{
		{Name: "a", Values: []Value{String("x"), String("y")}},
	})
	require.NoError(t, err)

	clone := table.Clone()
	clone.columns[0].Values[0] = String("z")

	original, _ := table.Column("a")
	assert.Equal(t, "x", original.Values[0].Str())
}

func TestReplaceColumn(t *testing.T) {
	table, err := New([]Column{
		{Name: "a", Values: []Value{Int(1), Int(2)}},
		{Name: "b", Values: []Value{Int(3), Int(4)}},
	})
	require.NoError(t, err)

	replaced, err := table.ReplaceColumn("a", []Value{String("x"), String("y")})
	require.NoError(t, err)

	col, _ := replaced.Column("a")
	assert.Equal(t, "x", col.Values[0].Str())
	assert.Equal(t, []string{"a", "b"}, replaced.ColumnNames(), "column order preserved")

	original, _ := table.Column("a")
	assert.Equal(t, int64(1), original.Values[0].Int(), "source table untouched")

	_, err = table.ReplaceColumn("missing", []Value{Null(), Null()})
	assert.Error(t, err)

	_, err = table.ReplaceColumn("a", []Value{Null()})
	assert.Error(t, err, "length mismatch must be rejected")
}

func TestDropColumn(t *testing.T) {
	table, err := New([]Column{
		{Name: "a", Values: []Value{Int(1)}},
		{Name: "b", Values: []Value{Int(2)}},
	})
	require.NoError(t, err)

	dropped, err := table.DropColumn("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, dropped.ColumnNames())
	assert.True(t, table.HasColumn("a"), "source table untouched")

	_, err = table.DropColumn("missing")
	assert.Error(t, err)
}

func TestValueNumeric(t *testing.T) {
	cases := []struct {
		value Value
		want  float64
		ok    bool
	}{
		{Int(42), 42, true},
		{Float(3.5), 3.5, true},
		{String("17"), 17, true},
		{String("3,14"), 3.14, true},
		{String("  2.5 "), 2.5, true},
		{String("NaN"), 0, false},
		{String("abc"), 0, false},
		{Bool(true), 0, false},
		{Null(), 0, false},
	}
	for _, c := range cases {
		got, ok := c.value.Numeric()
		assert.Equal(t, c.ok, ok, "value %v", c.value)
		if ok {
			assert.InDelta(t, c.want, got, 1e-9)
		}
	}
}

func TestValueAsTime(t *testing.T) {
	ts, ok := String("2024-03-15").AsTime()
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	ts, ok = String("15/03/2024").AsTime()
	require.True(t, ok)
	assert.Equal(t, time.March, ts.Month())

	_, ok = String("not a date").AsTime()
	assert.False(t, ok)

	_, ok = Int(20240315).AsTime()
	assert.False(t, ok)
}

func TestFromCSV(t *testing.T) {
	input := "edad,municipio,lat\n34,Sevilla,37.39\nNA,Granada,\n45,,36.72\n"
	table, err := FromCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 3, table.Rows())
	assert.Equal(t, []string{"edad", "municipio", "lat"}, table.ColumnNames())

	edad, _ := table.Column("edad")
	assert.Equal(t, KindInt, edad.Values[0].Kind())
	assert.True(t, edad.Values[1].IsNull(), "NA marker becomes null")

	lat, _ := table.Column("lat")
	assert.Equal(t, KindFloat, lat.Values[0].Kind())
	assert.True(t, lat.Values[1].IsNull(), "empty cell becomes null")
}

func TestFromCSVEmptyInput(t *testing.T) {
	_, err := FromCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	table, err := New([]Column{
		{Name: "edad", Values: []Value{Int(34), Null()}},
		{Name: "municipio", Values: []Value{String("Sevilla"), String("Granada")}},
	})
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, table.WriteCSV(&sb))

	parsed, err := FromCSV(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, table.ColumnNames(), parsed.ColumnNames())
	assert.Equal(t, table.Rows(), parsed.Rows())

	edad, _ := parsed.Column("edad")
	assert.Equal(t, int64(34), edad.Values[0].Int())
	assert.True(t, edad.Values[1].IsNull())
}
