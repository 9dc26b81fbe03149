package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the storage type of a cell value
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindString
)

// String returns a string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindTime:
		return "datetime"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Value is a single typed cell. The zero value is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	t    time.Time
	s    string
}

// Null returns a null value
func Null() Value { return Value{} }

// Int wraps an integer cell
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float wraps a float cell
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool wraps a boolean cell
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Time wraps a datetime cell
func Time(v time.Time) Value { return Value{kind: KindTime, t: v} }

// String wraps a string cell
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the storage kind of the value
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the integer payload (zero unless KindInt)
func (v Value) Int() int64 { return v.i }

// Float returns the float payload (zero unless KindFloat)
func (v Value) Float() float64 { return v.f }

// Bool returns the boolean payload (false unless KindBool)
func (v Value) Bool() bool { return v.b }

// Time returns the datetime payload (zero time unless KindTime)
func (v Value) Time() time.Time { return v.t }

// Str returns the raw string payload (empty unless KindString)
func (v Value) Str() string { return v.s }

// Text renders any value as text, the way it would appear in a report.
// Null renders as an empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format("2006-01-02")
	default:
		return v.s
	}
}

// Numeric coerces the value to a float64. Strings are parsed, accepting
// both "." and "," as the decimal separator. The second return is false
// when the value has no numeric interpretation.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return 0, false
		}
		s = strings.Replace(s, ",", ".", 1)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"02-01-2006",
}

// AsTime coerces the value to a timestamp. Strings are parsed against the
// date layouts common in regional health registries (ISO and day-first).
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t, true
	case KindString:
		s := strings.TrimSpace(v.s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
