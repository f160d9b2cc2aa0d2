// Package mapping decodes provider rows into domain records through a
// declarative column table, so each entity's provider field names live in
// one place.
package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/unit"
)

// Field binds one provider column to a setter on T.
type Field[T any] struct {
	Column   string
	Required bool
	Apply    func(rec *T, raw string) error
}

// Table is an ordered set of field bindings for one record type.
type Table[T any] struct {
	Fields []Field[T]
}

// New creates a table from fields.
func New[T any](fields ...Field[T]) Table[T] {
	return Table[T]{Fields: fields}
}

// Decode builds a T from row. A missing or unparseable required column is
// a PARSE_FAILED error. Optional columns that are absent leave the field
// at its zero value.
func (t Table[T]) Decode(row frame.Row) (T, error) {
	var rec T
	for _, f := range t.Fields {
		raw, ok := row[f.Column]
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			if f.Required {
				return rec, core.Errorf(core.ErrParseFailed, "column %s missing", f.Column)
			}
			continue
		}
		if err := f.Apply(&rec, raw); err != nil {
			return rec, core.Errorf(core.ErrParseFailed, "column %s: %v", f.Column, err)
		}
	}
	return rec, nil
}

// Columns lists the provider columns the table reads.
func (t Table[T]) Columns() []string {
	out := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		out = append(out, f.Column)
	}
	return out
}

// Amount maps an amount column with 亿/万 suffixes into a nullable float.
func Amount[T any](column string, set func(*T) **float64) Field[T] {
	return Field[T]{Column: column, Apply: func(rec *T, raw string) error {
		*set(rec) = unit.ParseAmount(raw)
		return nil
	}}
}

// Percent maps a percent column into a nullable float.
func Percent[T any](column string, set func(*T) **float64) Field[T] {
	return Field[T]{Column: column, Apply: func(rec *T, raw string) error {
		*set(rec) = unit.ParsePercent(raw)
		return nil
	}}
}

// Float maps a plain numeric column into a nullable float.
func Float[T any](column string, set func(*T) **float64) Field[T] {
	return Field[T]{Column: column, Apply: func(rec *T, raw string) error {
		*set(rec) = unit.ParseFloat(raw)
		return nil
	}}
}

// Int64 maps an integer column into a nullable int64.
func Int64[T any](column string, set func(*T) **int64) Field[T] {
	return Field[T]{Column: column, Apply: func(rec *T, raw string) error {
		*set(rec) = unit.ParseInt(raw)
		return nil
	}}
}

// String maps a text column.
func String[T any](column string, set func(*T) *string) Field[T] {
	return Field[T]{Column: column, Apply: func(rec *T, raw string) error {
		*set(rec) = raw
		return nil
	}}
}

// Symbol maps a code column, zero padding it to six digits.
func Symbol[T any](column string, set func(*T) *string) Field[T] {
	return Field[T]{Column: column, Required: true, Apply: func(rec *T, raw string) error {
		s, err := core.NormalizeSymbol(raw)
		if err != nil {
			return err
		}
		*set(rec) = s
		return nil
	}}
}

// Date maps a required date column.
func Date[T any](column string, set func(*T) *time.Time) Field[T] {
	return Field[T]{Column: column, Required: true, Apply: func(rec *T, raw string) error {
		d, err := core.ParseDay(raw)
		if err != nil {
			return err
		}
		*set(rec) = d
		return nil
	}}
}

// OptionalDate maps a nullable date column. Unparseable values become nil.
func OptionalDate[T any](column string, set func(*T) **time.Time) Field[T] {
	return Field[T]{Column: column, Apply: func(rec *T, raw string) error {
		d, err := core.ParseDay(raw)
		if err != nil {
			*set(rec) = nil
			return nil
		}
		*set(rec) = &d
		return nil
	}}
}

// Required marks f as required.
func Required[T any](f Field[T]) Field[T] {
	f.Required = true
	return f
}

// Strict wraps a nullable numeric field so that a present but unparseable
// value is a decode error rather than nil.
func Strict[T any](f Field[T], get func(*T) *float64) Field[T] {
	apply := f.Apply
	f.Apply = func(rec *T, raw string) error {
		if err := apply(rec, raw); err != nil {
			return err
		}
		if get(rec) == nil {
			return fmt.Errorf("invalid number %q", raw)
		}
		return nil
	}
	return f
}
