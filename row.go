package asmdb

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingAttribute = errors.New("missing attribute")
)

type (
	// Row is a single result row. Column names are stored uppercased and
	// every lookup is case insensitive, so row.Get("animalname") and
	// row.Get("ANIMALNAME") are the same column. Column order is kept in
	// the order the columns were first set.
	Row struct {
		columns []string
		values  map[string]interface{}
	}

	// AttributeError is returned when a row has no such column.
	AttributeError struct {
		Name string
	}
)

func (e *AttributeError) Error() string {
	return "row has no attribute " + strconv.Quote(e.Name)
}

func (e *AttributeError) Is(target error) bool {
	return target == ErrMissingAttribute
}

// NewRow creates a row from a map of column names to values. Since maps
// are unordered, columns are sorted by name.
func NewRow(in map[string]interface{}) *Row {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r := &Row{values: make(map[string]interface{}, len(in))}
	for _, k := range keys {
		r.Set(k, in[k])
	}
	return r
}

// NewRowColumns creates a row from parallel slices of column names and
// values, keeping their order.
func NewRowColumns(columns []string, values []interface{}) *Row {
	r := &Row{values: make(map[string]interface{}, len(columns))}
	for i, c := range columns {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		r.Set(c, v)
	}
	return r
}

// Get returns value of the column. An *AttributeError is returned if the
// row has no such column.
func (r *Row) Get(name string) (interface{}, error) {
	v, ok := r.values[strings.ToUpper(name)]
	if !ok {
		return nil, &AttributeError{Name: strings.ToUpper(name)}
	}
	return v, nil
}

// Value is like Get but returns nil for a missing column.
func (r *Row) Value(name string) interface{} {
	return r.values[strings.ToUpper(name)]
}

// Index returns value of the i-th column, nil if out of range.
func (r *Row) Index(i int) interface{} {
	if i < 0 || i >= len(r.columns) {
		return nil
	}
	return r.values[r.columns[i]]
}

func (r *Row) Has(name string) bool {
	_, ok := r.values[strings.ToUpper(name)]
	return ok
}

// Set sets value of the column, adding it to the end if it is new.
func (r *Row) Set(name string, value interface{}) {
	if r.values == nil {
		r.values = map[string]interface{}{}
	}
	key := strings.ToUpper(name)
	if _, ok := r.values[key]; !ok {
		r.columns = append(r.columns, key)
	}
	r.values[key] = value
}

// Delete removes the column. An *AttributeError is returned if the row has
// no such column.
func (r *Row) Delete(name string) error {
	key := strings.ToUpper(name)
	if _, ok := r.values[key]; !ok {
		return &AttributeError{Name: key}
	}
	delete(r.values, key)
	for i, c := range r.columns {
		if c == key {
			r.columns = append(r.columns[:i:i], r.columns[i+1:]...)
			break
		}
	}
	return nil
}

// Columns returns uppercased column names in order.
func (r *Row) Columns() []string {
	return append([]string{}, r.columns...)
}

func (r *Row) Len() int {
	return len(r.columns)
}

// Map returns a copy of the underlying map.
func (r *Row) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Copy returns an independent shallow copy of the row.
func (r *Row) Copy() *Row {
	return &Row{
		columns: append([]string{}, r.columns...),
		values:  r.Map(),
	}
}

// Int returns value of the column as int64, 0 if missing or not a number.
func (r *Row) Int(name string) int64 {
	i, _ := toInt(r.Value(name))
	return i
}

// Float returns value of the column as float64, 0 if missing or not a
// number.
func (r *Row) Float(name string) float64 {
	f, _ := toFloat(r.Value(name))
	return f
}

// Str returns value of the column as string, "" if missing or null.
func (r *Row) Str(name string) string {
	v := r.Value(name)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Time returns value of the column as time.Time, zero time if missing or
// not a time.
func (r *Row) Time(name string) time.Time {
	t, _ := r.Value(name).(time.Time)
	return t
}

func (r *Row) String() string {
	parts := make([]string, 0, len(r.columns))
	for _, c := range r.columns {
		parts = append(parts, fmt.Sprintf("%s: %v", c, r.values[c]))
	}
	return "<Row {" + strings.Join(parts, ", ") + "}>"
}

// DumpRow describes every column of the row, used as the body of audit
// records.
func DumpRow(r *Row) string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, r.Len())
	for _, c := range r.columns {
		parts = append(parts, fmt.Sprintf("%s=%v", c, displayValue(r.values[c])))
	}
	return strings.Join(parts, ", ")
}

// MapDiff describes the columns whose values differ between before and
// after, in the column order of after.
func MapDiff(before, after *Row) string {
	if before == nil || after == nil {
		return ""
	}
	parts := []string{}
	for _, c := range after.columns {
		old := before.Value(c)
		now := after.values[c]
		if displayValue(old) == displayValue(now) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s changed from '%v' to '%v'", c, displayValue(old), displayValue(now)))
	}
	return strings.Join(parts, ", ")
}

func displayValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(v)
}
