package asmdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// toInt converts numbers and numeric strings to int64. Floating point and
// decimal strings are truncated.
func toInt(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case float32:
		return int64(x), true
	case float64:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case decimal.Decimal:
		return x.IntPart(), true
	case []byte:
		return toInt(string(x))
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d.IntPart(), true
		}
	}
	return 0, false
}

// toFloat converts numbers and numeric strings to float64. Strings are
// parsed as decimals, which is how NUMERIC columns arrive from most
// drivers.
func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case decimal.Decimal:
		f, _ := x.Float64()
		return f, true
	case []byte:
		return toFloat(string(x))
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		f, _ := d.Float64()
		return f, true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// idFromWhere returns the ID if where is an integer or a numeric string,
// which is the shorthand for "ID=<n>" in Update and Delete.
func idFromWhere(where interface{}) (int64, bool) {
	switch x := where.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
		return 0, false
	case float32, float64:
		i, _ := toInt(x)
		return i, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		i, _ := toInt(x)
		return i, true
	}
	return 0, false
}

func whereClause(where interface{}) (clause string, id int64) {
	if i, ok := idFromWhere(where); ok {
		return fmt.Sprintf("ID=%d", i), i
	}
	return fmt.Sprint(where), 0
}

// countPlaceholders counts "?" outside single quoted string literals.
func countPlaceholders(sql string) int {
	n := 0
	inString := false
	for _, r := range sql {
		switch r {
		case '\'':
			inString = !inString
		case '?':
			if !inString {
				n++
			}
		}
	}
	return n
}

// normalizeValue converts driver values to the types Row holds. Text
// arriving as []byte becomes string.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
