package wordprocessor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Formatter renders values for tags. Currency amounts are stored as whole
// cents.
type Formatter struct {
	DateLayout string
	TimeLayout string
	Yes        string
	No         string
}

var DefaultFormatter = Formatter{
	DateLayout: "01/02/2006",
	TimeLayout: "15:04",
	Yes:        "Yes",
	No:         "No",
}

func (f Formatter) Date(v interface{}) string {
	t, ok := toTime(v)
	if !ok {
		return ""
	}
	return t.Format(f.DateLayout)
}

func (f Formatter) Time(v interface{}) string {
	t, ok := toTime(v)
	if !ok {
		return ""
	}
	return t.Format(f.TimeLayout)
}

// Currency writes cents as a decimal amount without a symbol.
func (f Formatter) Currency(v interface{}) string {
	cents, _ := toInt64(v)
	return decimal.New(cents, -2).StringFixed(2)
}

func (f Formatter) YesNo(v interface{}) string {
	if i, _ := toInt64(v); i == 1 {
		return f.Yes
	}
	return f.No
}

func (f Formatter) Float(v interface{}) string {
	d, err := decimal.NewFromString(fmt.Sprint(v))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

// Value writes any column value. Times are written as dates.
func (f Formatter) Value(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return f.Date(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func toInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		return int64(x), true
	case decimal.Decimal:
		return x.IntPart(), true
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return 0, false
		}
		return d.IntPart(), true
	}
	return 0, false
}

// toTime accepts times and the date strings SQLite returns for columns
// without a date type.
func toTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
