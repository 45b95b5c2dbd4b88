package wordprocessor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sheltermanager/asmdb"
)

// Column of an HTML table, Field is the column of the rows.
type Column struct {
	Field string
	Title string
}

// HTMLTable writes rows as an HTML table with a header row. Line feeds in
// text become <br/>.
func HTMLTable(rows []*asmdb.Row, cols []Column, f Formatter) string {
	var b strings.Builder
	b.WriteString(`<table border="1"><thead><tr>`)
	for _, c := range cols {
		b.WriteString("<th>" + c.Title + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, r := range rows {
		b.WriteString("<tr>")
		for _, c := range cols {
			switch v := r.Value(c.Field).(type) {
			case nil:
				b.WriteString("<td></td>")
			case time.Time:
				b.WriteString("<td>" + f.Date(v) + "</td>")
			case string:
				b.WriteString("<td>" + strings.Replace(v, "\n", "<br/>", -1) + "</td>")
			default:
				b.WriteString(fmt.Sprintf("<td>%v</td>", v))
			}
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

// TableValue returns the value of the field in the row. The field may
// have a prefix choosing the format: "d:" date, "t:" time, "c:" currency,
// "y:" yes or no, "f:" two decimals.
func TableValue(row *asmdb.Row, field string, f Formatter) string {
	if len(field) > 2 && field[1] == ':' {
		v := row.Value(field[2:])
		switch field[:2] {
		case "d:":
			return f.Date(v)
		case "t:":
			return f.Time(v)
		case "c:":
			return f.Currency(v)
		case "y:":
			return f.YesNo(v)
		case "f:":
			return f.Float(v)
		}
	}
	return f.Value(row.Value(field))
}

// TableTags makes tags for a list of rows, such as vaccinations of an
// animal. fields maps tag names to row fields (see TableValue). For each
// tag name T it makes:
//   - T1, T2, ... for rows in order
//   - TLAST1, TLAST2, ... for rows in reverse order
//   - T<TYPE> for the first row of each type, if typeField is set
//   - TDUE<TYPE> for the last row of each type that is due and not given,
//     if dueField is set
//   - TRECENT<TYPE> for the last row of each type that was given, if
//     givenField is set
//
// Types are uppercased with spaces and slashes removed.
func TableTags(rows []*asmdb.Row, fields map[string]string, typeField, dueField, givenField string, f Formatter) Tags {
	tags := Tags{}
	seen := map[string]bool{}
	for i, r := range rows {
		for k, v := range fields {
			tags[k+strconv.Itoa(i+1)] = TableValue(r, v, f)
		}
		if typeField == "" {
			continue
		}
		t := r.Value(typeField)
		if t == nil {
			continue
		}
		key := fmt.Sprint(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		for k, v := range fields {
			tags[k+typeSuffix(key)] = TableValue(r, v, f)
		}
	}
	due := map[string]bool{}
	given := map[string]bool{}
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		for k, v := range fields {
			tags[k+"LAST"+strconv.Itoa(len(rows)-i)] = TableValue(r, v, f)
		}
		if dueField != "" {
			t := r.Value(typeField)
			if t == nil {
				continue
			}
			key := fmt.Sprint(t)
			if !due[key] && r.Value(dueField) != nil && r.Value(givenField) == nil {
				due[key] = true
				for k, v := range fields {
					tags[k+"DUE"+typeSuffix(key)] = TableValue(r, v, f)
				}
			}
		}
		if givenField != "" {
			t := r.Value(typeField)
			if t == nil {
				continue
			}
			key := fmt.Sprint(t)
			if !given[key] && r.Value(givenField) != nil {
				given[key] = true
				for k, v := range fields {
					tags[k+"RECENT"+typeSuffix(key)] = TableValue(r, v, f)
				}
			}
		}
	}
	return tags
}

// RowTags makes a tag for each column of the row, named prefix plus the
// column name.
func RowTags(prefix string, row *asmdb.Row, f Formatter) Tags {
	tags := Tags{}
	if row == nil {
		return tags
	}
	prefix = strings.ToUpper(prefix)
	for _, c := range row.Columns() {
		tags[prefix+c] = f.Value(row.Value(c))
	}
	return tags
}

func typeSuffix(t string) string {
	t = strings.ToUpper(t)
	t = strings.Replace(t, " ", "", -1)
	return strings.Replace(t, "/", "", -1)
}
