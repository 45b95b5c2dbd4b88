package asmdb

import "strings"

// Stored text uses backticks for apostrophes, and "&bt;" for backticks.
// Rows written by older versions depend on these exact replacements.

// EncodeStrBeforeWrite returns a copy of values with every string encoded
// for storage. Strings are XSS escaped unless the column name contains an
// asterisk, which is removed from the name.
func EncodeStrBeforeWrite(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		if strings.Contains(k, "*") {
			k = strings.Replace(k, "*", "", -1)
		} else {
			s = EscapeXSS(s)
		}
		out[k] = encodeStr(s)
	}
	return out
}

func encodeStr(s string) string {
	s = strings.Replace(s, "`", "&bt;", -1)
	return strings.Replace(s, "'", "`", -1)
}

// EncodeStrAfterRead reverses the storage encoding of a string.
func EncodeStrAfterRead(s string) string {
	s = strings.Replace(s, "`", "'", -1)
	return strings.Replace(s, "&bt;", "`", -1)
}

// EscapeXSS escapes angle brackets.
func EscapeXSS(s string) string {
	s = strings.Replace(s, "<", "&lt;", -1)
	return strings.Replace(s, ">", "&gt;", -1)
}

// Escape makes a string safe for inlining in a statement, using the escape
// of the dialect.
func (d *Database) Escape(s string) string {
	return d.dialect.Escape(s)
}
