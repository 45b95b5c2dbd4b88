// Package wordprocessor fills document templates with tags.
//
// A template contains placeholders such as <<AnimalName>>. In HTML and ODT
// content the angle brackets are escaped, so the placeholder reads
// &lt;&lt;AnimalName&gt;&gt;. Tag names are case insensitive.
package wordprocessor

import (
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	XMLOpener   = "&lt;&lt;"
	XMLCloser   = "&gt;&gt;"
	PlainOpener = "<<"
	PlainCloser = ">>"
)

// Tags maps uppercased tag names to their values. A nil value substitutes
// as an empty string.
type Tags map[string]interface{}

// AppendTags returns a new Tags containing a and b. Tags in b win.
func AppendTags(a, b Tags) Tags {
	out := make(Tags, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Lookup returns the value of the tag, matching the name case
// insensitively.
func (t Tags) Lookup(name string) (interface{}, bool) {
	name = strings.ToUpper(name)
	if v, ok := t[name]; ok {
		return v, true
	}
	for k, v := range t {
		if strings.ToUpper(k) == name {
			return v, true
		}
	}
	return nil, false
}

// SubstituteTagsPlain substitutes tags in text with << and >> and no
// escaping.
func SubstituteTagsPlain(body string, tags Tags) string {
	return SubstituteTags(body, tags, false, PlainOpener, PlainCloser)
}

// SubstituteTags replaces every tag between opener and closer with its
// value. Unknown tags become empty. Processing stops at an opener without
// a closer, leaving the rest of body as it is.
//
// With useXMLEscaping values are escaped unless they look like markup: an
// image, or anything with an entity, a line break or a table. Without it
// escaped brackets in opener and closer are unescaped first.
func SubstituteTags(body string, tags Tags, useXMLEscaping bool, opener, closer string) string {
	if !useXMLEscaping {
		opener = unescapeBrackets(opener)
		closer = unescapeBrackets(closer)
	}
	if opener == "" || closer == "" {
		return body
	}
	return fasttemplate.ExecuteFuncString(body, opener, closer, func(w io.Writer, tag string) (int, error) {
		v, ok := tags.Lookup(tag)
		if !ok || v == nil {
			return 0, nil
		}
		value := fmt.Sprint(v)
		if useXMLEscaping && !isMarkup(value) {
			value = escapeXML(value)
		}
		return io.WriteString(w, value)
	})
}

func isMarkup(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "<img") ||
		strings.Contains(l, "&#") ||
		strings.Contains(l, "<br") ||
		strings.Contains(l, "<table")
}

func escapeXML(s string) string {
	s = strings.Replace(s, "&", "&amp;", -1)
	s = strings.Replace(s, "<", "&lt;", -1)
	return strings.Replace(s, ">", "&gt;", -1)
}

func unescapeBrackets(s string) string {
	s = strings.Replace(s, "&lt;", "<", -1)
	return strings.Replace(s, "&gt;", ">", -1)
}
