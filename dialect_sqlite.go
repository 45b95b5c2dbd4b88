package asmdb

import (
	"fmt"
	"strings"
)

type (
	// SQLite dialect. It has no sequences, no GREATEST and no
	// REGEXP_REPLACE unless an extension provides it.
	SQLite struct {
		BaseDialect
	}
)

var _ Dialect = SQLite{}

func (SQLite) Name() string {
	return "sqlite"
}

func (s SQLite) Types() ColumnTypes {
	t := s.BaseDialect.Types()
	t.ShortText = "TEXT"
	t.DateTime = "DATETIME"
	return t
}

func (SQLite) Explain(sql string) string {
	return "EXPLAIN QUERY PLAN " + sql
}

func (SQLite) DDLDropIndex(name, table string) string {
	return "DROP INDEX IF EXISTS " + name
}

func (SQLite) SQLGreatest(items ...string) string {
	switch len(items) {
	case 0:
		return "NULL"
	case 1:
		return items[0]
	}
	return fmt.Sprintf("MAX(%s)", strings.Join(items, ","))
}

func (SQLite) SQLZeroPadLeft(expr string, digits int) string {
	return fmt.Sprintf("SUBSTR('%0*d' || %s, -%d, %d)", digits, 0, expr, digits, digits)
}
