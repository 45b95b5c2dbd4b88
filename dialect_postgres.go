package asmdb

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// PostgreSQL dialect. Placeholders are numbered ($1, $2, ...).
	PostgreSQL struct {
		BaseDialect
	}
)

var _ Dialect = PostgreSQL{}

func (PostgreSQL) Name() string {
	return "postgresql"
}

func (p PostgreSQL) Types() ColumnTypes {
	t := p.BaseDialect.Types()
	t.DateTime = "TIMESTAMP WITHOUT TIME ZONE"
	return t
}

// SwitchParamPlaceholder numbers every "?" outside string literals.
func (PostgreSQL) SwitchParamPlaceholder(sql string) string {
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	inString := false
	for _, r := range sql {
		switch {
		case r == '\'':
			inString = !inString
			b.WriteRune(r)
		case r == '?' && !inString:
			n++
			b.WriteString("$" + strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (PostgreSQL) DDLAddSequence(table string, startAt int64) string {
	return fmt.Sprintf("CREATE SEQUENCE seq_%s START %d", table, startAt)
}

func (PostgreSQL) DDLDropIndex(name, table string) string {
	return "DROP INDEX IF EXISTS " + name
}

func (PostgreSQL) DDLDropSequence(table string) string {
	return "DROP SEQUENCE IF EXISTS seq_" + table
}

func (PostgreSQL) DDLModifyColumn(table, column, newType, using string) string {
	if using == "" {
		return fmt.Sprintf("ALTER TABLE %s ALTER %s TYPE %s", table, column, newType)
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER %s TYPE %s USING %s", table, column, newType, using)
}

func (PostgreSQL) SQLILike(expr1, expr2 string) string {
	if expr2 == "" {
		expr2 = "?"
	}
	return fmt.Sprintf("%s ILIKE %s", expr1, expr2)
}

func (p PostgreSQL) SQLRegexpReplace(expr, pattern, replace string) string {
	pattern, replace = p.quoteArgs(pattern, replace, false)
	return fmt.Sprintf("REGEXP_REPLACE(%s, %s, %s, 'g')", expr, pattern, replace)
}

func (PostgreSQL) SQLZeroPadLeft(expr string, digits int) string {
	return fmt.Sprintf("LPAD(%s::varchar, %d, '0')", expr, digits)
}
