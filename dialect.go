package asmdb

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Dialect holds everything that differs between database engines: the
	// placeholder token, DDL statements, literal formatting and SQL
	// expressions. Implementations embed BaseDialect and override what their
	// engine does differently.
	Dialect interface {
		Name() string
		Types() ColumnTypes

		// SwitchParamPlaceholder rewrites "?" placeholders into the token
		// the driver expects.
		SwitchParamPlaceholder(sql string) string
		Limit(n int) string
		Explain(sql string) string

		DDLAddColumn(table, column, columnType string) string
		DDLAddIndex(name, table, column string, unique, partial bool) string
		DDLAddSequence(table string, startAt int64) string
		DDLAddTable(name, fieldBlock string) string
		DDLAddTableColumn(name, columnType string, nullable, primaryKey bool) string
		DDLAddView(name, sql string) string
		DDLDropColumn(table, column string) string
		DDLDropIndex(name, table string) string
		DDLDropSequence(table string) string
		DDLDropView(name string) string
		DDLModifyColumn(table, column, newType, using string) string

		Escape(s string) string
		SQLValue(v interface{}) string
		SQLDate(t time.Time, wrapQuotes, includeTime bool) string
		SQLCast(expr, newType string) string
		SQLCastChar(expr string) string
		SQLCharLength(expr string) string
		SQLConcat(items ...string) string
		SQLGreatest(items ...string) string
		SQLILike(expr1, expr2 string) string
		SQLRegexpReplace(expr, pattern, replace string) string
		SQLReplace(expr, find, replace string) string
		SQLSubstring(expr string, pos, chars int) string
		SQLZeroPadLeft(expr string, digits int) string
	}

	// ColumnTypes are the column types used when creating tables.
	ColumnTypes struct {
		ShortText string
		LongText  string
		Clob      string
		DateTime  string
		Integer   string
		Float     string
	}

	// BaseDialect generates ANSI SQL. Engines without sequences or column
	// type changes get empty statements for those.
	BaseDialect struct{}
)

var _ Dialect = BaseDialect{}

func (BaseDialect) Name() string {
	return "ansi"
}

func (BaseDialect) Types() ColumnTypes {
	return ColumnTypes{
		ShortText: "VARCHAR(1024)",
		LongText:  "TEXT",
		Clob:      "TEXT",
		DateTime:  "TIMESTAMP",
		Integer:   "INTEGER",
		Float:     "REAL",
	}
}

func (BaseDialect) SwitchParamPlaceholder(sql string) string {
	return sql
}

func (BaseDialect) Limit(n int) string {
	return fmt.Sprintf("LIMIT %d", n)
}

func (BaseDialect) Explain(sql string) string {
	return "EXPLAIN " + sql
}

func (BaseDialect) DDLAddColumn(table, column, columnType string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s %s", table, column, columnType)
}

func (BaseDialect) DDLAddIndex(name, table, column string, unique, partial bool) string {
	u := ""
	if unique {
		u = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", u, name, table, column)
}

func (BaseDialect) DDLAddSequence(table string, startAt int64) string {
	return ""
}

func (BaseDialect) DDLAddTable(name, fieldBlock string) string {
	return fmt.Sprintf("CREATE TABLE %s (%s)", name, fieldBlock)
}

func (BaseDialect) DDLAddTableColumn(name, columnType string, nullable, primaryKey bool) string {
	null := "NOT NULL"
	if nullable {
		null = "NULL"
	}
	pk := ""
	if primaryKey {
		pk = " PRIMARY KEY"
	}
	return fmt.Sprintf("%s %s %s%s", name, columnType, null, pk)
}

func (BaseDialect) DDLAddView(name, sql string) string {
	return fmt.Sprintf("CREATE VIEW %s AS %s", name, sql)
}

func (BaseDialect) DDLDropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, column)
}

func (BaseDialect) DDLDropIndex(name, table string) string {
	return "DROP INDEX " + name
}

func (BaseDialect) DDLDropSequence(table string) string {
	return ""
}

func (BaseDialect) DDLDropView(name string) string {
	return "DROP VIEW IF EXISTS " + name
}

func (BaseDialect) DDLModifyColumn(table, column, newType, using string) string {
	return ""
}

// Escape makes a string safe for inlining in a statement. Apostrophes
// become backticks, which is how values have always been stored.
func (BaseDialect) Escape(s string) string {
	return strings.Replace(s, "'", "`", -1)
}

// SQLValue writes v as a SQL literal.
func (b BaseDialect) SQLValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.Replace(x, "'", "''", -1) + "'"
	case []byte:
		return "'" + strings.Replace(string(x), "'", "''", -1) + "'"
	case time.Time:
		return b.SQLDate(x, true, true)
	case *time.Time:
		if x == nil {
			return "null"
		}
		return b.SQLDate(*x, true, true)
	case decimal.Decimal:
		return x.String()
	case bool:
		if x {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(v)
}

func (BaseDialect) SQLDate(t time.Time, wrapQuotes, includeTime bool) string {
	s := t.Format("2006-01-02 15:04:05")
	if !includeTime {
		s = t.Format("2006-01-02")
	}
	if wrapQuotes {
		return "'" + s + "'"
	}
	return s
}

func (BaseDialect) SQLCast(expr, newType string) string {
	return fmt.Sprintf("CAST(%s AS %s)", expr, newType)
}

func (b BaseDialect) SQLCastChar(expr string) string {
	return b.SQLCast(expr, "TEXT")
}

func (BaseDialect) SQLCharLength(expr string) string {
	return fmt.Sprintf("LENGTH(%s)", expr)
}

func (BaseDialect) SQLConcat(items ...string) string {
	return strings.Join(items, " || ")
}

// SQLGreatest writes the largest of items, NULL if there are none.
func (BaseDialect) SQLGreatest(items ...string) string {
	if len(items) == 0 {
		return "NULL"
	}
	return fmt.Sprintf("GREATEST(%s)", strings.Join(items, ","))
}

// SQLILike writes a case insensitive LIKE. expr2 must be lower case if it
// is a literal.
func (BaseDialect) SQLILike(expr1, expr2 string) string {
	if expr2 == "" {
		expr2 = "?"
	}
	return fmt.Sprintf("LOWER(%s) LIKE %s", expr1, expr2)
}

// SQLRegexpReplace replaces characters of expr matching pattern. Pass "?"
// for pattern or replace to bind them as parameters.
func (b BaseDialect) SQLRegexpReplace(expr, pattern, replace string) string {
	pattern, replace = b.quoteArgs(pattern, replace, false)
	return fmt.Sprintf("REGEXP_REPLACE(%s, %s, %s)", expr, pattern, replace)
}

// SQLReplace replaces find in expr. Pass "?" for find or replace to bind
// them as parameters.
func (b BaseDialect) SQLReplace(expr, find, replace string) string {
	find, replace = b.quoteArgs(find, replace, true)
	return fmt.Sprintf("REPLACE(%s, %s, %s)", expr, find, replace)
}

func (BaseDialect) SQLSubstring(expr string, pos, chars int) string {
	return fmt.Sprintf("SUBSTR(%s, %d, %d)", expr, pos, chars)
}

func (BaseDialect) SQLZeroPadLeft(expr string, digits int) string {
	return expr
}

func (b BaseDialect) quoteArgs(first, second string, escapeFirst bool) (string, string) {
	if first != "?" {
		if escapeFirst {
			first = b.Escape(first)
		}
		first = "'" + first + "'"
	}
	if second != "?" {
		second = "'" + b.Escape(second) + "'"
	}
	return first, second
}
