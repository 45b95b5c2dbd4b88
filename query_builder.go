package asmdb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPlaceholderMismatch = errors.New("placeholder count does not match parameter count")
)

type (
	// QueryBuilder assembles a SELECT statement from parts while keeping
	// track of bound parameters. The Nth "?" in SQL() is the Nth value in
	// Params().
	//
	//	qb := dbo.QueryBuilder()
	//	qb.Select("animalname, sheltercode", "animal a").
	//		LeftJoin("adoption", "adoption.AnimalID = a.ID").
	//		Where("a.id", 5).
	//		Like("animalname", "bob").
	//		OrderBy("animalname")
	//	rows, err := qb.Query()
	QueryBuilder struct {
		database   *Database
		selectExpr string
		from       string
		joins      []string
		conditions []string
		values     []interface{}
		orderBy    string
	}
)

// NewQueryBuilder creates an empty query builder. The database is only
// needed by Query().
func NewQueryBuilder(database *Database) *QueryBuilder {
	return &QueryBuilder{database: database}
}

// QueryBuilder creates a query builder that runs its queries on this
// database.
func (d *Database) QueryBuilder() *QueryBuilder {
	return NewQueryBuilder(d)
}

// Select sets the select list and, if not empty, the FROM clause. The
// columns are wrapped with "SELECT " unless they already start with it.
func (q *QueryBuilder) Select(columns string, from string) *QueryBuilder {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(columns)), "select") {
		q.selectExpr = strings.TrimSpace(columns)
	} else {
		q.selectExpr = "SELECT " + columns
	}
	if from != "" {
		q.from = from
	}
	return q
}

// InnerJoin adds an INNER JOIN, joins appear in call order.
func (q *QueryBuilder) InnerJoin(table, condition string) *QueryBuilder {
	q.joins = append(q.joins, "INNER JOIN "+table+" ON "+condition)
	return q
}

// LeftJoin adds a LEFT OUTER JOIN, joins appear in call order.
func (q *QueryBuilder) LeftJoin(table, condition string) *QueryBuilder {
	q.joins = append(q.joins, "LEFT OUTER JOIN "+table+" ON "+condition)
	return q
}

// Where adds a condition joined with AND. With no argument the column is
// used as a clause by itself, otherwise "column = ?" is added and the first
// argument is bound to it.
//
//	qb.Where("archived = 0")         // WHERE archived = 0
//	qb.Where("speciesid", 1)         // WHERE speciesid = ?
func (q *QueryBuilder) Where(column string, args ...interface{}) *QueryBuilder {
	if len(args) == 0 {
		return q.addCondition("and", column)
	}
	return q.Condition(column, args[0], "and", "=")
}

// OrWhere is like Where but joins the condition with OR.
func (q *QueryBuilder) OrWhere(column string, args ...interface{}) *QueryBuilder {
	if len(args) == 0 {
		return q.addCondition("or", column)
	}
	return q.Condition(column, args[0], "or", "=")
}

// Condition adds "column operator ?" joined by connective ("and" or "or")
// and binds value.
func (q *QueryBuilder) Condition(column string, value interface{}, connective, operator string) *QueryBuilder {
	q.values = append(q.values, value)
	return q.addCondition(connective, fmt.Sprintf("%s %s ?", column, operator))
}

// Like adds a case insensitive containment match joined with AND.
func (q *QueryBuilder) Like(column, value string) *QueryBuilder {
	return q.Condition("LOWER("+column+")", "%"+strings.ToLower(value)+"%", "and", "LIKE")
}

// OrLike is like Like but joins the condition with OR.
func (q *QueryBuilder) OrLike(column, value string) *QueryBuilder {
	return q.Condition("LOWER("+column+")", "%"+strings.ToLower(value)+"%", "or", "LIKE")
}

// OrderBy sets the ORDER BY clause, the last call wins.
func (q *QueryBuilder) OrderBy(expression string) *QueryBuilder {
	q.orderBy = expression
	return q
}

func (q *QueryBuilder) addCondition(connective, condition string) *QueryBuilder {
	if len(q.conditions) > 0 {
		condition = strings.ToUpper(strings.TrimSpace(connective)) + " " + condition
	}
	q.conditions = append(q.conditions, condition)
	return q
}

// SQL returns the statement: select, from, joins, where and order by.
func (q *QueryBuilder) SQL() string {
	parts := []string{q.selectExpr}
	if q.from != "" {
		parts = append(parts, "FROM "+q.from)
	}
	parts = append(parts, q.joins...)
	if len(q.conditions) > 0 {
		parts = append(parts, "WHERE "+strings.Join(q.conditions, " "))
	}
	if q.orderBy != "" {
		parts = append(parts, "ORDER BY "+q.orderBy)
	}
	return strings.Join(parts, " ")
}

// Params returns the bound values in the order they were added.
func (q *QueryBuilder) Params() []interface{} {
	return append([]interface{}{}, q.values...)
}

// Validate checks that every placeholder has a value. Raw clauses given
// to Where must not contain "?" of their own.
func (q *QueryBuilder) Validate() error {
	if n := countPlaceholders(q.SQL()); n != len(q.values) {
		return fmt.Errorf("%w: %d placeholders, %d parameters", ErrPlaceholderMismatch, n, len(q.values))
	}
	return nil
}

func (q QueryBuilder) String() string {
	return q.SQL()
}

// Query validates the statement and runs it on the database of the
// builder.
func (q *QueryBuilder) Query() ([]*Row, error) {
	if q.database == nil {
		return nil, ErrNoConnection
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q.database.Query(q.SQL(), q.values...)
}

// MustQuery is like Query but panics if query operation fails.
func (q *QueryBuilder) MustQuery() []*Row {
	rows, err := q.Query()
	if err != nil {
		panic(err)
	}
	return rows
}
