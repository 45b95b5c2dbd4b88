package asmdb

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gopsql/db"
)

type (
	// QueryOptions changes how Query collects rows.
	QueryOptions struct {
		// Limit appends the limit clause of the dialect if greater than 0.
		Limit int
		// DistinctOn skips rows whose value of this column has been seen
		// before. The first row wins.
		DistinctOn string
	}

	// RowIterator streams rows of a query without loading them all, for
	// example:
	//
	//	it, err := dbo.QueryGenerator("SELECT * FROM animal")
	//	if err != nil {
	//		return err
	//	}
	//	defer it.Close()
	//	for it.Next() {
	//		fmt.Println(it.Row().Str("ANIMALNAME"))
	//	}
	//	return it.Err()
	RowIterator struct {
		database *Database
		conn     db.DB
		fresh    bool
		rows     db.Rows
		columns  []string
		row      *Row
		err      error
		closed   bool
	}
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// MustQuery is like Query but panics if query operation fails.
func (d *Database) MustQuery(sql string, params ...interface{}) []*Row {
	rows, err := d.Query(sql, params...)
	if err != nil {
		panic(err)
	}
	return rows
}

// Query runs a statement and returns its rows. Column names are uppercased
// and text values are decoded with EncodeStrAfterRead.
func (d *Database) Query(sql string, params ...interface{}) ([]*Row, error) {
	return d.QueryWithOptions(sql, params, QueryOptions{})
}

// QueryWithOptions is like Query with a limit and distinct column.
func (d *Database) QueryWithOptions(sql string, params []interface{}, opts QueryOptions) ([]*Row, error) {
	if opts.Limit > 0 {
		sql = sql + " " + d.dialect.Limit(opts.Limit)
	}
	var out []*Row
	err := d.queryRows(sql, params, func(columns []string, rows db.Rows) error {
		seen := map[string]bool{}
		for rows.Next() {
			values, err := scanValues(rows, len(columns))
			if err != nil {
				return err
			}
			row := d.decodeRow(columns, values)
			if opts.DistinctOn != "" && row.Has(opts.DistinctOn) {
				v := row.Value(opts.DistinctOn)
				key := fmt.Sprintf("%T:%v", v, v)
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryCache is like QueryWithOptions but keeps the result in the query
// cache for age. Concurrent misses of the same query run it once. Without
// a cache or with CacheCommonQueries off it runs the query every time.
func (d *Database) QueryCache(sql string, params []interface{}, age time.Duration, opts QueryOptions) ([]*Row, error) {
	if d.cache == nil || !d.config.CacheCommonQueries {
		return d.QueryWithOptions(sql, params, opts)
	}
	key := fmt.Sprintf("%s:%s:%v", d.name, sql, params)
	if opts.Limit > 0 || opts.DistinctOn != "" {
		key += fmt.Sprintf(":%d:%s", opts.Limit, opts.DistinctOn)
	}
	if rows, ok := d.cache.Get(key); ok {
		d.log("cache hit: "+sql, params)
		return rows, nil
	}
	v, err, shared := d.misses.Do(key, func() (interface{}, error) {
		rows, err := d.QueryWithOptions(sql, params, opts)
		if err != nil {
			return nil, err
		}
		if err := d.cache.Put(key, rows, age); err != nil {
			d.log("cache put: "+err.Error(), nil)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	rows := v.([]*Row)
	if shared {
		out := make([]*Row, len(rows))
		for i, r := range rows {
			out[i] = r.Copy()
		}
		return out, nil
	}
	return rows, nil
}

// QueryGenerator runs a statement and returns an iterator over its rows.
// The iterator must be closed.
func (d *Database) QueryGenerator(sql string, params ...interface{}) (*RowIterator, error) {
	conn, fresh, err := d.cursorOpen()
	if err != nil {
		return nil, err
	}
	q := d.switchParams(sql, params)
	d.log(q, params)
	rows, err := conn.Query(q, params...)
	if err != nil {
		d.logError(err, q, params)
		d.cursorClose(conn, fresh)
		return nil, fmt.Errorf("query: %w", err)
	}
	columns, err := upperColumns(rows)
	if err != nil {
		rows.Close()
		d.cursorClose(conn, fresh)
		return nil, fmt.Errorf("query: %w", err)
	}
	return &RowIterator{
		database: d,
		conn:     conn,
		fresh:    fresh,
		rows:     rows,
		columns:  columns,
	}, nil
}

// Next moves to the next row, false when there are no more rows or an
// error occurred.
func (it *RowIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	values, err := scanValues(it.rows, len(it.columns))
	if err != nil {
		it.err = err
		return false
	}
	it.row = it.database.decodeRow(it.columns, values)
	return true
}

// Row returns the current row.
func (it *RowIterator) Row() *Row {
	return it.row
}

func (it *RowIterator) Err() error {
	return it.err
}

// Close releases the rows and the connection, if it was opened for this
// query. It is safe to call Close more than once.
func (it *RowIterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.rows.Close()
	it.database.cursorClose(it.conn, it.fresh)
}

// QueryTuple returns raw rows as slices of values. Values are not decoded.
func (d *Database) QueryTuple(sql string, params ...interface{}) ([][]interface{}, error) {
	out, _, err := d.QueryTupleColumns(sql, params...)
	return out, err
}

// QueryTupleColumns is like QueryTuple and also returns the column names.
func (d *Database) QueryTupleColumns(sql string, params ...interface{}) ([][]interface{}, []string, error) {
	var out [][]interface{}
	var cols []string
	err := d.queryRows(sql, params, func(columns []string, rows db.Rows) error {
		cols = columns
		for rows.Next() {
			values, err := scanValues(rows, len(columns))
			if err != nil {
				return err
			}
			out = append(out, values)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}
	return out, cols, nil
}

// QueryColumns returns the uppercased column names of a statement.
func (d *Database) QueryColumns(sql string, params ...interface{}) ([]string, error) {
	_, cols, err := d.QueryTupleColumns(sql, params...)
	return cols, err
}

func (d *Database) firstValue(sql string, params []interface{}) (interface{}, error) {
	rows, err := d.QueryTuple(sql, params...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, nil
	}
	return rows[0][0], nil
}

// QueryInt returns the first column of the first row as an integer. It is
// 0 if there are no rows or the value is not a number.
func (d *Database) QueryInt(sql string, params ...interface{}) (int64, error) {
	v, err := d.firstValue(sql, params)
	if err != nil {
		return 0, err
	}
	i, _ := toInt(v)
	return i, nil
}

// QueryFloat returns the first column of the first row as a float. It is 0
// if there are no rows or the value is not a number.
func (d *Database) QueryFloat(sql string, params ...interface{}) (float64, error) {
	v, err := d.firstValue(sql, params)
	if err != nil {
		return 0, err
	}
	f, _ := toFloat(v)
	return f, nil
}

// QueryString returns the first column of the first row as a decoded
// string. It is "" if there are no rows or the value is null.
func (d *Database) QueryString(sql string, params ...interface{}) (string, error) {
	v, err := d.firstValue(sql, params)
	if err != nil || v == nil {
		return "", err
	}
	return EncodeStrAfterRead(fmt.Sprint(v)), nil
}

// QueryDate returns the first column of the first row as a time. It is nil
// if there are no rows or the value is not a date.
func (d *Database) QueryDate(sql string, params ...interface{}) (*time.Time, error) {
	v, err := d.firstValue(sql, params)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case time.Time:
		return &x, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return &t, nil
			}
		}
	}
	return nil, nil
}

// QueryNamedParams runs a statement with :name parameters taken from
// params. A name ends at a space, comma or right parenthesis. If age is not
// zero, the result is cached for age.
//
//	dbo.QueryNamedParams("SELECT * FROM animal WHERE ID = :id", map[string]interface{}{"id": 5}, 0)
func (d *Database) QueryNamedParams(sql string, params map[string]interface{}, age time.Duration) ([]*Row, error) {
	q, values, err := NamedParams(sql, params)
	if err != nil {
		return nil, err
	}
	if age == 0 {
		return d.Query(q, values...)
	}
	return d.QueryCache(q, values, age, QueryOptions{})
}

// NamedParams rewrites :name parameters into "?" and returns the values in
// placeholder order. Colons in string literals and "::" casts are left
// alone.
func NamedParams(sql string, params map[string]interface{}) (string, []interface{}, error) {
	var b strings.Builder
	values := []interface{}{}
	inString := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c == '\'' {
			inString = !inString
		}
		if c != ':' || inString {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(sql) && sql[i+1] == ':' {
			b.WriteString("::")
			i++
			continue
		}
		end := strings.IndexAny(sql[i+1:], " ,)")
		if end < 0 {
			end = len(sql)
		} else {
			end += i + 1
		}
		name := sql[i+1 : end]
		v, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrMissingParameter, name)
		}
		values = append(values, v)
		b.WriteByte('?')
		i = end - 1
	}
	return b.String(), values, nil
}

// QueryRow returns the row of table with the ID, nil if there is none.
func (d *Database) QueryRow(table string, id int64) (*Row, error) {
	rows, err := d.Query(fmt.Sprintf("SELECT * FROM %s WHERE ID = %d", table, id))
	if err != nil {
		return nil, err
	}
	return FirstRow(rows), nil
}

// QueryExplain returns the query plan of a statement, one line per row.
func (d *Database) QueryExplain(sql string, params ...interface{}) (string, error) {
	rows, err := d.QueryTuple(d.explainSQL(sql), params...)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		parts := make([]string, 0, len(r))
		for _, v := range r {
			parts = append(parts, fmt.Sprint(v))
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Database) explainSQL(sql string) string {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "EXPLAIN") {
		return sql
	}
	return d.dialect.Explain(sql)
}

// QueryToInsertSQL streams one INSERT statement per row of the query into
// emit. Line feeds in text values are replaced with escapeCR if it is not
// empty.
func (d *Database) QueryToInsertSQL(sql, table, escapeCR string, emit func(string) error) error {
	it, err := d.QueryGenerator(sql)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		if err := emit(d.RowToInsertSQL(table, it.Row(), escapeCR)); err != nil {
			return err
		}
	}
	return it.Err()
}

// RowToInsertSQL writes an INSERT statement for the row with columns in
// sorted order.
func (d *Database) RowToInsertSQL(table string, row *Row, escapeCR string) string {
	columns := row.Columns()
	sort.Strings(columns)
	values := make([]string, 0, len(columns))
	for _, c := range columns {
		v := row.Value(c)
		if s, ok := v.(string); ok && escapeCR != "" {
			v = strings.Replace(s, "\n", escapeCR, -1)
		}
		values = append(values, d.dialect.SQLValue(v))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);\n", table, strings.Join(columns, ","), strings.Join(values, ","))
}

// queryRows runs a read statement on a connection from cursorOpen and
// passes its rows to collect. Explain and timing diagnostics happen here.
func (d *Database) queryRows(sql string, params []interface{}, collect func([]string, db.Rows) error) error {
	conn, fresh, err := d.cursorOpen()
	if err != nil {
		return err
	}
	defer d.cursorClose(conn, fresh)
	q := d.switchParams(sql, params)
	if d.config.ExplainQueries {
		d.logExplain(conn, q, params)
	}
	d.log(q, params)
	start := time.Now()
	rows, err := conn.Query(q, params...)
	if err != nil {
		d.logError(err, q, params)
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	columns, err := upperColumns(rows)
	if err == nil {
		err = collect(columns, rows)
	}
	if err != nil {
		d.logError(err, q, params)
		return fmt.Errorf("query: %w", err)
	}
	if d.config.TimeQueries {
		if elapsed := time.Since(start); elapsed > d.config.TimeLogOver {
			d.log(fmt.Sprintf("(%s) %s", elapsed, q), params)
		}
	}
	return nil
}

func (d *Database) logExplain(conn db.DB, sql string, params []interface{}) {
	if d.logger == nil || !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT") {
		return
	}
	rows, err := conn.Query(d.dialect.Explain(sql), params...)
	if err != nil {
		return
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return
	}
	var plan []string
	for rows.Next() {
		values, err := scanValues(rows, len(columns))
		if err != nil {
			return
		}
		plan = append(plan, fmt.Sprint(values...))
	}
	d.logger.Debug("EXPLAIN " + sql + "\n" + strings.Join(plan, "\n"))
}

func (d *Database) decodeRow(columns []string, values []interface{}) *Row {
	for i, v := range values {
		if s, ok := v.(string); ok {
			values[i] = EncodeStrAfterRead(s)
		}
	}
	return NewRowColumns(columns, values)
}

func upperColumns(rows db.Rows) ([]string, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	for i := range columns {
		columns[i] = strings.ToUpper(columns[i])
	}
	return columns, nil
}

func scanValues(rows db.Rows, n int) ([]interface{}, error) {
	values := make([]interface{}, n)
	dest := make([]interface{}, n)
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	for i := range values {
		values[i] = normalizeValue(values[i])
	}
	return values, nil
}
