package asmdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gopsql/db"
	"github.com/gopsql/logger"
	"golang.org/x/sync/singleflight"
)

type (
	// Database is the facade every caller goes through. It owns the
	// connection lifecycle, runs statements, encodes values on the way in
	// and out and keeps audit records of writes. Shared state (ID cache,
	// lock, query cache) is injected, see SetOptions().
	Database struct {
		name       string
		connection db.DB
		connector  Connector
		dialect    Dialect
		logger     logger.Logger
		ids        *IDCache
		lock       *Lock
		cache      QueryCache
		misses     *singleflight.Group
		auditor    Auditor
		config     Config
		clock      Clock
	}

	// Connector opens a new connection for a single operation. It is used
	// when the database has no shared connection.
	Connector interface {
		Connect() (db.DB, error)
	}

	// ConnectorFunc is a function that implements Connector.
	ConnectorFunc func() (db.DB, error)

	// Clock returns the current time.
	Clock func() time.Time
)

var (
	ErrNoConnection     = errors.New("no connection, use SetConnection or SetConnector to set one")
	ErrMissingParameter = errors.New("missing named parameter")
)

func (f ConnectorFunc) Connect() (db.DB, error) {
	return f()
}

// New creates a database facade named name, which is used in cache keys and
// the exec log path. For available options, see SetOptions().
func New(name string, options ...interface{}) *Database {
	d := &Database{
		name:    name,
		dialect: BaseDialect{},
		ids:     NewIDCache(),
		lock:    &Lock{},
		misses:  &singleflight.Group{},
		clock:   time.Now,
	}
	d.SetOptions(options...)
	return d
}

// SetOptions sets options of the database. Available options: db.DB,
// Connector, Dialect, logger.Logger, *IDCache, *Lock, QueryCache, Auditor,
// Config, Clock. Config.Locked locks the lock in use after all options are
// set, whatever their order.
//
//	dbo := asmdb.New("asm", conn, asmdb.PostgreSQL{}, logger.StandardLogger)
func (d *Database) SetOptions(options ...interface{}) *Database {
	var config *Config
	for _, option := range options {
		switch o := option.(type) {
		case db.DB:
			d.SetConnection(o)
		case Connector:
			d.connector = o
		case Dialect:
			d.dialect = o
		case logger.Logger:
			d.SetLogger(o)
		case *IDCache:
			d.ids = o
		case *Lock:
			d.lock = o
		case QueryCache:
			d.cache = o
		case Auditor:
			d.auditor = o
		case Config:
			config = &o
		case *Config:
			config = o
		case Clock:
			d.clock = o
		}
	}
	if config != nil {
		d.setConfig(*config)
	}
	return d
}

func (d *Database) setConfig(c Config) {
	d.config = c
	if d.name == "" {
		d.name = c.Name
	}
	if c.Locked {
		d.lock.Lock()
	}
}

// Name of the database.
func (d *Database) Name() string {
	return d.name
}

// Return the shared connection, nil if operations open their own.
func (d *Database) Connection() db.DB {
	return d.connection
}

// Set the shared connection used by every operation.
func (d *Database) SetConnection(conn db.DB) *Database {
	d.connection = conn
	return d
}

// Set the logger of the database. Use logger.StandardLogger if you want to
// use Go's built-in standard logging package. By default, no logger is used.
func (d *Database) SetLogger(logger logger.Logger) *Database {
	d.logger = logger
	return d
}

func (d *Database) Dialect() Dialect {
	return d.dialect
}

func (d *Database) Config() Config {
	return d.config
}

func (d *Database) Lock() *Lock {
	return d.lock
}

// Quiet returns a copy of the database without logger.
func (d *Database) Quiet() *Database {
	c := *d
	c.logger = nil
	return &c
}

// cursorOpen returns the shared connection or opens a new one. Fresh
// connections must be given back to cursorClose.
func (d *Database) cursorOpen() (conn db.DB, fresh bool, err error) {
	if d.connection != nil {
		return d.connection, false, nil
	}
	if d.connector == nil {
		return nil, false, ErrNoConnection
	}
	conn, err = d.connector.Connect()
	if err != nil {
		return nil, false, err
	}
	return conn, true, nil
}

func (d *Database) cursorClose(conn db.DB, fresh bool) {
	if fresh && conn != nil {
		conn.Close()
	}
}

// MustExecute is like Execute but panics if execute operation fails.
func (d *Database) MustExecute(sql string, params ...interface{}) int64 {
	n, err := d.Execute(sql, params...)
	if err != nil {
		panic(err)
	}
	return n
}

// Execute runs a write statement in a transaction and returns number of
// rows affected. Blank statements and statements run while the database is
// locked do nothing.
func (d *Database) Execute(sql string, params ...interface{}) (int64, error) {
	return d.execute(context.Background(), sql, [][]interface{}{params}, false)
}

// ExecuteCtx is like Execute but uses the context for the transaction.
func (d *Database) ExecuteCtx(ctx context.Context, sql string, params ...interface{}) (int64, error) {
	return d.execute(ctx, sql, [][]interface{}{params}, false)
}

// ExecuteDBUpdate is like Execute but runs even while the database is
// locked. Use it for schema updates and maintenance.
func (d *Database) ExecuteDBUpdate(sql string, params ...interface{}) (int64, error) {
	return d.execute(context.Background(), sql, [][]interface{}{params}, true)
}

// ExecuteMany runs the statement once for each set of parameters, all in
// one transaction, and returns the total number of rows affected.
func (d *Database) ExecuteMany(sql string, paramSets [][]interface{}) (int64, error) {
	if len(paramSets) == 0 {
		return 0, nil
	}
	return d.execute(context.Background(), sql, paramSets, false)
}

func (d *Database) execute(ctx context.Context, sql string, paramSets [][]interface{}, override bool) (int64, error) {
	if strings.TrimSpace(sql) == "" {
		return 0, nil
	}
	if d.lock.Locked() && !override {
		d.log("database locked, skipped: "+sql, nil)
		return 0, nil
	}
	var affected int64
	logged := false
	err := d.TransactionCtx(ctx, func(ctx context.Context, tx db.Tx) error {
		for _, params := range paramSets {
			q := d.switchParams(sql, params)
			d.log(q, params)
			result, err := tx.ExecContext(ctx, q, params...)
			if err != nil {
				d.logError(err, q, params)
				logged = true
				return err
			}
			if n, err := result.RowsAffected(); err == nil {
				affected += n
			}
		}
		return nil
	})
	if err != nil {
		if !logged {
			d.logError(err, sql, paramSets[0])
		}
		return 0, fmt.Errorf("execute: %w", err)
	}
	for _, params := range paramSets {
		d.writeExecLog(sql, params)
	}
	return affected, nil
}

// switchParams changes "?" into the placeholder of the dialect. Statements
// without parameters are left alone so literal question marks survive.
func (d *Database) switchParams(sql string, params []interface{}) string {
	if len(params) == 0 {
		return sql
	}
	return d.dialect.SwitchParamPlaceholder(sql)
}

// writeExecLog appends the statement with its parameters inlined to the
// exec log, if one is configured. Failures are only logged.
func (d *Database) writeExecLog(sql string, params []interface{}) {
	if d.config.ExecLog == "" {
		return
	}
	path := strings.Replace(d.config.ExecLog, "{database}", d.name, -1)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		d.log("exec log: "+err.Error(), nil)
		return
	}
	defer f.Close()
	entry := fmt.Sprintf("-- %s\n%s;\n", d.dialect.SQLDate(d.Now(), false, true), d.inlineParams(sql, params))
	if _, err := f.WriteString(entry); err != nil {
		d.log("exec log: "+err.Error(), nil)
	}
}

// inlineParams replaces each "?" outside string literals with the next
// parameter written as a literal.
func (d *Database) inlineParams(sql string, params []interface{}) string {
	if len(params) == 0 {
		return sql
	}
	var b strings.Builder
	n := 0
	inString := false
	for _, r := range sql {
		switch {
		case r == '\'':
			inString = !inString
		case r == '?' && !inString && n < len(params):
			b.WriteString(d.dialect.SQLValue(params[n]))
			n++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Database) log(sql string, args []interface{}) {
	if d.logger == nil {
		return
	}
	if len(args) == 0 {
		d.logger.Debug(sql)
		return
	}
	d.logger.Debug(sql, args)
}

func (d *Database) logError(err error, sql string, args []interface{}) {
	if d.logger == nil {
		return
	}
	d.logger.Error(fmt.Sprintf("%s: %s %v", err, sql, args))
}

// Now returns the current time in the timezone of the database.
func (d *Database) Now() time.Time {
	t := d.clock()
	if d.config.Timezone != 0 {
		t = t.In(time.FixedZone("", int(d.config.Timezone*3600)))
	}
	return t
}

// Today returns midnight of today plus offset days.
func (d *Database) Today(offset int) time.Time {
	t := d.Now()
	return time.Date(t.Year(), t.Month(), t.Day()+offset, 0, 0, 0, 0, t.Location())
}

// HasStructure reports whether the database has been populated.
func (d *Database) HasStructure() bool {
	_, err := d.QueryTuple("SELECT COUNT(*) FROM animal")
	return err == nil
}

// FirstRow returns the first of rows, nil if there are none.
func FirstRow(rows []*Row) *Row {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// SplitQueries splits statements separated by semicolons. Semicolons in
// string literals do not split.
func SplitQueries(sql string) []string {
	var out []string
	inString := false
	start := 0
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				out = append(out, strings.TrimSpace(sql[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(sql[start:]))
}
