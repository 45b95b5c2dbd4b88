// Package drivers opens database connections for asmdb.
package drivers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gopsql/db"
	"github.com/gopsql/gopg"
	"github.com/gopsql/pgx"
	"github.com/gopsql/pq"
	"github.com/gopsql/standard"
	"github.com/sheltermanager/asmdb"
	_ "modernc.org/sqlite"
)

var (
	ErrUnknownDriver = errors.New("unknown driver")
)

// Open opens a connection with the driver named in the config and returns
// it with the dialect for it. The timeout of the config is passed to the
// driver as its connect or busy timeout.
func Open(cfg asmdb.Config) (db.DB, asmdb.Dialect, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "pgx", "postgres", "postgresql":
		conn, err := pgx.Open(postgresDSN(cfg.DSN, cfg.Timeout))
		if err != nil {
			return nil, nil, fmt.Errorf("open pgx: %w", err)
		}
		return conn, asmdb.PostgreSQL{}, nil
	case "pq":
		conn, err := pq.Open(postgresDSN(cfg.DSN, cfg.Timeout))
		if err != nil {
			return nil, nil, fmt.Errorf("open pq: %w", err)
		}
		return conn, asmdb.PostgreSQL{}, nil
	case "gopg", "go-pg":
		conn, err := gopg.Open(postgresDSN(cfg.DSN, cfg.Timeout))
		if err != nil {
			return nil, nil, fmt.Errorf("open gopg: %w", err)
		}
		return conn, asmdb.PostgreSQL{}, nil
	case "sqlite", "sqlite3":
		c, err := sql.Open("sqlite", sqliteDSN(cfg.DSN, cfg.Timeout))
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return standard.NewDB("sqlite", c), asmdb.SQLite{}, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
}

// MustOpen is like Open but panics if open operation fails.
func MustOpen(cfg asmdb.Config) (db.DB, asmdb.Dialect) {
	conn, dialect, err := Open(cfg)
	if err != nil {
		panic(err)
	}
	return conn, dialect
}

// Connector returns an asmdb.Connector that opens a new connection with
// the config for each operation.
func Connector(cfg asmdb.Config) asmdb.ConnectorFunc {
	return func() (db.DB, error) {
		conn, _, err := Open(cfg)
		return conn, err
	}
}

// postgresDSN adds connect_timeout unless the DSN has one. Both URLs and
// key=value strings are accepted.
func postgresDSN(dsn string, timeout time.Duration) string {
	if timeout <= 0 || strings.Contains(dsn, "connect_timeout") {
		return dsn
	}
	secs := strconv.Itoa(int(timeout.Seconds()))
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		q.Set("connect_timeout", secs)
		u.RawQuery = q.Encode()
		return u.String()
	}
	if dsn == "" {
		return "connect_timeout=" + secs
	}
	return dsn + " connect_timeout=" + secs
}

// sqliteDSN adds a busy timeout pragma unless the DSN has one.
func sqliteDSN(dsn string, timeout time.Duration) string {
	if timeout <= 0 || strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", dsn, sep, timeout.Milliseconds())
}
