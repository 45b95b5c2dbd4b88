package asmdb

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type (
	// QueryCache stores query results for a while. It is not invalidated
	// by writes.
	QueryCache interface {
		Get(key string) ([]*Row, bool)
		Put(key string, rows []*Row, age time.Duration) error
	}

	// DiskCache is a QueryCache in a SQLite file, shared by every process
	// using the same file.
	DiskCache struct {
		db  *sql.DB
		now func() time.Time
	}

	cachedRow struct {
		Columns []string
		Values  []interface{}
	}
)

func init() {
	gob.Register(time.Time{})
	gob.Register(decimal.Decimal{})
}

// OpenDiskCache opens or creates the cache file at path.
func OpenDiskCache(path string) (*DiskCache, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open query cache: %w", err)
	}
	conn.SetMaxOpenConns(1)
	_, err = conn.Exec(`CREATE TABLE IF NOT EXISTS querycache (
		key TEXT PRIMARY KEY,
		expires INTEGER NOT NULL,
		value BLOB NOT NULL
	)`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &DiskCache{db: conn, now: time.Now}, nil
}

// Get returns the rows stored under key, false if there are none or they
// have expired.
func (c *DiskCache) Get(key string) ([]*Row, bool) {
	var value []byte
	var expires int64
	err := c.db.QueryRow("SELECT value, expires FROM querycache WHERE key = ?", hashKey(key)).Scan(&value, &expires)
	if err != nil || expires <= c.now().UnixNano() {
		return nil, false
	}
	var cached []cachedRow
	if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&cached); err != nil {
		return nil, false
	}
	rows := make([]*Row, len(cached))
	for i, r := range cached {
		rows[i] = NewRowColumns(r.Columns, r.Values)
	}
	return rows, true
}

// Put stores rows under key for age.
func (c *DiskCache) Put(key string, rows []*Row, age time.Duration) error {
	cached := make([]cachedRow, len(rows))
	for i, r := range rows {
		values := make([]interface{}, r.Len())
		for j := range values {
			values[j] = r.Index(j)
		}
		cached[i] = cachedRow{Columns: r.Columns(), Values: values}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cached); err != nil {
		return fmt.Errorf("encode query cache: %w", err)
	}
	_, err := c.db.Exec("INSERT OR REPLACE INTO querycache (key, expires, value) VALUES (?, ?, ?)",
		hashKey(key), c.now().Add(age).UnixNano(), buf.Bytes())
	return err
}

// Purge removes expired entries and returns how many were removed.
func (c *DiskCache) Purge() (int64, error) {
	result, err := c.db.Exec("DELETE FROM querycache WHERE expires <= ?", c.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (c *DiskCache) Close() error {
	return c.db.Close()
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
