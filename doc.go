// Package asmdb is the database layer of an animal shelter management
// system.
//
// # Overview
//
// Package asmdb wraps a connection from github.com/gopsql/db with the
// operations the rest of the system needs: raw and builder queries, inserts,
// updates and deletes with audit records, ID generation for tables without
// identity columns, and optimistic locking.
//
// Key features include:
//   - Rows with case insensitive column access
//   - A query builder that keeps placeholders and parameters in step
//   - Per-engine SQL through the Dialect interface
//   - ID generation from a shared in-process cache
//   - Query results cached on disk for a while
//   - A lock that turns every write into a no-op
//
// # Basic Usage
//
//	conn := pgx.MustOpen(connStr)
//	dbo := asmdb.New("asm", conn, asmdb.PostgreSQL{}, asmdb.TableAuditor{})
//
//	// Insert a record, the ID comes from the ID cache
//	id, err := dbo.Insert("animal", map[string]interface{}{
//		"AnimalName": "Bob",
//	}, "user")
//
//	// Find records
//	rows, err := dbo.Query("SELECT * FROM animal WHERE ID = ?", id)
//	fmt.Println(rows[0].Str("animalname"))
//
//	// Update a record by ID
//	dbo.Update("animal", id, map[string]interface{}{"AnimalName": "Rob"}, "user")
//
//	// Delete a record
//	dbo.Delete("animal", id, "user")
//
// Placeholders are always written as "?". The dialect turns them into what
// the driver expects, for example "$1" for PostgreSQL.
//
// # Stored Text
//
// Text is stored with apostrophes as backticks and backticks as "&bt;".
// Writes also escape angle brackets unless the column name has an asterisk:
//
//	dbo.Insert("media", map[string]interface{}{
//		"MediaNotes":    "<b>escaped</b>",
//		"MediaContent*": "<b>not escaped</b>",
//	}, "user")
//
// Query decodes text values, QueryTuple does not.
//
// # Query Builder
//
//	rows, err := dbo.QueryBuilder().
//		Select("a.ID, a.AnimalName", "animal a").
//		LeftJoin("adoption m", "m.AnimalID = a.ID").
//		Where("a.Archived", 0).
//		Like("a.AnimalName", "bob").
//		OrderBy("a.AnimalName").
//		Query()
//
// # Shared State
//
// The ID cache, the lock and the query cache are passed to New. Share them
// between every Database of a process:
//
//	ids := asmdb.NewIDCache()
//	lock := &asmdb.Lock{}
//	cache, _ := asmdb.OpenDiskCache("/var/cache/asm/query.db")
//	dbo := asmdb.New("asm", conn, ids, lock, cache)
//
// # Transactions
//
// Every write runs in its own transaction. Run several statements in one
// transaction with Transaction:
//
//	dbo.MustTransaction(func(ctx context.Context, tx db.Tx) error {
//		_, err := tx.ExecContext(ctx, "DELETE FROM animal WHERE ID = $1", 1)
//		return err // nil to commit, error to rollback
//	})
//
// # Database Drivers
//
// Package drivers opens a connection and picks the dialect from Config:
//   - github.com/jackc/pgx via github.com/gopsql/pgx
//   - github.com/lib/pq via github.com/gopsql/pq
//   - github.com/go-pg/pg via github.com/gopsql/gopg
//   - modernc.org/sqlite via github.com/gopsql/standard
package asmdb
