package asmdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gopsql/db"
	"github.com/gopsql/standard"
	"golang.org/x/sync/errgroup"
)

var testNow = time.Date(2024, 3, 15, 13, 45, 30, 0, time.UTC)

var testSchema = []string{
	`CREATE TABLE animal (
		ID INTEGER PRIMARY KEY,
		AnimalName TEXT,
		Comments TEXT,
		DateOfBirth DATETIME,
		CreatedBy TEXT,
		CreatedDate DATETIME,
		LastChangedBy TEXT,
		LastChangedDate DATETIME,
		RecordVersion INTEGER
	)`,
	`CREATE TABLE audittrail (
		Action INTEGER,
		AuditDate DATETIME,
		UserName TEXT,
		TableName TEXT,
		LinkID INTEGER,
		Description TEXT
	)`,
	`CREATE TABLE deletion (
		ID INTEGER,
		TableName TEXT,
		DeletedBy TEXT,
		Date DATETIME,
		RestoreSQL TEXT
	)`,
	`CREATE TABLE primarykey (
		TableName TEXT,
		NextID INTEGER
	)`,
}

func openTestConn(t *testing.T, path string) db.DB {
	t.Helper()
	c, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return standard.NewDB("sqlite", c)
}

// newTestDatabase returns a database on a new SQLite file with the test
// schema and a clock stopped at testNow.
func newTestDatabase(t *testing.T, options ...interface{}) *Database {
	t.Helper()
	conn := openTestConn(t, filepath.Join(t.TempDir(), "asm.db"))
	opts := append([]interface{}{conn, SQLite{}, Clock(func() time.Time { return testNow })}, options...)
	d := New("asm", opts...)
	for _, s := range testSchema {
		if _, err := d.ExecuteDBUpdate(s); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func countRows(t *testing.T, d *Database, table string) int64 {
	t.Helper()
	n, err := d.QueryInt("SELECT COUNT(*) FROM " + table)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestInsertAndQueryRow(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t, TableAuditor{})

	id, err := d.Insert("animal", map[string]interface{}{
		"AnimalName": "O'Brien",
		"Comments":   "<b>hi</b>",
	}, "user")
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Errorf("Insert() = %d, want 1", id)
	}

	row, err := d.QueryRow("animal", id)
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("QueryRow() = nil")
	}
	tests := []struct {
		column string
		want   string
	}{
		{"animalname", "O'Brien"},
		{"COMMENTS", "&lt;b&gt;hi&lt;/b&gt;"},
		{"CreatedBy", "user"},
		{"LastChangedBy", "user"},
		{"RecordVersion", "134530"},
	}
	for _, tt := range tests {
		if got := row.Str(tt.column); got != tt.want {
			t.Errorf("row.Str(%q) = %q, want %q", tt.column, got, tt.want)
		}
	}

	raw, err := d.QueryTuple("SELECT AnimalName FROM animal WHERE ID = ?", id)
	if err != nil {
		t.Fatal(err)
	}
	if raw[0][0] != "O`Brien" {
		t.Errorf("stored AnimalName = %v, want O`Brien", raw[0][0])
	}

	id2, err := d.Insert("animal", map[string]interface{}{"AnimalName": "Rex"}, "user")
	if err != nil {
		t.Fatal(err)
	}
	if id2 != 2 {
		t.Errorf("second Insert() = %d, want 2", id2)
	}

	audits, err := d.Query("SELECT * FROM audittrail ORDER BY LinkID")
	if err != nil {
		t.Fatal(err)
	}
	if len(audits) != 2 {
		t.Fatalf("audit records = %d, want 2", len(audits))
	}
	if audits[0].Int("Action") != AuditAdd || audits[0].Int("LinkID") != 1 || audits[0].Str("TableName") != "animal" {
		t.Errorf("audit record = %s", audits[0])
	}
	if !strings.Contains(audits[0].Str("Description"), "ANIMALNAME=O'Brien") {
		t.Errorf("audit description = %q", audits[0].Str("Description"))
	}

	if row, err := d.QueryRow("animal", 99); err != nil || row != nil {
		t.Errorf("QueryRow(99) = %v, %v, want nil, nil", row, err)
	}
}

func TestInsertKeepIDAndNoUser(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t, TableAuditor{})

	id, err := d.Insert("animal", map[string]interface{}{"id": 40, "AnimalName": "Bob"}, "", WriteOptions{KeepID: true})
	if err != nil {
		t.Fatal(err)
	}
	if id != 40 {
		t.Errorf("Insert() = %d, want 40", id)
	}
	row, err := d.QueryRow("animal", 40)
	if err != nil || row == nil {
		t.Fatalf("QueryRow() = %v, %v", row, err)
	}
	if row.Value("CreatedBy") != nil || row.Value("RecordVersion") != nil {
		t.Errorf("row without user has stamps: %s", row)
	}
	if n := countRows(t, d, "audittrail"); n != 0 {
		t.Errorf("audit records = %d, want 0", n)
	}
}

func TestUpdateWithAudit(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t, TableAuditor{})

	id, err := d.Insert("animal", map[string]interface{}{"AnimalName": "Bob"}, "user")
	if err != nil {
		t.Fatal(err)
	}
	n, err := d.Update("animal", id, map[string]interface{}{"AnimalName": "Rob"}, "user")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Update() = %d, want 1", n)
	}
	if name, _ := d.QueryString("SELECT AnimalName FROM animal WHERE ID = ?", id); name != "Rob" {
		t.Errorf("AnimalName = %q, want Rob", name)
	}

	audits, err := d.Query("SELECT * FROM audittrail WHERE Action = ?", AuditEdit)
	if err != nil {
		t.Fatal(err)
	}
	if len(audits) != 1 {
		t.Fatalf("edit audit records = %d, want 1", len(audits))
	}
	if got, want := audits[0].Str("Description"), "ANIMALNAME changed from 'Bob' to 'Rob'"; got != want {
		t.Errorf("audit description = %q, want %q", got, want)
	}

	n, err = d.Update("animal", "AnimalName = 'Rob'", map[string]interface{}{"Comments": "x"}, "user")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Update() by clause = %d, want 1", n)
	}
	if got := countRows(t, d, "audittrail"); got != 2 {
		t.Errorf("audit records = %d, want 2", got)
	}
}

func TestDeleteWithAuditAndDeletion(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t, TableAuditor{})

	id, err := d.Insert("animal", map[string]interface{}{"AnimalName": "Bob"}, "user")
	if err != nil {
		t.Fatal(err)
	}
	n, err := d.Delete("animal", id, "user")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Delete() = %d, want 1", n)
	}
	if row, _ := d.QueryRow("animal", id); row != nil {
		t.Errorf("row still exists after Delete(): %s", row)
	}

	audits, err := d.Query("SELECT * FROM audittrail WHERE Action = ?", AuditDelete)
	if err != nil {
		t.Fatal(err)
	}
	if len(audits) != 1 || audits[0].Int("LinkID") != id || !strings.Contains(audits[0].Str("Description"), "ANIMALNAME=Bob") {
		t.Errorf("delete audit records = %v", audits)
	}

	deletions, err := d.Query("SELECT * FROM deletion")
	if err != nil {
		t.Fatal(err)
	}
	if len(deletions) != 1 {
		t.Fatalf("deletion records = %d, want 1", len(deletions))
	}
	del := deletions[0]
	if del.Int("ID") != id || del.Str("TableName") != "animal" || del.Str("DeletedBy") != "user" {
		t.Errorf("deletion record = %s", del)
	}
	restore := del.Str("RestoreSQL")
	if !strings.HasPrefix(restore, "INSERT INTO animal (ANIMALNAME,") {
		t.Fatalf("RestoreSQL = %q", restore)
	}

	if _, err := d.Execute(SplitQueries(restore)[0]); err != nil {
		t.Fatal(err)
	}
	row, err := d.QueryRow("animal", id)
	if err != nil || row == nil {
		t.Fatalf("restored row = %v, %v", row, err)
	}
	if row.Str("AnimalName") != "Bob" || row.Int("RecordVersion") != 134530 {
		t.Errorf("restored row = %s", row)
	}
}

func TestLockedWritesAreSkipped(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t, Config{Locked: true})
	if !d.Lock().Locked() {
		t.Fatal("Config.Locked did not lock the database")
	}

	n, err := d.Execute("INSERT INTO animal (ID, AnimalName) VALUES (?, ?)", 1, "Bob")
	if err != nil || n != 0 {
		t.Errorf("Execute() while locked = %d, %v, want 0, nil", n, err)
	}
	if _, err := d.Insert("animal", map[string]interface{}{"AnimalName": "Bob"}, "user"); err != nil {
		t.Errorf("Insert() while locked = %v", err)
	}
	if got := countRows(t, d, "animal"); got != 0 {
		t.Errorf("rows written while locked = %d", got)
	}

	if _, err := d.ExecuteDBUpdate("INSERT INTO animal (ID, AnimalName) VALUES (?, ?)", 10, "Bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Insert("animal", map[string]interface{}{"AnimalName": "Rex"}, "user", WriteOptions{OverrideLock: true}); err != nil {
		t.Fatal(err)
	}
	if got := countRows(t, d, "animal"); got != 2 {
		t.Errorf("rows = %d, want 2", got)
	}

	d.Lock().Unlock()
	if _, err := d.Execute("DELETE FROM animal"); err != nil {
		t.Fatal(err)
	}
	if got := countRows(t, d, "animal"); got != 0 {
		t.Errorf("rows after unlock and delete = %d, want 0", got)
	}
}

func TestConfigLockedWithLockOption(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		options []interface{}
	}{
		{"config first", []interface{}{Config{Locked: true}, &Lock{}}},
		{"lock first", []interface{}{&Lock{}, &Config{Locked: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDatabase(t, tt.options...)
			if !d.Lock().Locked() {
				t.Fatal("Config.Locked did not lock the installed lock")
			}
			n, err := d.Execute("INSERT INTO animal (ID, AnimalName) VALUES (?, ?)", 1, "Bob")
			if err != nil || n != 0 {
				t.Errorf("Execute() while locked = %d, %v, want 0, nil", n, err)
			}
			if got := countRows(t, d, "animal"); got != 0 {
				t.Errorf("rows written while locked = %d", got)
			}
		})
	}
}

func TestOptimisticCheck(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t)
	id, err := d.Insert("animal", map[string]interface{}{"AnimalName": "Bob"}, "user")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		version int64
		want    bool
	}{
		{"same version", 134530, true},
		{"other version", 134529, false},
		{"negative version", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.OptimisticCheck("animal", id, tt.version)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("OptimisticCheck(%d) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}

func TestGetIDConcurrent(t *testing.T) {
	t.Parallel()
	ids := NewIDCache()
	d := newTestDatabase(t, ids)
	seed := make([][]interface{}, 5)
	for i := range seed {
		seed[i] = []interface{}{i + 1, "Bob"}
	}
	if _, err := d.ExecuteMany("INSERT INTO animal (ID, AnimalName) VALUES (?, ?)", seed); err != nil {
		t.Fatal(err)
	}

	const n = 20
	got := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			id, err := d.GetID("animal")
			got[i] = id
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := make([]int64, n)
	for i := range want {
		want[i] = int64(6 + i)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetID() mismatch (-want +got):\n%s", diff)
	}

	other := New("asm", d.Connection(), SQLite{}, ids)
	if id, err := other.GetID("animal"); err != nil || id != 26 {
		t.Errorf("GetID() on database sharing the cache = %d, %v, want 26", id, err)
	}
}

func TestGetIDPrimaryKeyTable(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t, Config{HasASM2PKTable: true})
	for i := 0; i < 3; i++ {
		if _, err := d.GetID("animal"); err != nil {
			t.Fatal(err)
		}
	}
	rows, err := d.Query("SELECT * FROM primarykey")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Str("TableName") != "animal" || rows[0].Int("NextID") != 3 {
		t.Errorf("primarykey rows = %v", rows)
	}
}

func TestQueryCache(t *testing.T) {
	t.Parallel()
	cache, err := OpenDiskCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cache.Close() })
	now := testNow
	cache.now = func() time.Time { return now }
	d := newTestDatabase(t, cache, Config{CacheCommonQueries: true})

	insert := func(id int, name string) {
		t.Helper()
		if _, err := d.Execute("INSERT INTO animal (ID, AnimalName) VALUES (?, ?)", id, name); err != nil {
			t.Fatal(err)
		}
	}
	query := func() []*Row {
		t.Helper()
		rows, err := d.QueryCache("SELECT ID, AnimalName FROM animal ORDER BY ID", nil, time.Minute, QueryOptions{})
		if err != nil {
			t.Fatal(err)
		}
		return rows
	}

	insert(1, "O'Brien")
	if rows := query(); len(rows) != 1 || rows[0].Str("AnimalName") != "O'Brien" {
		t.Fatalf("QueryCache() = %v", rows)
	}
	insert(2, "Rex")
	if rows := query(); len(rows) != 1 {
		t.Errorf("QueryCache() before expiry = %d rows, want the cached 1", len(rows))
	}
	now = now.Add(time.Minute)
	if rows := query(); len(rows) != 2 {
		t.Errorf("QueryCache() after expiry = %d rows, want 2", len(rows))
	}

	uncached := New("asm", d.Connection(), SQLite{}, cache, Config{CacheCommonQueries: false})
	insert(3, "Max")
	rows, err := uncached.QueryCache("SELECT ID, AnimalName FROM animal ORDER BY ID", nil, time.Minute, QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("QueryCache() with caching off = %d rows, want 3", len(rows))
	}

	named, err := d.QueryNamedParams("SELECT AnimalName FROM animal WHERE ID = :id", map[string]interface{}{"id": 3}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(named) != 1 || named[0].Str("AnimalName") != "Max" {
		t.Errorf("QueryNamedParams() = %v", named)
	}
}

// gatedCache misses every Get and holds the first Put until every caller
// has missed.
type gatedCache struct {
	gets sync.WaitGroup
	mu   sync.Mutex
	puts int
}

func (c *gatedCache) Get(key string) ([]*Row, bool) {
	c.gets.Done()
	return nil, false
}

func (c *gatedCache) Put(key string, rows []*Row, age time.Duration) error {
	c.gets.Wait()
	time.Sleep(50 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	return nil
}

func TestQueryCacheConcurrentMisses(t *testing.T) {
	t.Parallel()
	const n = 10
	cache := &gatedCache{}
	cache.gets.Add(n)
	d := newTestDatabase(t, cache, Config{CacheCommonQueries: true})
	d.MustExecute("INSERT INTO animal (ID, AnimalName) VALUES (?, ?)", 1, "Bob")

	results := make([][]*Row, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			rows, err := d.QueryCache("SELECT ID, AnimalName FROM animal", nil, time.Minute, QueryOptions{})
			results[i] = rows
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if cache.puts != 1 {
		t.Errorf("query ran %d times, want 1", cache.puts)
	}
	for i, rows := range results {
		if len(rows) != 1 || rows[0].Str("ANIMALNAME") != "Bob" {
			t.Fatalf("results[%d] = %v", i, rows)
		}
	}
	if results[0][0] == results[1][0] {
		t.Errorf("callers share the same *Row")
	}
}

func TestQueryWithOptions(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t)
	_, err := d.ExecuteMany("INSERT INTO animal (ID, AnimalName) VALUES (?, ?)", [][]interface{}{
		{1, "Bob"}, {2, "Bob"}, {3, "Rex"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts QueryOptions
		want []int64
	}{
		{"no options", QueryOptions{}, []int64{1, 2, 3}},
		{"limit", QueryOptions{Limit: 2}, []int64{1, 2}},
		{"distinct", QueryOptions{DistinctOn: "animalname"}, []int64{1, 3}},
		{"distinct and limit", QueryOptions{DistinctOn: "ANIMALNAME", Limit: 2}, []int64{1}},
		{"distinct on missing column", QueryOptions{DistinctOn: "NOSUCHCOLUMN"}, []int64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := d.QueryWithOptions("SELECT * FROM animal ORDER BY ID", nil, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			got := []int64{}
			for _, r := range rows {
				got = append(got, r.Int("ID"))
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("QueryWithOptions() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryDistinctOnMixedTypes(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t)
	rows, err := d.QueryWithOptions("SELECT 1 AS V UNION ALL SELECT '1' UNION ALL SELECT 1", nil, QueryOptions{DistinctOn: "V"})
	if err != nil {
		t.Fatal(err)
	}
	got := []interface{}{}
	for _, r := range rows {
		got = append(got, r.Value("V"))
	}
	if diff := cmp.Diff([]interface{}{int64(1), "1"}, got); diff != "" {
		t.Errorf("QueryWithOptions() mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryGeneratorAndInsertSQL(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t)
	_, err := d.ExecuteMany("INSERT INTO animal (ID, AnimalName, Comments) VALUES (?, ?, ?)", [][]interface{}{
		{1, "Bob", "line one\nline two"}, {2, "O`Brien", nil},
	})
	if err != nil {
		t.Fatal(err)
	}

	it, err := d.QueryGenerator("SELECT ID, AnimalName FROM animal ORDER BY ID")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for it.Next() {
		names = append(names, it.Row().Str("animalname"))
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	it.Close()
	it.Close()
	if diff := cmp.Diff([]string{"Bob", "O'Brien"}, names); diff != "" {
		t.Errorf("QueryGenerator() mismatch (-want +got):\n%s", diff)
	}

	var statements []string
	err = d.QueryToInsertSQL("SELECT ID, AnimalName, Comments FROM animal ORDER BY ID", "animal", "\\n", func(s string) error {
		statements = append(statements, s)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"INSERT INTO animal (ANIMALNAME,COMMENTS,ID) VALUES ('Bob','line one\\nline two',1);\n",
		"INSERT INTO animal (ANIMALNAME,COMMENTS,ID) VALUES ('O''Brien',null,2);\n",
	}
	if diff := cmp.Diff(want, statements); diff != "" {
		t.Errorf("QueryToInsertSQL() mismatch (-want +got):\n%s", diff)
	}
}

func TestScalarQueries(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t)

	if n, err := d.QueryInt("SELECT ID FROM animal WHERE ID = 99"); err != nil || n != 0 {
		t.Errorf("QueryInt() on no rows = %d, %v", n, err)
	}
	if n, err := d.QueryInt("SELECT 'abc'"); err != nil || n != 0 {
		t.Errorf("QueryInt() on text = %d, %v", n, err)
	}
	if f, err := d.QueryFloat("SELECT '12.5'"); err != nil || f != 12.5 {
		t.Errorf("QueryFloat() = %v, %v", f, err)
	}
	if s, err := d.QueryString("SELECT 'it`s'"); err != nil || s != "it's" {
		t.Errorf("QueryString() = %q, %v", s, err)
	}
	if s, err := d.QueryString("SELECT NULL"); err != nil || s != "" {
		t.Errorf("QueryString() on null = %q, %v", s, err)
	}
	dt, err := d.QueryDate("SELECT '2024-01-02'")
	if err != nil || dt == nil || !dt.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("QueryDate() = %v, %v", dt, err)
	}
	if dt, err := d.QueryDate("SELECT ID FROM animal"); err != nil || dt != nil {
		t.Errorf("QueryDate() on no rows = %v, %v", dt, err)
	}
	if _, err := d.QueryInt("SELECT * FROM nosuchtable"); err == nil {
		t.Errorf("QueryInt() on a missing table succeeded")
	}
	cols, err := d.QueryColumns("SELECT ID, AnimalName FROM animal")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"ID", "ANIMALNAME"}, cols); diff != "" {
		t.Errorf("QueryColumns() mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryBuilderOnDatabase(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t)
	_, err := d.ExecuteMany("INSERT INTO animal (ID, AnimalName) VALUES (?, ?)", [][]interface{}{
		{1, "Bobby"}, {2, "Rex"}, {3, "BOBCAT"},
	})
	if err != nil {
		t.Fatal(err)
	}
	rows, err := d.QueryBuilder().Select("ID", "animal").Like("AnimalName", "Bob").Where("ID", 3).OrderBy("ID").Query()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Int("ID") != 3 {
		t.Errorf("Query() = %v", rows)
	}
}

func TestNamedParams(t *testing.T) {
	t.Parallel()
	params := map[string]interface{}{"id": 5, "name": "Bob", "ids": "1,2"}

	tests := []struct {
		name       string
		sql        string
		wantSQL    string
		wantParams []interface{}
	}{
		{"end of string", "SELECT * FROM animal WHERE ID = :id", "SELECT * FROM animal WHERE ID = ?", []interface{}{5}},
		{"space and comma", "SELECT :name, :id FROM animal", "SELECT ?, ? FROM animal", []interface{}{"Bob", 5}},
		{"parenthesis", "SELECT * FROM animal WHERE ID IN (:id)", "SELECT * FROM animal WHERE ID IN (?)", []interface{}{5}},
		{"repeated", "SELECT :id + :id", "SELECT ? + ?", []interface{}{5, 5}},
		{"cast", "SELECT ID::varchar FROM animal WHERE ID = :id", "SELECT ID::varchar FROM animal WHERE ID = ?", []interface{}{5}},
		{"quoted", "SELECT '12:30' WHERE ID = :id", "SELECT '12:30' WHERE ID = ?", []interface{}{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, values, err := NamedParams(tt.sql, params)
			if err != nil {
				t.Fatal(err)
			}
			if sql != tt.wantSQL {
				t.Errorf("NamedParams() = %q, want %q", sql, tt.wantSQL)
			}
			if diff := cmp.Diff(tt.wantParams, values); diff != "" {
				t.Errorf("NamedParams() values mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, _, err := NamedParams("SELECT :missing", params); !errors.Is(err, ErrMissingParameter) {
		t.Errorf("NamedParams() error = %v, want ErrMissingParameter", err)
	}
}

func TestSplitQueries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"single", "SELECT 1", []string{"SELECT 1"}},
		{"two", "DELETE FROM a; DELETE FROM b", []string{"DELETE FROM a", "DELETE FROM b"}},
		{"quoted semicolon", "INSERT INTO a VALUES ('x;y');SELECT 1", []string{"INSERT INTO a VALUES ('x;y')", "SELECT 1"}},
		{"trailing", "SELECT 1;\n", []string{"SELECT 1", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitQueries(tt.sql)); diff != "" {
				t.Errorf("SplitQueries() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecLog(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	d := newTestDatabase(t, Config{ExecLog: filepath.Join(dir, "{database}.log")})

	if _, err := d.Execute("INSERT INTO animal (ID, AnimalName) VALUES (?, ?)", 7, "it's"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "asm.log"))
	if err != nil {
		t.Fatal(err)
	}
	want := "-- 2024-03-15 13:45:30\nINSERT INTO animal (ID, AnimalName) VALUES (7, 'it''s');\n"
	if !strings.HasSuffix(string(data), want) {
		t.Errorf("exec log = %q, want suffix %q", data, want)
	}
}

func TestTransactionRollback(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t)
	errBlock := errors.New("block failed")

	err := d.Transaction(func(ctx context.Context, tx db.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO animal (ID) VALUES (?)", 1); err != nil {
			return err
		}
		return errBlock
	})
	if !errors.Is(err, errBlock) {
		t.Errorf("Transaction() = %v, want %v", err, errBlock)
	}

	err = d.Transaction(func(ctx context.Context, tx db.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO animal (ID) VALUES (?)", 2); err != nil {
			return err
		}
		panic(errBlock)
	})
	if !errors.Is(err, errBlock) {
		t.Errorf("Transaction() after panic = %v, want %v", err, errBlock)
	}
	if got := countRows(t, d, "animal"); got != 0 {
		t.Errorf("rows after rollback = %d, want 0", got)
	}

	d.MustTransaction(func(ctx context.Context, tx db.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO animal (ID) VALUES (?)", 3)
		return err
	})
	if got := countRows(t, d, "animal"); got != 1 {
		t.Errorf("rows after commit = %d, want 1", got)
	}
}

type errorLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *errorLogger) Debug(args ...interface{})   {}
func (l *errorLogger) Info(args ...interface{})    {}
func (l *errorLogger) Warning(args ...interface{}) {}
func (l *errorLogger) Fatal(args ...interface{})   {}

func (l *errorLogger) Error(args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprint(args...))
}

func TestExecuteErrorsAreLogged(t *testing.T) {
	t.Parallel()
	l := &errorLogger{}
	d := newTestDatabase(t, l)
	if _, err := d.Execute("INSERT INTO nosuchtable (ID) VALUES (?)", 1); err == nil {
		t.Fatal("Execute() into a missing table succeeded")
	}

	refused := errors.New("connection refused")
	offline := New("asm", SQLite{}, l, ConnectorFunc(func() (db.DB, error) {
		return nil, refused
	}))
	if _, err := offline.Execute("DELETE FROM animal WHERE ID = ?", 7); !errors.Is(err, refused) {
		t.Fatalf("Execute() = %v, want %v", err, refused)
	}

	if len(l.errors) != 2 {
		t.Fatalf("logged errors = %q, want 2", l.errors)
	}
	if !strings.Contains(l.errors[0], "INSERT INTO nosuchtable") {
		t.Errorf("statement error = %q", l.errors[0])
	}
	if want := "connection refused: DELETE FROM animal WHERE ID = ? [7]"; l.errors[1] != want {
		t.Errorf("connection error = %q, want %q", l.errors[1], want)
	}
}

func TestNoConnection(t *testing.T) {
	t.Parallel()
	d := New("asm")
	if _, err := d.Query("SELECT 1"); !errors.Is(err, ErrNoConnection) {
		t.Errorf("Query() = %v, want ErrNoConnection", err)
	}
	if _, err := d.Execute("DELETE FROM animal"); !errors.Is(err, ErrNoConnection) {
		t.Errorf("Execute() = %v, want ErrNoConnection", err)
	}
	if n, err := d.Execute("  "); err != nil || n != 0 {
		t.Errorf("Execute() of blank statement = %d, %v", n, err)
	}
	if d.HasStructure() {
		t.Errorf("HasStructure() = true without connection")
	}
}

func TestConnector(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "asm.db")
	var opened int32
	connector := ConnectorFunc(func() (db.DB, error) {
		atomic.AddInt32(&opened, 1)
		c, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { c.Close() })
		return standard.NewDB("sqlite", c), nil
	})
	d := New("asm", connector, SQLite{})

	if _, err := d.ExecuteDBUpdate("CREATE TABLE animal (ID INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Execute("INSERT INTO animal (ID) VALUES (?)", 1); err != nil {
		t.Fatal(err)
	}
	n, err := d.QueryInt("SELECT COUNT(*) FROM animal")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("QueryInt() = %d, want 1", n)
	}
	if !d.HasStructure() {
		t.Errorf("HasStructure() = false")
	}
	if got := atomic.LoadInt32(&opened); got != 4 {
		t.Errorf("connections opened = %d, want 4", got)
	}
}

func TestNowTimezone(t *testing.T) {
	t.Parallel()
	d := New("asm", Clock(func() time.Time { return testNow }), Config{Timezone: -5})

	if got := d.Now().Hour(); got != 8 {
		t.Errorf("Now().Hour() = %d, want 8", got)
	}
	if got := d.GetRecordVersion(); got != 84530 {
		t.Errorf("GetRecordVersion() = %d, want 84530", got)
	}
	if got, want := d.Today(1).Format("2006-01-02 15:04"), "2024-03-16 00:00"; got != want {
		t.Errorf("Today(1) = %q, want %q", got, want)
	}
	if got, want := d.SQLNow(true, false), "'2024-03-15'"; got != want {
		t.Errorf("SQLNow() = %q, want %q", got, want)
	}
	if got, want := d.SQLToday(false, true), "2024-03-15 00:00:00"; got != want {
		t.Errorf("SQLToday() = %q, want %q", got, want)
	}
}

func TestQueryExplain(t *testing.T) {
	t.Parallel()
	d := newTestDatabase(t)
	plan, err := d.QueryExplain("SELECT * FROM animal WHERE ID = ?", 1)
	if err != nil {
		t.Fatal(err)
	}
	if plan == "" {
		t.Errorf("QueryExplain() returned an empty plan")
	}
	if got := d.explainSQL("explain select 1"); got != "explain select 1" {
		t.Errorf("explainSQL() = %q", got)
	}
	if got := d.explainSQL("SELECT 1"); got != "EXPLAIN QUERY PLAN SELECT 1" {
		t.Errorf("explainSQL() = %q", got)
	}
}

func TestSQLHelpers(t *testing.T) {
	t.Parallel()
	d := New("asm", PostgreSQL{})

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"no placeholders", SQLPlaceholders(0), ""},
		{"three placeholders", SQLPlaceholders(3), "?,?,?"},
		{"atoi", d.SQLAtoi("Phone"), "REGEXP_REPLACE(Phone, '[^0123456789]', '', 'g')"},
		{"escape", d.Escape("it's"), "it`s"},
		{"insert sql", d.RowToInsertSQL("animal", NewRowColumns([]string{"NAME", "ID"}, []interface{}{"a\nb", 1}), ""), "INSERT INTO animal (ID,NAME) VALUES (1,'a\nb');\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
