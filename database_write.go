package asmdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const idCacheTTL = 86400 * time.Second

type (
	// WriteOptions changes what Insert, Update and Delete do besides the
	// statement itself. The zero value stamps, versions, generates IDs and
	// audits.
	WriteOptions struct {
		// KeepID uses the ID in values instead of generating one.
		KeepID bool
		// OverrideLock writes even while the database is locked.
		OverrideLock bool
		// NoRecordVersion skips the RecordVersion stamp.
		NoRecordVersion bool
		// NoStamps skips CreatedBy, CreatedDate, LastChangedBy and
		// LastChangedDate.
		NoStamps bool
		// NoAudit skips the audit trail record.
		NoAudit bool
		// NoDeletion skips the deletion record when deleting.
		NoDeletion bool
	}
)

func writeOptions(opts []WriteOptions) WriteOptions {
	if len(opts) > 0 {
		return opts[0]
	}
	return WriteOptions{}
}

// Insert inserts values into table and returns the ID of the new row. If
// user is not empty, created and changed stamps and RecordVersion are set
// and an audit record is written.
//
//	id, err := dbo.Insert("animal", map[string]interface{}{
//		"AnimalName": "Bob",
//		"Comments*":  "<b>not escaped</b>",
//	}, "user")
func (d *Database) Insert(table string, values map[string]interface{}, user string, opts ...WriteOptions) (int64, error) {
	o := writeOptions(opts)
	values = copyValues(values)
	if user != "" && !o.NoStamps {
		now := d.Now()
		setValue(values, "CreatedBy", user)
		setValue(values, "LastChangedBy", user)
		setValue(values, "CreatedDate", now)
		setValue(values, "LastChangedDate", now)
		if !o.NoRecordVersion {
			setValue(values, "RecordVersion", d.GetRecordVersion())
		}
	}
	var id int64
	if !o.KeepID {
		var err error
		if id, err = d.GetID(table); err != nil {
			return 0, err
		}
		setValue(values, "ID", id)
	} else if k, ok := findKey(values, "ID"); ok {
		id, _ = toInt(values[k])
	}
	values = EncodeStrBeforeWrite(values)
	columns := sortedKeys(values)
	params := make([]interface{}, len(columns))
	for i, c := range columns {
		params[i] = values[c]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ","), SQLPlaceholders(len(columns)))
	if _, err := d.execute(context.Background(), sql, [][]interface{}{params}, o.OverrideLock); err != nil {
		return 0, err
	}
	if d.auditor != nil && !o.NoAudit && id != 0 && user != "" {
		row, err := d.QueryRow(table, id)
		if err != nil {
			return id, err
		}
		if err := d.auditor.Create(d, user, table, id, DumpRow(row)); err != nil {
			return id, err
		}
	}
	return id, nil
}

// Update updates rows of table matching where, which is either a where
// clause or an ID. Returns number of rows affected. When updating by ID
// with a user, the audit record describes the changed columns.
func (d *Database) Update(table string, where interface{}, values map[string]interface{}, user string, opts ...WriteOptions) (int64, error) {
	o := writeOptions(opts)
	values = copyValues(values)
	if user != "" && !o.NoStamps {
		setValue(values, "LastChangedBy", user)
		setValue(values, "LastChangedDate", d.Now())
		if !o.NoRecordVersion {
			setValue(values, "RecordVersion", d.GetRecordVersion())
		}
	}
	values = EncodeStrBeforeWrite(values)
	clause, id := whereClause(where)
	columns := sortedKeys(values)
	sets := make([]string, len(columns))
	params := make([]interface{}, len(columns))
	for i, c := range columns {
		sets[i] = c + "=?"
		params[i] = values[c]
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ","), clause)
	var before *Row
	var err error
	if id > 0 {
		if before, err = d.QueryRow(table, id); err != nil {
			return 0, err
		}
	}
	affected, err := d.execute(context.Background(), sql, [][]interface{}{params}, o.OverrideLock)
	if err != nil {
		return 0, err
	}
	if d.auditor != nil && !o.NoAudit && id > 0 && user != "" {
		after, err := d.QueryRow(table, id)
		if err != nil {
			return affected, err
		}
		if err := d.auditor.Edit(d, user, table, id, MapDiff(before, after)); err != nil {
			return affected, err
		}
	}
	return affected, nil
}

// Delete deletes rows of table matching where, which is either a where
// clause or an ID. Audit and deletion records are written first if user is
// not empty. Returns number of rows affected.
func (d *Database) Delete(table string, where interface{}, user string, opts ...WriteOptions) (int64, error) {
	o := writeOptions(opts)
	clause, _ := whereClause(where)
	if d.auditor != nil && user != "" {
		if !o.NoAudit {
			if err := d.auditor.Delete(d, user, table, clause); err != nil {
				return 0, err
			}
		}
		if !o.NoDeletion {
			if err := d.auditor.Deletion(d, user, table, clause); err != nil {
				return 0, err
			}
		}
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", table, clause)
	return d.execute(context.Background(), sql, [][]interface{}{nil}, o.OverrideLock)
}

// OptimisticCheck reports whether the row with the ID still has the record
// version. A negative version always passes. Callers must treat false as a
// conflict and not retry.
func (d *Database) OptimisticCheck(table string, id int64, version int64) (bool, error) {
	if version < 0 {
		return true, nil
	}
	stored, err := d.QueryInt(fmt.Sprintf("SELECT RecordVersion FROM %s WHERE ID = %d", table, id))
	if err != nil {
		return false, err
	}
	return stored == version, nil
}

// GetRecordVersion returns the current time of day as hhmmss.
func (d *Database) GetRecordVersion() int64 {
	t := d.Now()
	return int64(t.Hour()*10000 + t.Minute()*100 + t.Second())
}

// GetID returns the next ID for table from the ID cache. On a miss the
// cache is seeded with GetIDMax for a day. Concurrent callers never get the
// same ID.
func (d *Database) GetID(table string) (int64, error) {
	key := fmt.Sprintf("%s_pk_%s", d.name, table)
	id, err := d.ids.Next(key, idCacheTTL, func() (int64, error) {
		return d.GetIDMax(table)
	})
	if err != nil {
		return 0, fmt.Errorf("get id for %s: %w", table, err)
	}
	d.updateASM2PrimaryKey(table, id)
	d.log(fmt.Sprintf("get_id: %s -> %d", table, id), nil)
	return id, nil
}

// GetIDMax returns MAX(ID)+1 of table.
func (d *Database) GetIDMax(table string) (int64, error) {
	n, err := d.QueryInt(fmt.Sprintf("SELECT MAX(ID) FROM %s", table))
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// updateASM2PrimaryKey mirrors the ID into the primarykey table kept for
// older clients. Errors are ignored.
func (d *Database) updateASM2PrimaryKey(table string, id int64) {
	if !d.config.HasASM2PKTable {
		return
	}
	d.Execute("DELETE FROM primarykey WHERE TableName = ?", table)
	d.Execute("INSERT INTO primarykey (TableName, NextID) VALUES (?, ?)", table, id)
}

// SQLAtoi removes everything but digits from expr.
func (d *Database) SQLAtoi(expr string) string {
	return d.dialect.SQLRegexpReplace(expr, "[^0123456789]", "")
}

// SQLNow writes Now() as a date literal.
func (d *Database) SQLNow(wrapQuotes, includeTime bool) string {
	return d.dialect.SQLDate(d.Now(), wrapQuotes, includeTime)
}

// SQLToday writes Today(0) as a date literal.
func (d *Database) SQLToday(wrapQuotes, includeTime bool) string {
	return d.dialect.SQLDate(d.Today(0), wrapQuotes, includeTime)
}

// SQLPlaceholders writes n comma separated placeholders.
func SQLPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func copyValues(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values)+6)
	for k, v := range values {
		out[k] = v
	}
	return out
}

// setValue sets key, replacing any key that differs only in case.
func setValue(values map[string]interface{}, key string, value interface{}) {
	for k := range values {
		if strings.EqualFold(k, key) {
			delete(values, k)
		}
	}
	values[key] = value
}

func findKey(values map[string]interface{}, key string) (string, bool) {
	for k := range values {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return "", false
}

func sortedKeys(values map[string]interface{}) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
