package asmdb

import "fmt"

const (
	AuditAdd = iota
	AuditEdit
	AuditDelete
)

type (
	// Auditor records writes made through Insert, Update and Delete.
	Auditor interface {
		Create(d *Database, user, table string, id int64, description string) error
		Edit(d *Database, user, table string, id int64, description string) error
		// Delete is called with the where clause before the rows are
		// deleted.
		Delete(d *Database, user, table, where string) error
		// Deletion keeps what is needed to restore the rows, also before
		// they are deleted.
		Deletion(d *Database, user, table, where string) error
	}

	// TableAuditor writes audit records to the audittrail table and
	// deleted rows to the deletion table.
	TableAuditor struct{}
)

var _ Auditor = TableAuditor{}

var auditWrite = WriteOptions{KeepID: true, NoStamps: true, NoAudit: true}

func (TableAuditor) Create(d *Database, user, table string, id int64, description string) error {
	return writeAudit(d, AuditAdd, user, table, id, description)
}

func (TableAuditor) Edit(d *Database, user, table string, id int64, description string) error {
	return writeAudit(d, AuditEdit, user, table, id, description)
}

func (TableAuditor) Delete(d *Database, user, table, where string) error {
	rows, err := d.Query(fmt.Sprintf("SELECT * FROM %s WHERE %s", table, where))
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := writeAudit(d, AuditDelete, user, table, r.Int("ID"), DumpRow(r)); err != nil {
			return err
		}
	}
	return nil
}

func (TableAuditor) Deletion(d *Database, user, table, where string) error {
	rows, err := d.Query(fmt.Sprintf("SELECT * FROM %s WHERE %s", table, where))
	if err != nil {
		return err
	}
	for _, r := range rows {
		_, err := d.Insert("deletion", map[string]interface{}{
			"ID":          r.Int("ID"),
			"TableName":   table,
			"DeletedBy":   user,
			"Date":        d.Now(),
			"RestoreSQL*": d.RowToInsertSQL(table, r, ""),
		}, "", auditWrite)
		if err != nil {
			return fmt.Errorf("write deletion: %w", err)
		}
	}
	return nil
}

func writeAudit(d *Database, action int, user, table string, id int64, description string) error {
	_, err := d.Insert("audittrail", map[string]interface{}{
		"Action":      action,
		"AuditDate":   d.Now(),
		"UserName":    user,
		"TableName":   table,
		"LinkID":      id,
		"Description": description,
	}, "", auditWrite)
	if err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}
