package asmdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/gopsql/db"
)

type (
	TransactionBlock func(context.Context, db.Tx) error
)

// MustTransaction starts a transaction, uses context.Background() internally
// and panics if transaction fails.
func (d *Database) MustTransaction(block TransactionBlock) {
	if err := d.Transaction(block); err != nil {
		panic(err)
	}
}

// Transaction starts a transaction, uses context.Background() internally.
func (d *Database) Transaction(block TransactionBlock) error {
	return d.TransactionCtx(context.Background(), block)
}

// TransactionCtx runs block in a transaction on a connection from
// cursorOpen. The transaction is committed if block returns nil and rolled
// back if it returns an error or panics. Rollback errors are discarded so
// the error of block reaches the caller.
func (d *Database) TransactionCtx(ctx context.Context, block TransactionBlock) (err error) {
	conn, fresh, err := d.cursorOpen()
	if err != nil {
		return err
	}
	defer d.cursorClose(conn, fresh)
	d.log("BEGIN", nil)
	var tx db.Tx
	tx, err = conn.BeginTx(ctx, "", false)
	if err != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.log("ROLLBACK", nil)
			tx.Rollback(ctx)
			if rerr, ok := r.(error); ok {
				err = rerr
			} else {
				err = errors.New(fmt.Sprint(r))
			}
		} else if err != nil {
			d.log("ROLLBACK", nil)
			tx.Rollback(ctx)
		} else {
			d.log("COMMIT", nil)
			err = tx.Commit(ctx)
		}
	}()
	err = block(ctx, tx)
	return
}
