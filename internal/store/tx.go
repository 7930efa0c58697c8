package store

import "database/sql"

// Tx is a single ledger write transaction. Reads through a Tx observe the
// transaction's own uncommitted writes, so guard checks and mutations see
// one consistent snapshot.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. No-op after Commit, so it is safe to
// defer unconditionally.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
