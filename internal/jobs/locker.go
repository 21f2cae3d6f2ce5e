package jobs

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/binary"
)

// WithJobTxLock opens a transaction, takes pg_advisory_xact_lock on a hash of
// key, runs fn and commits. The lock is released with the transaction.
func WithJobTxLock(ctx context.Context, db *sql.DB, key string, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(key)); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockKey produces a signed 64-bit integer from the key.
func lockKey(s string) int64 {
	h := sha1.Sum([]byte(s))
	return int64(binary.BigEndian.Uint64(h[0:8]))
}
