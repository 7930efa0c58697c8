package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/medicrypt/consentledger/internal/addr"
	"github.com/medicrypt/consentledger/internal/identity"
	"github.com/medicrypt/consentledger/internal/model"
)

const recordColumns = `addr, owner, content_id, encrypted_hash, file_name, owner_key_copy, created_at, is_active, reserved_bytes, payer`

// GetRecord loads the record at a, or nil if absent.
func (t *Tx) GetRecord(ctx context.Context, a addr.Address) (*model.RecordMetadata, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE addr = ?`, a.String())
	return scanRecord(row)
}

// InsertRecord persists a new record row. The caller has already verified
// the address is unoccupied; the PRIMARY KEY constraint backstops that.
func (t *Tx) InsertRecord(ctx context.Context, rec model.RecordMetadata) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO records
		(`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Addr.String(),
		rec.Owner.String(),
		rec.ContentID,
		rec.EncryptedHash,
		rec.FileName,
		rec.OwnerKeyCopy,
		rec.CreatedAt,
		boolToInt(rec.IsActive),
		rec.ReservedBytes,
		rec.Payer.String(),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// RecordTombstoned reports whether a record address was burned by an
// earlier reclaim close.
func (t *Tx) RecordTombstoned(ctx context.Context, a addr.Address) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM tombstones WHERE addr = ?`, a.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check tombstone: %w", err)
	}
	return true, nil
}

// ClearTombstone removes a burned address so it can be re-created.
// Only called when the reregister policy is "allow".
func (t *Tx) ClearTombstone(ctx context.Context, a addr.Address) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM tombstones WHERE addr = ?`, a.String()); err != nil {
		return fmt.Errorf("clear tombstone: %w", err)
	}
	return nil
}

// CloseRecord applies the configured deletion policy to the record.
// Retain flips is_active; reclaim deletes the row, burns the address, and
// refunds the reserved allowance to the payer. now stamps the tombstone
// and refund rows.
func (t *Tx) CloseRecord(ctx context.Context, rec *model.RecordMetadata, now int64) error {
	switch t.store.deletion {
	case model.DeletionReclaim:
		if _, err := t.tx.ExecContext(ctx,
			`DELETE FROM records WHERE addr = ?`, rec.Addr.String()); err != nil {
			return fmt.Errorf("close record: %w", err)
		}
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO tombstones (addr, kind, closed_at) VALUES (?, 'record', ?)`,
			rec.Addr.String(), now); err != nil {
			return fmt.Errorf("close record: tombstone: %w", err)
		}
		return t.insertRefund(ctx, rec.Payer, rec.ReservedBytes, rec.Addr, now)
	default:
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE records SET is_active = 0 WHERE addr = ?`, rec.Addr.String()); err != nil {
			return fmt.Errorf("deactivate record: %w", err)
		}
		return nil
	}
}

// GetRecord loads the record at a outside a transaction, or nil if absent.
func (s *Store) GetRecord(ctx context.Context, a addr.Address) (*model.RecordMetadata, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE addr = ?`, a.String())
	return scanRecord(row)
}

// ListRecordsByOwner returns all records owned by owner, including
// soft-deleted ones under the retain policy. Ordered by creation time
// then address for deterministic output.
func (s *Store) ListRecordsByOwner(ctx context.Context, owner identity.ID) ([]model.RecordMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE owner = ?
		ORDER BY created_at ASC, addr ASC
	`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []model.RecordMetadata
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (*model.RecordMetadata, error) {
	rec, err := scanRecordFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func scanRecordRows(rows *sql.Rows) (*model.RecordMetadata, error) {
	return scanRecordFrom(rows)
}

func scanRecordFrom(row rowScanner) (*model.RecordMetadata, error) {
	var (
		rec                   model.RecordMetadata
		addrStr, ownerStr     string
		payerStr              string
		active                int
	)
	err := row.Scan(
		&addrStr,
		&ownerStr,
		&rec.ContentID,
		&rec.EncryptedHash,
		&rec.FileName,
		&rec.OwnerKeyCopy,
		&rec.CreatedAt,
		&active,
		&rec.ReservedBytes,
		&payerStr,
	)
	if err != nil {
		return nil, err
	}
	if rec.Addr, err = addr.Parse(addrStr); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if rec.Owner, err = identity.Parse(ownerStr); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if rec.Payer, err = identity.Parse(payerStr); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	rec.IsActive = active != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
