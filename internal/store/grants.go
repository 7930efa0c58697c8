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

const grantColumns = `addr, record_addr, requester, granter, reencrypted_key, granted_at, is_active, reserved_bytes, payer`

// GetGrant loads the grant at a, or nil if absent.
func (t *Tx) GetGrant(ctx context.Context, a addr.Address) (*model.AccessGrant, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM grants WHERE addr = ?`, a.String())
	return scanGrant(row)
}

// UpsertGrant persists a grant with create-or-refresh semantics: a new row
// if the address is free, otherwise the existing row is overwritten in
// place with the new key material, granted_at, and is_active=1. Re-granting
// after a revoke reuses the same address.
func (t *Tx) UpsertGrant(ctx context.Context, g model.AccessGrant) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO grants
		(`+grantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(addr) DO UPDATE SET
			reencrypted_key = excluded.reencrypted_key,
			granted_at      = excluded.granted_at,
			granter         = excluded.granter,
			is_active       = excluded.is_active
	`,
		g.Addr.String(),
		g.RecordAddr.String(),
		g.Requester.String(),
		g.Granter.String(),
		g.ReencryptedKey,
		g.GrantedAt,
		boolToInt(g.IsActive),
		g.ReservedBytes,
		g.Payer.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

// RevokeGrant applies the configured deletion policy to the grant.
// Retain flips is_active and keeps the row for audit history; reclaim
// deletes the row and refunds the reserved allowance to the payer. Grant
// addresses are never tombstoned: re-granting is always allowed.
func (t *Tx) RevokeGrant(ctx context.Context, g *model.AccessGrant, now int64) error {
	switch t.store.deletion {
	case model.DeletionReclaim:
		if _, err := t.tx.ExecContext(ctx,
			`DELETE FROM grants WHERE addr = ?`, g.Addr.String()); err != nil {
			return fmt.Errorf("revoke grant: %w", err)
		}
		return t.insertRefund(ctx, g.Payer, g.ReservedBytes, g.Addr, now)
	default:
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE grants SET is_active = 0 WHERE addr = ?`, g.Addr.String()); err != nil {
			return fmt.Errorf("revoke grant: %w", err)
		}
		return nil
	}
}

// GetGrant loads the grant at a outside a transaction, or nil if absent.
func (s *Store) GetGrant(ctx context.Context, a addr.Address) (*model.AccessGrant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM grants WHERE addr = ?`, a.String())
	return scanGrant(row)
}

// ListGrantsForRecord returns all grants subordinate to a record,
// including revoked ones under the retain policy.
func (s *Store) ListGrantsForRecord(ctx context.Context, recordAddr addr.Address) ([]model.AccessGrant, error) {
	return s.listGrants(ctx, `record_addr`, recordAddr.String())
}

// ListGrantsForRequester returns all grants naming requester across all
// records. This is the requester's view of what they can decrypt.
func (s *Store) ListGrantsForRequester(ctx context.Context, requester identity.ID) ([]model.AccessGrant, error) {
	return s.listGrants(ctx, `requester`, requester.String())
}

func (s *Store) listGrants(ctx context.Context, column, value string) ([]model.AccessGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+grantColumns+` FROM grants
		WHERE `+column+` = ?
		ORDER BY granted_at ASC, addr ASC
	`, value)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []model.AccessGrant
	for rows.Next() {
		g, err := scanGrantFrom(rows)
		if err != nil {
			return nil, fmt.Errorf("list grants: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return out, nil
}

func scanGrant(row *sql.Row) (*model.AccessGrant, error) {
	g, err := scanGrantFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

func scanGrantFrom(row rowScanner) (*model.AccessGrant, error) {
	var (
		g                      model.AccessGrant
		addrStr, recordAddrStr string
		requesterStr           string
		granterStr, payerStr   string
		active                 int
	)
	err := row.Scan(
		&addrStr,
		&recordAddrStr,
		&requesterStr,
		&granterStr,
		&g.ReencryptedKey,
		&g.GrantedAt,
		&active,
		&g.ReservedBytes,
		&payerStr,
	)
	if err != nil {
		return nil, err
	}
	if g.Addr, err = addr.Parse(addrStr); err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	if g.RecordAddr, err = addr.Parse(recordAddrStr); err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	if g.Requester, err = identity.Parse(requesterStr); err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	if g.Granter, err = identity.Parse(granterStr); err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	if g.Payer, err = identity.Parse(payerStr); err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	g.IsActive = active != 0
	return &g, nil
}
