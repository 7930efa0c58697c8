package store

import (
	"context"
	"fmt"

	"github.com/medicrypt/consentledger/internal/addr"
	"github.com/medicrypt/consentledger/internal/identity"
)

// insertRefund credits a reclaimed entity's reserved allowance back to its
// original payer.
func (t *Tx) insertRefund(ctx context.Context, payer identity.ID, amount int64, entity addr.Address, now int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO refunds (payer, amount, entity_addr, refunded_at)
		VALUES (?, ?, ?, ?)
	`, payer.String(), amount, entity.String(), now)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// RefundBalance sums the storage allowance returned to payer by reclaim
// closes. Always zero under the retain policy.
func (s *Store) RefundBalance(ctx context.Context, payer identity.ID) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE payer = ?`,
		payer.String()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("refund balance: %w", err)
	}
	return total, nil
}

// RecordReservedBytes returns the allowance charged for a record row.
func RecordReservedBytes() int64 { return recordReservedBytes }

// GrantReservedBytes returns the allowance charged for a grant row.
func GrantReservedBytes() int64 { return grantReservedBytes }
