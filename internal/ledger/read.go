package ledger

import (
	"context"
	"fmt"

	"github.com/medicrypt/consentledger/internal/identity"
	"github.com/medicrypt/consentledger/internal/model"
)

// Reads resolve the same derived addresses the mutating operations do.
// Absence is not an error: a nil entity means nothing lives at the
// address, which under the reclaim policy is also what a closed entity
// looks like.

// Record returns the record at (owner, contentID), or nil if absent.
func (l *Ledger) Record(ctx context.Context, owner identity.ID, contentID string) (*model.RecordMetadata, error) {
	a, err := RecordAddress(owner, contentID)
	if err != nil {
		return nil, err
	}
	rec, err := l.store.GetRecord(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return rec, nil
}

// LookupGrant returns the grant for (owner, contentID, requester), or nil
// if absent.
func (l *Ledger) LookupGrant(ctx context.Context, owner identity.ID, contentID string, requester identity.ID) (*model.AccessGrant, error) {
	recordAddr, err := RecordAddress(owner, contentID)
	if err != nil {
		return nil, err
	}
	grantAddr, err := GrantAddress(recordAddr, requester)
	if err != nil {
		return nil, err
	}
	g, err := l.store.GetGrant(ctx, grantAddr)
	if err != nil {
		return nil, fmt.Errorf("read grant: %w", err)
	}
	return g, nil
}
