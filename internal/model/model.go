// Package model defines the ledger's domain entities and the vocabulary
// shared by the store, the ledger engine, and the CLI.
package model

import (
	"fmt"

	"github.com/medicrypt/consentledger/internal/addr"
	"github.com/medicrypt/consentledger/internal/identity"
)

// RecordMetadata describes one encrypted off-chain artifact. One per
// (owner, content ID) pair; the pair determines the record's address.
// All fields except IsActive are immutable after registration.
type RecordMetadata struct {
	Addr          addr.Address
	Owner         identity.ID
	ContentID     string // off-chain locator for the ciphertext
	EncryptedHash string // integrity hash of the ciphertext
	FileName      string
	// OwnerKeyCopy is the artifact's symmetric key encrypted under the
	// owner's own public key, stored so the owner can always self-recover.
	// Optional; opaque to the ledger.
	OwnerKeyCopy string
	CreatedAt    int64 // unix seconds
	IsActive     bool

	// ReservedBytes and Payer track the storage allowance reserved at
	// creation, returned to Payer when the reclaim policy removes the row.
	ReservedBytes int64
	Payer         identity.ID
}

// AccessGrant shares a record's symmetric key with one requester. One per
// (record, requester) pair, subordinate to exactly one RecordMetadata.
type AccessGrant struct {
	Addr       addr.Address
	RecordAddr addr.Address
	Requester  identity.ID
	Granter    identity.ID // record owner at grant time
	// ReencryptedKey is the artifact's symmetric key re-encrypted for the
	// requester's public key. Opaque to the ledger.
	ReencryptedKey string
	GrantedAt      int64
	IsActive       bool

	ReservedBytes int64
	Payer         identity.ID
}

// DeletionPolicy selects what close and revoke do with an entity.
type DeletionPolicy string

const (
	// DeletionRetain soft-deletes: the row stays with is_active=false,
	// readable for audit history.
	DeletionRetain DeletionPolicy = "retain"
	// DeletionReclaim hard-closes: the row is removed and its reserved
	// storage allowance is refunded to the original payer.
	DeletionReclaim DeletionPolicy = "reclaim"
)

// ParseDeletionPolicy validates a policy string from config or flags.
func ParseDeletionPolicy(s string) (DeletionPolicy, error) {
	switch DeletionPolicy(s) {
	case DeletionRetain, DeletionReclaim:
		return DeletionPolicy(s), nil
	default:
		return "", fmt.Errorf("invalid deletion policy %q: must be %q or %q", s, DeletionRetain, DeletionReclaim)
	}
}

// ReregisterPolicy decides whether a (owner, content ID) pair may be
// registered again after a reclaim removed its record. The default is
// disallow, which keeps the first-writer-wins invariant permanent.
type ReregisterPolicy string

const (
	ReregisterDisallow ReregisterPolicy = "disallow"
	ReregisterAllow    ReregisterPolicy = "allow"
)

// ParseReregisterPolicy validates a policy string from config or flags.
func ParseReregisterPolicy(s string) (ReregisterPolicy, error) {
	switch ReregisterPolicy(s) {
	case ReregisterDisallow, ReregisterAllow:
		return ReregisterPolicy(s), nil
	default:
		return "", fmt.Errorf("invalid reregister policy %q: must be %q or %q", s, ReregisterDisallow, ReregisterAllow)
	}
}
