package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/medicrypt/consentledger/internal/addr"
	"github.com/medicrypt/consentledger/internal/identity"
	"github.com/medicrypt/consentledger/internal/model"
	"github.com/medicrypt/consentledger/internal/store"
)

// Ledger orchestrates the consent ledger's public operations against the
// store. Safe for concurrent use; operations on the same record serialize
// on a per-record-address lock.
type Ledger struct {
	store  *store.Store
	clock  Clock
	tokens TokenGenerator
	locks  *addrLocks
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock substitutes the timestamp source. Used by tests for
// deterministic created_at/granted_at values.
func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithTokenGenerator substitutes the token source. Used by tests for
// deterministic op tokens and event ids.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(l *Ledger) { l.tokens = g }
}

// New creates a Ledger over s.
func New(s *store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		clock:  WallClock{},
		tokens: UUIDv7Generator{},
		locks:  newAddrLocks(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store exposes the underlying store for read-only surfaces (CLI listings,
// event tailing). Mutations go through the Ledger only.
func (l *Ledger) Store() *store.Store {
	return l.store
}

// RecordAddress derives the storage address of the record identified by
// (owner, contentID). Stable: registration and every later operation on
// the same coordinates resolve to the same address.
func RecordAddress(owner identity.ID, contentID string) (addr.Address, error) {
	a, err := addr.Derive(addr.NamespaceRecord, owner.Bytes(), addr.NormalizeString(contentID))
	if err != nil {
		return addr.Address{}, seedErr(err)
	}
	return a, nil
}

// GrantAddress derives the storage address of the grant for requester on
// the record at recordAddr.
func GrantAddress(recordAddr addr.Address, requester identity.ID) (addr.Address, error) {
	a, err := addr.Derive(addr.NamespaceGrant, recordAddr.Bytes(), requester.Bytes())
	if err != nil {
		return addr.Address{}, seedErr(err)
	}
	return a, nil
}

// seedErr converts the deriver's SeedTooLongError into the ledger taxonomy.
func seedErr(err error) error {
	var se *addr.SeedTooLongError
	if errors.As(err, &se) {
		return opErr(ErrCodeSeedTooLong, "", "%s", se.Error())
	}
	return err
}

// RegisterParams names a new record. Owner is the verified caller; the
// record is self-registered, so no separate authorization target exists.
type RegisterParams struct {
	Owner         identity.ID
	ContentID     string
	EncryptedHash string
	FileName      string
	// OwnerKeyCopy is optional: the symmetric key encrypted for the owner
	// themselves, stored verbatim for self-recovery.
	OwnerKeyCopy string
}

// Register creates the record for (owner, contentID). First-writer-wins:
// an occupied address rejects with ALREADY_EXISTS and leaves the existing
// record untouched. A tombstoned address also rejects unless the store's
// reregister policy is "allow".
func (l *Ledger) Register(ctx context.Context, p RegisterParams) (*model.RecordMetadata, error) {
	if err := l.checkRegisterBounds(p); err != nil {
		return nil, err
	}

	recordAddr, err := RecordAddress(p.Owner, p.ContentID)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.lock(recordAddr)
	defer unlock()

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	defer tx.Rollback()

	existing, err := tx.GetRecord(ctx, recordAddr)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if existing != nil {
		return nil, opErr(ErrCodeAlreadyExists, recordAddr.String(),
			"record already registered for this owner and content id")
	}

	tombstoned, err := tx.RecordTombstoned(ctx, recordAddr)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if tombstoned {
		if l.store.ReregisterPolicy() != model.ReregisterAllow {
			return nil, opErr(ErrCodeAlreadyExists, recordAddr.String(),
				"record address was closed and may not be reused")
		}
		if err := tx.ClearTombstone(ctx, recordAddr); err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
	}

	now := l.clock.Now().Unix()
	rec := model.RecordMetadata{
		Addr:          recordAddr,
		Owner:         p.Owner,
		ContentID:     p.ContentID,
		EncryptedHash: p.EncryptedHash,
		FileName:      p.FileName,
		OwnerKeyCopy:  p.OwnerKeyCopy,
		CreatedAt:     now,
		IsActive:      true,
		ReservedBytes: store.RecordReservedBytes(),
		Payer:         p.Owner,
	}
	if err := tx.InsertRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	ev := l.newEvent(model.EventRecordRegistered, now)
	ev.RecordAddr = recordAddr.String()
	ev.Owner = p.Owner.String()
	ev.ContentID = p.ContentID
	ev.EncryptedHash = p.EncryptedHash
	ev.FileName = p.FileName
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &rec, nil
}

// GrantParams names an existing record by its (owner, content id)
// coordinates and the requester being granted access. Caller must be the
// record owner.
type GrantParams struct {
	Caller         identity.ID
	Owner          identity.ID
	ContentID      string
	Requester      identity.ID
	ReencryptedKey string
}

// Grant creates or refreshes the access grant for (record, requester).
// If a grant already exists at the derived address - even a revoked one -
// it is overwritten in place with the new key material and granted_at,
// and becomes active again. Re-granting after a revoke never needs a new
// address.
func (l *Ledger) Grant(ctx context.Context, p GrantParams) (*model.AccessGrant, error) {
	if err := checkLen("reencrypted_key", p.ReencryptedKey, MaxKeyMaterialLen); err != nil {
		return nil, err
	}
	if err := checkLen("content_id", p.ContentID, MaxContentIDLen); err != nil {
		return nil, err
	}

	recordAddr, err := RecordAddress(p.Owner, p.ContentID)
	if err != nil {
		return nil, err
	}
	grantAddr, err := GrantAddress(recordAddr, p.Requester)
	if err != nil {
		return nil, err
	}

	unlock := l.locks.lock(recordAddr)
	defer unlock()

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}
	defer tx.Rollback()

	rec, err := tx.GetRecord(ctx, recordAddr)
	if err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}
	if err := requireState(rec != nil, ErrCodeRecordNotActive, recordAddr.String(),
		"record does not exist"); err != nil {
		return nil, err
	}
	if err := requireCaller(rec.Owner, p.Caller, recordAddr.String()); err != nil {
		return nil, err
	}
	if err := requireState(rec.IsActive, ErrCodeRecordNotActive, recordAddr.String(),
		"record is not active"); err != nil {
		return nil, err
	}

	now := l.clock.Now().Unix()
	g := model.AccessGrant{
		Addr:           grantAddr,
		RecordAddr:     recordAddr,
		Requester:      p.Requester,
		Granter:        rec.Owner,
		ReencryptedKey: p.ReencryptedKey,
		GrantedAt:      now,
		IsActive:       true,
		ReservedBytes:  store.GrantReservedBytes(),
		Payer:          rec.Owner,
	}
	if err := tx.UpsertGrant(ctx, g); err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}

	ev := l.newEvent(model.EventAccessGranted, now)
	ev.RecordAddr = recordAddr.String()
	ev.GrantAddr = grantAddr.String()
	ev.Granter = g.Granter.String()
	ev.Requester = p.Requester.String()
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}
	return &g, nil
}

// RevokeParams names the grant to revoke by its record coordinates and
// requester. Caller must be the record owner.
type RevokeParams struct {
	Caller    identity.ID
	Owner     identity.ID
	ContentID string
	Requester identity.ID
}

// Revoke withdraws a previously granted access. Under the retain policy
// the grant row stays, inactive, for audit history; under reclaim it is
// removed and its storage allowance refunded.
func (l *Ledger) Revoke(ctx context.Context, p RevokeParams) error {
	if err := checkLen("content_id", p.ContentID, MaxContentIDLen); err != nil {
		return err
	}

	recordAddr, err := RecordAddress(p.Owner, p.ContentID)
	if err != nil {
		return err
	}
	grantAddr, err := GrantAddress(recordAddr, p.Requester)
	if err != nil {
		return err
	}

	unlock := l.locks.lock(recordAddr)
	defer unlock()

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	defer tx.Rollback()

	g, err := tx.GetGrant(ctx, grantAddr)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	if err := requireState(g != nil, ErrCodeNotFound, grantAddr.String(),
		"no grant exists for this record and requester"); err != nil {
		return err
	}

	rec, err := tx.GetRecord(ctx, recordAddr)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	if err := requireState(rec != nil, ErrCodeNotFound, recordAddr.String(),
		"record does not exist"); err != nil {
		return err
	}
	if err := requireCaller(rec.Owner, p.Caller, recordAddr.String()); err != nil {
		return err
	}
	// Ownership is immutable, so a granter mismatch means a stale or
	// foreign grant row at this address.
	if err := requireState(g.Granter.Equal(rec.Owner), ErrCodeInvalidGrantState, grantAddr.String(),
		"grant's granter does not match the record owner"); err != nil {
		return err
	}
	if err := requireState(g.IsActive, ErrCodeGrantNotActive, grantAddr.String(),
		"grant is not active"); err != nil {
		return err
	}

	now := l.clock.Now().Unix()
	if err := tx.RevokeGrant(ctx, g, now); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	ev := l.newEvent(model.EventAccessRevoked, now)
	ev.RecordAddr = recordAddr.String()
	ev.GrantAddr = grantAddr.String()
	ev.Granter = g.Granter.String()
	ev.Requester = p.Requester.String()
	ev.Policy = string(l.store.DeletionPolicy())
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

// CloseParams names the record to deactivate or close. Caller must be the
// record owner.
type CloseParams struct {
	Caller    identity.ID
	Owner     identity.ID
	ContentID string
}

// Close ends a record's active life. Retain marks it inactive and keeps it
// queryable; reclaim removes it, refunds its storage allowance, and burns
// the address. Existing grants are untouched either way, but no new grant
// can be made against the record afterwards.
func (l *Ledger) Close(ctx context.Context, p CloseParams) error {
	if err := checkLen("content_id", p.ContentID, MaxContentIDLen); err != nil {
		return err
	}

	recordAddr, err := RecordAddress(p.Owner, p.ContentID)
	if err != nil {
		return err
	}

	unlock := l.locks.lock(recordAddr)
	defer unlock()

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	defer tx.Rollback()

	rec, err := tx.GetRecord(ctx, recordAddr)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := requireState(rec != nil, ErrCodeNotFound, recordAddr.String(),
		"record does not exist"); err != nil {
		return err
	}
	if err := requireCaller(rec.Owner, p.Caller, recordAddr.String()); err != nil {
		return err
	}
	if err := requireState(rec.IsActive, ErrCodeRecordNotActive, recordAddr.String(),
		"record is not active"); err != nil {
		return err
	}

	now := l.clock.Now().Unix()
	if err := tx.CloseRecord(ctx, rec, now); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	kind := model.EventRecordDeactivated
	if l.store.DeletionPolicy() == model.DeletionReclaim {
		kind = model.EventRecordClosed
	}
	ev := l.newEvent(kind, now)
	ev.RecordAddr = recordAddr.String()
	ev.Owner = rec.Owner.String()
	ev.Policy = string(l.store.DeletionPolicy())
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// newEvent stamps a fresh event envelope. The generator is consumed in a
// fixed order - op token first, then event id - so FixedGenerator tests
// can predict both.
func (l *Ledger) newEvent(kind model.EventKind, ts int64) model.Event {
	return model.Event{
		OpToken:   l.tokens.Generate(),
		EventID:   l.tokens.Generate(),
		Kind:      kind,
		Timestamp: ts,
	}
}

func (l *Ledger) checkRegisterBounds(p RegisterParams) error {
	if err := checkLen("content_id", p.ContentID, MaxContentIDLen); err != nil {
		return err
	}
	if err := checkLen("encrypted_hash", p.EncryptedHash, MaxEncryptedHashLen); err != nil {
		return err
	}
	if err := checkLen("file_name", p.FileName, MaxFileNameLen); err != nil {
		return err
	}
	return checkLen("owner_key_copy", p.OwnerKeyCopy, MaxKeyMaterialLen)
}
