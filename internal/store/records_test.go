package store

import (
	"context"
	"testing"

	"github.com/medicrypt/consentledger/internal/model"
	"github.com/medicrypt/consentledger/internal/testutil"
)

func TestInsertAndGetRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	owner := testutil.DeterministicID("owner")

	rec := testRecord(t, owner, "cid-1")
	rec.OwnerKeyCopy = "owner-key-copy"
	inTx(t, s, func(tx *Tx) error {
		return tx.InsertRecord(ctx, rec)
	})

	got, err := s.GetRecord(ctx, rec.Addr)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetRecord() returned nil for existing record")
	}
	if got.Addr != rec.Addr {
		t.Errorf("Addr = %s, want %s", got.Addr, rec.Addr)
	}
	if !got.Owner.Equal(owner) {
		t.Errorf("Owner = %s, want %s", got.Owner, owner)
	}
	if got.ContentID != rec.ContentID {
		t.Errorf("ContentID = %q, want %q", got.ContentID, rec.ContentID)
	}
	if got.EncryptedHash != rec.EncryptedHash {
		t.Errorf("EncryptedHash = %q, want %q", got.EncryptedHash, rec.EncryptedHash)
	}
	if got.FileName != rec.FileName {
		t.Errorf("FileName = %q, want %q", got.FileName, rec.FileName)
	}
	if got.OwnerKeyCopy != rec.OwnerKeyCopy {
		t.Errorf("OwnerKeyCopy = %q, want %q", got.OwnerKeyCopy, rec.OwnerKeyCopy)
	}
	if got.CreatedAt != rec.CreatedAt {
		t.Errorf("CreatedAt = %d, want %d", got.CreatedAt, rec.CreatedAt)
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}
	if got.ReservedBytes != RecordReservedBytes() {
		t.Errorf("ReservedBytes = %d, want %d", got.ReservedBytes, RecordReservedBytes())
	}
	if !got.Payer.Equal(owner) {
		t.Errorf("Payer = %s, want %s", got.Payer, owner)
	}
}

func TestGetRecordAbsent(t *testing.T) {
	s := createTestStore(t)
	rec := testRecord(t, testutil.DeterministicID("owner"), "never-inserted")

	got, err := s.GetRecord(context.Background(), rec.Addr)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got != nil {
		t.Error("GetRecord() should return nil for absent record")
	}
}

func TestInsertRecordDuplicateAddrFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := testRecord(t, testutil.DeterministicID("owner"), "cid-dup")

	inTx(t, s, func(tx *Tx) error {
		return tx.InsertRecord(ctx, rec)
	})

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()
	if err := tx.InsertRecord(ctx, rec); err == nil {
		t.Error("duplicate insert at the same address should fail")
	}
}

func TestListRecordsByOwner(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	alice := testutil.DeterministicID("alice")
	bob := testutil.DeterministicID("bob")

	first := testRecord(t, alice, "cid-a")
	first.CreatedAt = 100
	second := testRecord(t, alice, "cid-b")
	second.CreatedAt = 200
	other := testRecord(t, bob, "cid-c")
	other.CreatedAt = 150

	inTx(t, s, func(tx *Tx) error {
		for _, r := range []model.RecordMetadata{second, other, first} {
			if err := tx.InsertRecord(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})

	got, err := s.ListRecordsByOwner(ctx, alice)
	if err != nil {
		t.Fatalf("ListRecordsByOwner() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].ContentID != "cid-a" || got[1].ContentID != "cid-b" {
		t.Errorf("records out of creation order: %q, %q", got[0].ContentID, got[1].ContentID)
	}

	empty, err := s.ListRecordsByOwner(ctx, testutil.DeterministicID("nobody"))
	if err != nil {
		t.Fatalf("ListRecordsByOwner() failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown owner should list no records, got %d", len(empty))
	}
}

func TestCloseRecordRetain(t *testing.T) {
	s := createTestStore(t) // retain is the default
	ctx := context.Background()
	owner := testutil.DeterministicID("owner")
	rec := testRecord(t, owner, "cid-close")

	inTx(t, s, func(tx *Tx) error {
		return tx.InsertRecord(ctx, rec)
	})
	inTx(t, s, func(tx *Tx) error {
		return tx.CloseRecord(ctx, &rec, 1700000100)
	})

	got, err := s.GetRecord(ctx, rec.Addr)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got == nil {
		t.Fatal("retain close should keep the row")
	}
	if got.IsActive {
		t.Error("retain close should clear IsActive")
	}

	// No tombstone and no refund under retain.
	inTx(t, s, func(tx *Tx) error {
		tombstoned, err := tx.RecordTombstoned(ctx, rec.Addr)
		if err != nil {
			return err
		}
		if tombstoned {
			t.Error("retain close should not tombstone the address")
		}
		return nil
	})
	balance, err := s.RefundBalance(ctx, owner)
	if err != nil {
		t.Fatalf("RefundBalance() failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("refund balance = %d, want 0 under retain", balance)
	}
}

func TestCloseRecordReclaim(t *testing.T) {
	s := createTestStore(t, WithDeletionPolicy(model.DeletionReclaim))
	ctx := context.Background()
	owner := testutil.DeterministicID("owner")
	rec := testRecord(t, owner, "cid-close")

	inTx(t, s, func(tx *Tx) error {
		return tx.InsertRecord(ctx, rec)
	})
	inTx(t, s, func(tx *Tx) error {
		return tx.CloseRecord(ctx, &rec, 1700000100)
	})

	got, err := s.GetRecord(ctx, rec.Addr)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got != nil {
		t.Error("reclaim close should remove the row")
	}

	inTx(t, s, func(tx *Tx) error {
		tombstoned, err := tx.RecordTombstoned(ctx, rec.Addr)
		if err != nil {
			return err
		}
		if !tombstoned {
			t.Error("reclaim close should tombstone the address")
		}
		return nil
	})

	balance, err := s.RefundBalance(ctx, owner)
	if err != nil {
		t.Fatalf("RefundBalance() failed: %v", err)
	}
	if balance != RecordReservedBytes() {
		t.Errorf("refund balance = %d, want %d", balance, RecordReservedBytes())
	}
}

func TestClearTombstone(t *testing.T) {
	s := createTestStore(t, WithDeletionPolicy(model.DeletionReclaim))
	ctx := context.Background()
	rec := testRecord(t, testutil.DeterministicID("owner"), "cid-reuse")

	inTx(t, s, func(tx *Tx) error {
		return tx.InsertRecord(ctx, rec)
	})
	inTx(t, s, func(tx *Tx) error {
		return tx.CloseRecord(ctx, &rec, 1700000100)
	})
	inTx(t, s, func(tx *Tx) error {
		return tx.ClearTombstone(ctx, rec.Addr)
	})

	inTx(t, s, func(tx *Tx) error {
		tombstoned, err := tx.RecordTombstoned(ctx, rec.Addr)
		if err != nil {
			return err
		}
		if tombstoned {
			t.Error("address should no longer be tombstoned")
		}
		// Address is usable again.
		return tx.InsertRecord(ctx, rec)
	})
}
