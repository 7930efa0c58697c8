package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/medicrypt/consentledger/internal/model"
	"github.com/medicrypt/consentledger/internal/testutil"
)

func appendTestEvents(t *testing.T, s *Store, n int) {
	t.Helper()
	ctx := context.Background()
	owner := testutil.DeterministicID("owner")
	rec := testRecord(t, owner, "cid-events")

	inTx(t, s, func(tx *Tx) error {
		for i := 0; i < n; i++ {
			ev := model.Event{
				EventID:    fmt.Sprintf("evt-%04d", i+1),
				OpToken:    fmt.Sprintf("op-%04d", i+1),
				Kind:       model.EventRecordRegistered,
				RecordAddr: rec.Addr.String(),
				Owner:      owner.String(),
				ContentID:  rec.ContentID,
				Timestamp:  1700000000 + int64(i),
			}
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestAppendEventAssignsSeq(t *testing.T) {
	s := createTestStore(t)
	appendTestEvents(t, s, 3)

	events, err := s.EventsSince(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("EventsSince() failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			t.Errorf("event %d has seq %d, want %d", i, ev.Seq, i+1)
		}
	}
}

func TestEventsSincePagination(t *testing.T) {
	s := createTestStore(t)
	appendTestEvents(t, s, 5)
	ctx := context.Background()

	page, err := s.EventsSince(ctx, 0, 2)
	if err != nil {
		t.Fatalf("EventsSince() failed: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 1 || page[1].Seq != 2 {
		t.Fatalf("first page wrong: %+v", page)
	}

	page, err = s.EventsSince(ctx, page[len(page)-1].Seq, 2)
	if err != nil {
		t.Fatalf("EventsSince() failed: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 3 {
		t.Fatalf("second page wrong: %+v", page)
	}

	tail, err := s.EventsSince(ctx, 5, 10)
	if err != nil {
		t.Fatalf("EventsSince() failed: %v", err)
	}
	if len(tail) != 0 {
		t.Errorf("no events past the tail, got %d", len(tail))
	}
}

func TestEventsRoundTripPayload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := model.Event{
		EventID:       "evt-full",
		OpToken:       "op-full",
		Kind:          model.EventAccessRevoked,
		RecordAddr:    "rec-addr",
		GrantAddr:     "grant-addr",
		Owner:         "owner-id",
		Granter:       "granter-id",
		Requester:     "requester-id",
		ContentID:     "cid",
		EncryptedHash: "hash",
		FileName:      "file.bin",
		Policy:        "retain",
		Timestamp:     1700000042,
	}
	inTx(t, s, func(tx *Tx) error {
		return tx.AppendEvent(ctx, ev)
	})

	events, err := s.EventsSince(ctx, 0, 0)
	if err != nil {
		t.Fatalf("EventsSince() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	got := events[0]
	ev.Seq = got.Seq
	if got != ev {
		t.Errorf("event round trip mismatch:\n got %+v\nwant %+v", got, ev)
	}
}

func TestAppendEventDuplicateIDFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ev := model.Event{
		EventID:    "evt-dup",
		OpToken:    "op-1",
		Kind:       model.EventRecordRegistered,
		RecordAddr: "rec-addr",
		Timestamp:  1,
	}

	inTx(t, s, func(tx *Tx) error {
		return tx.AppendEvent(ctx, ev)
	})

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()
	ev.OpToken = "op-2"
	if err := tx.AppendEvent(ctx, ev); err == nil {
		t.Error("duplicate event_id should be rejected")
	}
}

func TestLastEventSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastEventSeq(ctx)
	if err != nil {
		t.Fatalf("LastEventSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("empty log seq = %d, want 0", seq)
	}

	appendTestEvents(t, s, 4)
	seq, err = s.LastEventSeq(ctx)
	if err != nil {
		t.Fatalf("LastEventSeq() failed: %v", err)
	}
	if seq != 4 {
		t.Errorf("LastEventSeq() = %d, want 4", seq)
	}
}
