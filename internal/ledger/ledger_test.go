package ledger

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicrypt/consentledger/internal/model"
	"github.com/medicrypt/consentledger/internal/store"
	"github.com/medicrypt/consentledger/internal/testutil"
)

var (
	owner     = testutil.DeterministicID("owner")
	requester = testutil.DeterministicID("requester")
	outsider  = testutil.DeterministicID("outsider")
)

func newTestLedger(t *testing.T, storeOpts ...store.Option) (*Ledger, *testutil.FixedClock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"), storeOpts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewFixedClock(time.Unix(1700000000, 0).UTC())
	l := New(st,
		WithClock(clock),
		WithTokenGenerator(testutil.NewSeqTokenGenerator("tok")),
	)
	return l, clock
}

func mustRegister(t *testing.T, l *Ledger, p RegisterParams) *model.RecordMetadata {
	t.Helper()
	rec, err := l.Register(context.Background(), p)
	require.NoError(t, err)
	return rec
}

func basicRegister() RegisterParams {
	return RegisterParams{
		Owner:         owner,
		ContentID:     "mri-2024.enc",
		EncryptedHash: "deadbeef",
		FileName:      "mri-2024.dcm",
		OwnerKeyCopy:  "owner-key",
	}
}

func TestRegister(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	rec := mustRegister(t, l, basicRegister())

	wantAddr, err := RecordAddress(owner, "mri-2024.enc")
	require.NoError(t, err)
	assert.Equal(t, wantAddr, rec.Addr)
	assert.True(t, rec.Owner.Equal(owner))
	assert.Equal(t, "mri-2024.enc", rec.ContentID)
	assert.Equal(t, "deadbeef", rec.EncryptedHash)
	assert.Equal(t, "mri-2024.dcm", rec.FileName)
	assert.Equal(t, "owner-key", rec.OwnerKeyCopy)
	assert.Equal(t, int64(1700000000), rec.CreatedAt)
	assert.True(t, rec.IsActive)
	assert.True(t, rec.Payer.Equal(owner))

	stored, err := l.Record(ctx, owner, "mri-2024.enc")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, *rec, *stored)
}

func TestRegisterDuplicate(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRegister(t, l, basicRegister())

	dup := basicRegister()
	dup.EncryptedHash = "other-hash"
	_, err := l.Register(ctx, dup)
	assert.True(t, IsAlreadyExists(err), "got %v", err)

	// First writer wins: the original row is untouched.
	stored, err := l.Record(ctx, owner, "mri-2024.enc")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "deadbeef", stored.EncryptedHash)
}

func TestRegisterDistinctCoordinates(t *testing.T) {
	l, _ := newTestLedger(t)

	p := basicRegister()
	mustRegister(t, l, p)

	// Same owner, different cid.
	p2 := basicRegister()
	p2.ContentID = "mri-2025.enc"
	rec2 := mustRegister(t, l, p2)

	// Different owner, same cid.
	p3 := basicRegister()
	p3.Owner = requester
	rec3 := mustRegister(t, l, p3)

	assert.NotEqual(t, rec2.Addr, rec3.Addr)
}

func TestRegisterNormalizesContentID(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	p := basicRegister()
	p.ContentID = "résume.enc" // decomposed é
	mustRegister(t, l, p)

	// The composed spelling resolves to the same record.
	stored, err := l.Record(ctx, owner, "résume.enc")
	require.NoError(t, err)
	require.NotNil(t, stored)

	dup := basicRegister()
	dup.ContentID = "résume.enc"
	_, err = l.Register(ctx, dup)
	assert.True(t, IsAlreadyExists(err), "got %v", err)
}

func TestRegisterFieldBounds(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterParams)
	}{
		{"content_id", func(p *RegisterParams) { p.ContentID = strings.Repeat("c", MaxContentIDLen+1) }},
		{"encrypted_hash", func(p *RegisterParams) { p.EncryptedHash = strings.Repeat("h", MaxEncryptedHashLen+1) }},
		{"file_name", func(p *RegisterParams) { p.FileName = strings.Repeat("f", MaxFileNameLen+1) }},
		{"owner_key_copy", func(p *RegisterParams) { p.OwnerKeyCopy = strings.Repeat("k", MaxKeyMaterialLen+1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := basicRegister()
			tc.mutate(&p)
			_, err := l.Register(ctx, p)
			assert.Equal(t, ErrCodeStringTooLong, CodeOf(err), "got %v", err)
		})
	}

	// Values exactly at the bound are accepted.
	p := basicRegister()
	p.ContentID = strings.Repeat("c", MaxContentIDLen)
	p.EncryptedHash = strings.Repeat("h", MaxEncryptedHashLen)
	p.FileName = strings.Repeat("f", MaxFileNameLen)
	p.OwnerKeyCopy = strings.Repeat("k", MaxKeyMaterialLen)
	mustRegister(t, l, p)
}

func TestGrant(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()

	rec := mustRegister(t, l, basicRegister())
	clock.Advance(time.Second)

	g, err := l.Grant(ctx, GrantParams{
		Caller:         owner,
		Owner:          owner,
		ContentID:      "mri-2024.enc",
		Requester:      requester,
		ReencryptedKey: "rekey-1",
	})
	require.NoError(t, err)

	wantAddr, err := GrantAddress(rec.Addr, requester)
	require.NoError(t, err)
	assert.Equal(t, wantAddr, g.Addr)
	assert.Equal(t, rec.Addr, g.RecordAddr)
	assert.True(t, g.Requester.Equal(requester))
	assert.True(t, g.Granter.Equal(owner))
	assert.Equal(t, "rekey-1", g.ReencryptedKey)
	assert.Equal(t, int64(1700000001), g.GrantedAt)
	assert.True(t, g.IsActive)

	stored, err := l.LookupGrant(ctx, owner, "mri-2024.enc", requester)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, *g, *stored)
}

func TestGrantRequiresOwner(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRegister(t, l, basicRegister())

	_, err := l.Grant(ctx, GrantParams{
		Caller:         outsider,
		Owner:          owner,
		ContentID:      "mri-2024.enc",
		Requester:      outsider,
		ReencryptedKey: "rekey-x",
	})
	assert.True(t, IsUnauthorized(err), "got %v", err)

	// Nothing was written.
	g, err := l.LookupGrant(ctx, owner, "mri-2024.enc", outsider)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestGrantUnknownRecord(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.Grant(context.Background(), GrantParams{
		Caller:         owner,
		Owner:          owner,
		ContentID:      "never-registered.enc",
		Requester:      requester,
		ReencryptedKey: "rekey-1",
	})
	assert.True(t, IsRecordNotActive(err), "got %v", err)
}

func TestGrantKeyTooLong(t *testing.T) {
	l, _ := newTestLedger(t)
	mustRegister(t, l, basicRegister())

	_, err := l.Grant(context.Background(), GrantParams{
		Caller:         owner,
		Owner:          owner,
		ContentID:      "mri-2024.enc",
		Requester:      requester,
		ReencryptedKey: strings.Repeat("k", MaxKeyMaterialLen+1),
	})
	assert.Equal(t, ErrCodeStringTooLong, CodeOf(err))
}

func TestGrantRefreshAfterRevoke(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()

	mustRegister(t, l, basicRegister())

	grant := func(key string) *model.AccessGrant {
		g, err := l.Grant(ctx, GrantParams{
			Caller:         owner,
			Owner:          owner,
			ContentID:      "mri-2024.enc",
			Requester:      requester,
			ReencryptedKey: key,
		})
		require.NoError(t, err)
		return g
	}

	first := grant("rekey-v1")
	clock.Advance(time.Minute)
	require.NoError(t, l.Revoke(ctx, RevokeParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc", Requester: requester,
	}))
	clock.Advance(time.Minute)
	second := grant("rekey-v2")

	// Same address, rotated key, active again.
	assert.Equal(t, first.Addr, second.Addr)
	assert.Equal(t, "rekey-v2", second.ReencryptedKey)
	assert.True(t, second.IsActive)
	assert.Greater(t, second.GrantedAt, first.GrantedAt)
}

func TestGrantOverwriteRotatesKey(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()

	mustRegister(t, l, basicRegister())
	for _, key := range []string{"rekey-v1", "rekey-v2"} {
		_, err := l.Grant(ctx, GrantParams{
			Caller:         owner,
			Owner:          owner,
			ContentID:      "mri-2024.enc",
			Requester:      requester,
			ReencryptedKey: key,
		})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	stored, err := l.LookupGrant(ctx, owner, "mri-2024.enc", requester)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "rekey-v2", stored.ReencryptedKey)
}

func TestRevoke(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRegister(t, l, basicRegister())
	_, err := l.Grant(ctx, GrantParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc",
		Requester: requester, ReencryptedKey: "rekey-1",
	})
	require.NoError(t, err)

	params := RevokeParams{Caller: owner, Owner: owner, ContentID: "mri-2024.enc", Requester: requester}
	require.NoError(t, l.Revoke(ctx, params))

	// Retain policy: the grant row stays, inactive.
	stored, err := l.LookupGrant(ctx, owner, "mri-2024.enc", requester)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)

	// Second revoke finds an inactive grant.
	err = l.Revoke(ctx, params)
	assert.True(t, IsGrantNotActive(err), "got %v", err)
}

func TestRevokeUnknownGrant(t *testing.T) {
	l, _ := newTestLedger(t)

	mustRegister(t, l, basicRegister())
	err := l.Revoke(context.Background(), RevokeParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc", Requester: requester,
	})
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestRevokeForeignGrantRow(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	rec := mustRegister(t, l, basicRegister())

	// A grant row whose granter is not the record owner cannot be made
	// through the ledger; write one at the derived address directly.
	grantAddr, err := GrantAddress(rec.Addr, requester)
	require.NoError(t, err)
	tx, err := l.Store().Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, tx.UpsertGrant(ctx, model.AccessGrant{
		Addr:           grantAddr,
		RecordAddr:     rec.Addr,
		Requester:      requester,
		Granter:        outsider,
		ReencryptedKey: "rk-stale",
		GrantedAt:      1700000000,
		IsActive:       true,
		ReservedBytes:  store.GrantReservedBytes(),
		Payer:          outsider,
	}))
	require.NoError(t, tx.Commit())

	// The owner gate still fires first for non-owner callers.
	err = l.Revoke(ctx, RevokeParams{
		Caller: outsider, Owner: owner, ContentID: "mri-2024.enc", Requester: requester,
	})
	assert.True(t, IsUnauthorized(err), "got %v", err)

	// The owner's own revoke trips the granter-mismatch guard.
	err = l.Revoke(ctx, RevokeParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc", Requester: requester,
	})
	assert.Equal(t, ErrCodeInvalidGrantState, CodeOf(err), "got %v", err)

	// The stale row is left as it was.
	g, err := l.LookupGrant(ctx, owner, "mri-2024.enc", requester)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.True(t, g.IsActive)
}

func TestRevokeRequiresOwner(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRegister(t, l, basicRegister())
	_, err := l.Grant(ctx, GrantParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc",
		Requester: requester, ReencryptedKey: "rekey-1",
	})
	require.NoError(t, err)

	err = l.Revoke(ctx, RevokeParams{
		Caller: outsider, Owner: owner, ContentID: "mri-2024.enc", Requester: requester,
	})
	assert.True(t, IsUnauthorized(err), "got %v", err)

	// The requester cannot revoke their own grant either.
	err = l.Revoke(ctx, RevokeParams{
		Caller: requester, Owner: owner, ContentID: "mri-2024.enc", Requester: requester,
	})
	assert.True(t, IsUnauthorized(err), "got %v", err)
}

func TestCloseRetain(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRegister(t, l, basicRegister())
	params := CloseParams{Caller: owner, Owner: owner, ContentID: "mri-2024.enc"}
	require.NoError(t, l.Close(ctx, params))

	// Soft delete: still readable, inactive.
	stored, err := l.Record(ctx, owner, "mri-2024.enc")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)

	// Closing again finds the inactive record.
	err = l.Close(ctx, params)
	assert.True(t, IsRecordNotActive(err), "got %v", err)

	// No new grants against a closed record.
	_, err = l.Grant(ctx, GrantParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc",
		Requester: requester, ReencryptedKey: "rekey-1",
	})
	assert.True(t, IsRecordNotActive(err), "got %v", err)
}

func TestCloseRequiresOwner(t *testing.T) {
	l, _ := newTestLedger(t)

	mustRegister(t, l, basicRegister())
	err := l.Close(context.Background(), CloseParams{
		Caller: outsider, Owner: owner, ContentID: "mri-2024.enc",
	})
	assert.True(t, IsUnauthorized(err), "got %v", err)
}

func TestCloseUnknownRecord(t *testing.T) {
	l, _ := newTestLedger(t)

	err := l.Close(context.Background(), CloseParams{
		Caller: owner, Owner: owner, ContentID: "never.enc",
	})
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestCloseReclaim(t *testing.T) {
	l, _ := newTestLedger(t, store.WithDeletionPolicy(model.DeletionReclaim))
	ctx := context.Background()

	mustRegister(t, l, basicRegister())
	require.NoError(t, l.Close(ctx, CloseParams{Caller: owner, Owner: owner, ContentID: "mri-2024.enc"}))

	// Hard close: the row is gone and the allowance refunded.
	stored, err := l.Record(ctx, owner, "mri-2024.enc")
	require.NoError(t, err)
	assert.Nil(t, stored)

	balance, err := l.Store().RefundBalance(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, store.RecordReservedBytes(), balance)

	// The address is burned: re-registering is rejected by default.
	_, err = l.Register(ctx, basicRegister())
	assert.True(t, IsAlreadyExists(err), "got %v", err)
}

func TestCloseReclaimReregisterAllowed(t *testing.T) {
	l, _ := newTestLedger(t,
		store.WithDeletionPolicy(model.DeletionReclaim),
		store.WithReregisterPolicy(model.ReregisterAllow),
	)
	ctx := context.Background()

	mustRegister(t, l, basicRegister())
	require.NoError(t, l.Close(ctx, CloseParams{Caller: owner, Owner: owner, ContentID: "mri-2024.enc"}))

	p := basicRegister()
	p.EncryptedHash = "second-life"
	rec := mustRegister(t, l, p)
	assert.Equal(t, "second-life", rec.EncryptedHash)
	assert.True(t, rec.IsActive)
}

func TestRevokeReclaimRefundsGrant(t *testing.T) {
	l, _ := newTestLedger(t, store.WithDeletionPolicy(model.DeletionReclaim))
	ctx := context.Background()

	mustRegister(t, l, basicRegister())
	_, err := l.Grant(ctx, GrantParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc",
		Requester: requester, ReencryptedKey: "rekey-1",
	})
	require.NoError(t, err)

	require.NoError(t, l.Revoke(ctx, RevokeParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc", Requester: requester,
	}))

	// The row is gone; the grant address stays derivable for a re-grant.
	stored, err := l.LookupGrant(ctx, owner, "mri-2024.enc", requester)
	require.NoError(t, err)
	assert.Nil(t, stored)

	balance, err := l.Store().RefundBalance(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, store.GrantReservedBytes(), balance)

	_, err = l.Grant(ctx, GrantParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc",
		Requester: requester, ReencryptedKey: "rekey-2",
	})
	require.NoError(t, err)
}

func TestConsentLifecycleEvents(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()

	mustRegister(t, l, basicRegister())
	clock.Advance(time.Second)
	_, err := l.Grant(ctx, GrantParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc",
		Requester: requester, ReencryptedKey: "rekey-1",
	})
	require.NoError(t, err)
	clock.Advance(time.Second)
	require.NoError(t, l.Revoke(ctx, RevokeParams{
		Caller: owner, Owner: owner, ContentID: "mri-2024.enc", Requester: requester,
	}))
	clock.Advance(time.Second)
	require.NoError(t, l.Close(ctx, CloseParams{Caller: owner, Owner: owner, ContentID: "mri-2024.enc"}))

	// A rejected operation appends nothing.
	_, err = l.Register(ctx, basicRegister())
	assert.True(t, IsAlreadyExists(err))

	events, err := l.Store().EventsSince(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 4)

	kinds := make([]model.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.NotEmpty(t, ev.EventID)
		assert.NotEmpty(t, ev.OpToken)
	}
	assert.Equal(t, []model.EventKind{
		model.EventRecordRegistered,
		model.EventAccessGranted,
		model.EventAccessRevoked,
		model.EventRecordDeactivated,
	}, kinds)

	// Timestamps follow the clock; ordering authority is seq.
	assert.Equal(t, int64(1700000000), events[0].Timestamp)
	assert.Equal(t, int64(1700000003), events[3].Timestamp)
	assert.Equal(t, "retain", events[3].Policy)
}

func TestCloseReclaimEventKind(t *testing.T) {
	l, _ := newTestLedger(t, store.WithDeletionPolicy(model.DeletionReclaim))
	ctx := context.Background()

	mustRegister(t, l, basicRegister())
	require.NoError(t, l.Close(ctx, CloseParams{Caller: owner, Owner: owner, ContentID: "mri-2024.enc"}))

	events, err := l.Store().EventsSince(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventRecordClosed, events[1].Kind)
	assert.Equal(t, "reclaim", events[1].Policy)
}

func TestFixedGeneratorTokenOrder(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	l := New(st,
		WithClock(testutil.NewFixedClock(time.Unix(1700000000, 0).UTC())),
		WithTokenGenerator(NewFixedGenerator("op-reg", "ev-reg")),
	)

	mustRegister(t, l, basicRegister())
	events, err := st.EventsSince(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "op-reg", events[0].OpToken)
	assert.Equal(t, "ev-reg", events[0].EventID)
}

func TestAccessScenario(t *testing.T) {
	// Owner O shares a record with Q but not P, then withdraws Q's access.
	l, clock := newTestLedger(t)
	ctx := context.Background()
	o := testutil.DeterministicID("O")
	q := testutil.DeterministicID("Q")
	p := testutil.DeterministicID("P")

	_, err := l.Register(ctx, RegisterParams{
		Owner: o, ContentID: "r.enc", EncryptedHash: "h", FileName: "r.bin",
	})
	require.NoError(t, err)
	clock.Advance(time.Second)

	_, err = l.Grant(ctx, GrantParams{
		Caller: o, Owner: o, ContentID: "r.enc", Requester: q, ReencryptedKey: "rk-q",
	})
	require.NoError(t, err)

	// Q holds an active grant with its key material; P holds nothing.
	gq, err := l.LookupGrant(ctx, o, "r.enc", q)
	require.NoError(t, err)
	require.NotNil(t, gq)
	assert.True(t, gq.IsActive)
	assert.Equal(t, "rk-q", gq.ReencryptedKey)

	gp, err := l.LookupGrant(ctx, o, "r.enc", p)
	require.NoError(t, err)
	assert.Nil(t, gp)

	// P cannot mint themselves a grant.
	_, err = l.Grant(ctx, GrantParams{
		Caller: p, Owner: o, ContentID: "r.enc", Requester: p, ReencryptedKey: "rk-p",
	})
	assert.True(t, IsUnauthorized(err))

	// After revocation Q's grant is inert.
	clock.Advance(time.Second)
	require.NoError(t, l.Revoke(ctx, RevokeParams{
		Caller: o, Owner: o, ContentID: "r.enc", Requester: q,
	}))
	gq, err = l.LookupGrant(ctx, o, "r.enc", q)
	require.NoError(t, err)
	require.NotNil(t, gq)
	assert.False(t, gq.IsActive)
}

func TestConcurrentRegistersDistinctRecords(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := l.Register(ctx, RegisterParams{
				Owner:         owner,
				ContentID:     "cid-" + strings.Repeat("x", i+1),
				EncryptedHash: "h",
				FileName:      "f.bin",
			})
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}

	records, err := l.Store().ListRecordsByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, records, n)
}
