package ledger

import (
	"sync"

	"github.com/medicrypt/consentledger/internal/addr"
)

// addrLocks serializes operations per record address. All grants are
// subordinate to their record, so holding the record lock also serializes
// grant mutations for that record (coarser than the per-grant minimum the
// data model permits, and simpler).
//
// Locks are created on first use and never released back; the set of live
// record addresses in one process is small.
type addrLocks struct {
	mu    sync.Mutex
	locks map[addr.Address]*sync.Mutex
}

func newAddrLocks() *addrLocks {
	return &addrLocks{locks: make(map[addr.Address]*sync.Mutex)}
}

// lock acquires the mutex for a, creating it if needed, and returns the
// unlock function.
func (l *addrLocks) lock(a addr.Address) func() {
	l.mu.Lock()
	m, ok := l.locks[a]
	if !ok {
		m = &sync.Mutex{}
		l.locks[a] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
