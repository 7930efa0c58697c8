// Package store provides SQLite-backed durable storage for the consent
// ledger: record metadata, access grants, tombstones, storage refunds, and
// the append-only domain event log.
//
// # Atomicity
//
// Every ledger operation runs inside a single Tx: guard reads, the
// mutation, and the event append commit together or not at all. A failed
// operation leaves no partial writes and no event.
//
// # Deletion policies
//
// The store is configured with a DeletionPolicy at Open time:
//   - retain: close and revoke flip is_active to 0; rows stay readable for
//     audit history.
//   - reclaim: close and revoke delete the row, credit the row's reserved
//     storage allowance back to its payer in the refunds table, and (for
//     records) burn the address in the tombstones table.
//
// The ReregisterPolicy decides whether a tombstoned record address may be
// re-created; the default "disallow" keeps AlreadyExists permanent.
//
// # Ordering
//
// The event log is ordered by seq (AUTOINCREMENT). All event queries order
// by seq ASC; wall-clock timestamps are payload, never ordering.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - single writer connection (SetMaxOpenConns(1))
package store
