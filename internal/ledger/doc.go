// Package ledger implements the consent ledger's four public operations:
// register, grant, revoke, and close.
//
// ARCHITECTURE:
//
// Every operation is single-shot and atomic. The flow is always:
//
//  1. Validate field bounds (before anything else touches state)
//  2. Derive the entity addresses from the operation's coordinates
//  3. Acquire the record-address lock
//  4. In one store transaction: load entities, run guard checks,
//     mutate, append the domain event
//  5. Commit
//
// A failed guard check aborts the transaction: no partial writes, no
// event. Serialization is per record address; all grants are subordinate
// to their record, so the record lock also serializes grant mutations.
//
// There is no background work in this package: no timers, no retries, no
// queues. Retries belong to callers.
//
// CRITICAL PATTERNS:
//
// Deterministic addressing: entities are found by deriving their address
// from (namespace, seeds), never by allocated identifiers. Registration
// and later grant/revoke calls independently derive the same address from
// the same coordinates.
//
// Ownership gate: every mutation compares the verified caller identity
// against the stored owner field. There is no ambient authority and no
// co-ownership.
package ledger
