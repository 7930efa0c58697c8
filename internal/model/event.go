package model

// EventKind identifies a domain event.
type EventKind string

const (
	// EventRecordRegistered fires once per successful registration.
	EventRecordRegistered EventKind = "RecordRegistered"
	// EventRecordDeactivated fires when a record is soft-deleted
	// under the retain policy.
	EventRecordDeactivated EventKind = "RecordDeactivated"
	// EventRecordClosed fires when a record is removed under the
	// reclaim policy.
	EventRecordClosed EventKind = "RecordClosed"
	// EventAccessGranted fires on grant creation and on refresh.
	EventAccessGranted EventKind = "AccessGranted"
	// EventAccessRevoked fires on revocation under either policy.
	EventAccessRevoked EventKind = "AccessRevoked"
)

// Event is one immutable entry in the append-only event log, the only feed
// intended for off-chain indexers. Seq is the ordering authority; EventID
// is a globally unique id; OpToken correlates the event with the operation
// that produced it.
//
// Payload fields are a flat snapshot of whatever the triggering operation
// touched; fields irrelevant to the kind are empty. Events carry no
// access-control semantics and are not a query interface.
type Event struct {
	Seq     int64     `json:"seq"`
	EventID string    `json:"event_id"`
	OpToken string    `json:"op_token"`
	Kind    EventKind `json:"kind"`

	RecordAddr    string `json:"record_addr"`
	GrantAddr     string `json:"grant_addr,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Granter       string `json:"granter,omitempty"`
	Requester     string `json:"requester,omitempty"`
	ContentID     string `json:"content_id,omitempty"`
	EncryptedHash string `json:"encrypted_hash,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	Policy        string `json:"policy,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}
