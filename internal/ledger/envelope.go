package ledger

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/medicrypt/consentledger/internal/addr"
	"github.com/medicrypt/consentledger/internal/identity"
)

// OpKind names a mutating operation in a signed envelope.
type OpKind string

const (
	OpRegister OpKind = "register"
	OpGrant    OpKind = "grant"
	OpRevoke   OpKind = "revoke"
	OpClose    OpKind = "close"
)

// opDigestDomain separates operation digests from every other hash in the
// system.
const opDigestDomain = "consentledger/op/v1"

// Operation is the signed envelope a caller submits. The caller asserts
// their identity by signing the operation digest with the key behind
// Caller; Verify checks that binding before the ledger dispatches the
// operation. Requester is zero except for grant and revoke; Payload
// carries key material for register and grant, verbatim.
type Operation struct {
	Kind      OpKind
	Caller    identity.ID
	Owner     identity.ID
	ContentID string
	Requester identity.ID
	Payload   string
	Signature []byte
}

// Digest computes the canonical signing digest of the operation: SHA-256
// with domain separation and length-prefixed fields, the same framing the
// address deriver uses. The signature itself is not part of the digest.
func (o *Operation) Digest() [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(opDigestDomain))
	h.Write([]byte{0x00})
	var lenBuf [8]byte
	for _, field := range [][]byte{
		[]byte(o.Kind),
		o.Caller.Bytes(),
		o.Owner.Bytes(),
		addr.NormalizeString(o.ContentID),
		o.Requester.Bytes(),
		[]byte(o.Payload),
	} {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(field)))
		h.Write(lenBuf[:])
		h.Write(field)
	}
	var d [sha256.Size]byte
	copy(d[:], h.Sum(nil))
	return d
}

// Sign computes and attaches the caller's signature. The keypair must be
// the one behind o.Caller.
func (o *Operation) Sign(kp *identity.Keypair) {
	d := o.Digest()
	o.Signature = kp.Sign(d[:])
}

// Verify rejects with UNAUTHORIZED unless Signature is a valid signature
// by Caller over the operation digest.
func (o *Operation) Verify() error {
	d := o.Digest()
	if !identity.Verify(o.Caller, d[:], o.Signature) {
		return opErr(ErrCodeUnauthorized, "",
			"operation signature does not verify against caller %s", o.Caller)
	}
	return nil
}
