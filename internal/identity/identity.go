// Package identity defines the caller identities the ledger authorizes
// against. An identity is an ed25519 public key rendered in base58; every
// mutating operation carries one, verified by signature at the boundary.
// No ambient authority exists: the ledger only ever compares a verified
// caller identity against a stored owner field.
package identity

import (
	"crypto/ed25519"
	"crypto/subtle"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size is the byte length of an identity (an ed25519 public key).
const Size = ed25519.PublicKeySize

// ID is a caller identity.
type ID [Size]byte

// Parse decodes a base58 identity string.
func Parse(s string) (ID, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return ID{}, fmt.Errorf("decode identity: %w", err)
	}
	if len(decoded) != Size {
		return ID{}, fmt.Errorf("invalid identity length: expected %d, got %d", Size, len(decoded))
	}
	var id ID
	copy(id[:], decoded)
	return id, nil
}

// FromPublicKey converts an ed25519 public key to an ID.
func FromPublicKey(pub ed25519.PublicKey) (ID, error) {
	if len(pub) != Size {
		return ID{}, fmt.Errorf("invalid public key length: expected %d, got %d", Size, len(pub))
	}
	var id ID
	copy(id[:], pub)
	return id, nil
}

// Bytes returns a copy of the identity bytes.
func (id ID) Bytes() []byte {
	b := make([]byte, len(id))
	copy(b, id[:])
	return b
}

// String returns the base58 rendering of the identity.
func (id ID) String() string {
	return base58.Encode(id[:])
}

// Equal reports whether two identities are the same key.
// Constant-time to keep comparison timing independent of the inputs.
func (id ID) Equal(other ID) bool {
	return subtle.ConstantTimeCompare(id[:], other[:]) == 1
}

// IsZero reports whether the identity is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Verify reports whether sig is a valid signature by id over msg.
func Verify(id ID, msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(id[:]), msg, sig)
}
