package testutil

import (
	"crypto/sha256"

	"github.com/medicrypt/consentledger/internal/identity"
)

// DeterministicID derives a stable test identity from a name. The same
// name always yields the same identity, so scenario files and golden
// traces can reference identities symbolically.
func DeterministicID(name string) identity.ID {
	return DeterministicKeypair(name).ID
}

// DeterministicKeypair derives a stable signing keypair from a name by
// using the SHA-256 of the name as the ed25519 seed. Test-only: real
// deployments generate random keys.
func DeterministicKeypair(name string) *identity.Keypair {
	seed := sha256.Sum256([]byte("consentledger/testid/" + name))
	kp, err := identity.FromSeed(seed[:])
	if err != nil {
		panic(err) // cannot happen: seed size is fixed
	}
	return kp
}
