package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
)

// Keypair holds a signing key and its public identity. Used by the CLI to
// sign operations; the ledger core only ever sees the public ID.
type Keypair struct {
	ID   ID
	priv ed25519.PrivateKey
}

// Generate creates a new random keypair.
func Generate() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	id, err := FromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &Keypair{ID: id, priv: priv}, nil
}

// FromSeed derives a keypair from a 32-byte ed25519 seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length: expected %d, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	id, err := FromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Keypair{ID: id, priv: priv}, nil
}

// Sign returns the ed25519 signature over msg.
func (k *Keypair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// LoadKeyfile reads a keypair from a file containing the base58-encoded
// 32-byte ed25519 seed on a single line.
func LoadKeyfile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyfile: %w", err)
	}
	seed, err := base58.Decode(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode keyfile %s: %w", path, err)
	}
	kp, err := FromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("keyfile %s: %w", path, err)
	}
	return kp, nil
}

// SaveKeyfile writes the keypair seed to path with owner-only permissions.
func (k *Keypair) SaveKeyfile(path string) error {
	seed := k.priv.Seed()
	if err := os.WriteFile(path, []byte(base58.Encode(seed)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write keyfile: %w", err)
	}
	return nil
}
