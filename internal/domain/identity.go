package domain

import (
	"crypto/ed25519"
	"time"
)

// DIDKeyPair is an agent's did:key identity. The DID is a deterministic
// encoding of the public key, so anyone holding the DID string can recover
// the verification key without a registry lookup.
type DIDKeyPair struct {
	DID        string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Seed returns the 32-byte private seed the key pair was derived from.
func (kp DIDKeyPair) Seed() []byte {
	if len(kp.PrivateKey) != ed25519.PrivateKeySize {
		return nil
	}
	return kp.PrivateKey.Seed()
}

// Agent is a registered protocol participant.
type Agent struct {
	ID        string
	DID       string
	Display   string
	PublicKey ed25519.PublicKey
	CreatedAt time.Time
}
