// Package didkey implements the did:key identity subsystem: Ed25519 key
// generation, the did:key textual encoding, and raw signing primitives.
package didkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"vouchd/internal/domain"
)

// didKeyPrefix is the textual did:key method prefix including the base58btc
// multibase marker 'z'.
const didKeyPrefix = "did:key:z"

// ed25519PubMulticodec is the multicodec prefix for an Ed25519 public key.
var ed25519PubMulticodec = []byte{0xed, 0x01}

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// GenerateKeyPair produces a fresh Ed25519 identity and its did:key form.
// It fails only when the entropy source does.
func (s *Service) GenerateKeyPair() (domain.DIDKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.DIDKeyPair{}, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return domain.DIDKeyPair{
		DID:        s.PublicKeyToDID(pub),
		PublicKey:  pub,
		PrivateKey: priv,
	}, nil
}

// KeyPairFromSeed derives the deterministic key pair for a 32-byte seed.
func (s *Service) KeyPairFromSeed(seed []byte) (domain.DIDKeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return domain.DIDKeyPair{}, fmt.Errorf("%w: seed must be %d bytes", domain.ErrValidation, ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return domain.DIDKeyPair{
		DID:        s.PublicKeyToDID(pub),
		PublicKey:  pub,
		PrivateKey: priv,
	}, nil
}

// PublicKeyToDID encodes did:key:z<base58btc(0xed 0x01 || pub)>.
func (s *Service) PublicKeyToDID(pub ed25519.PublicKey) string {
	payload := make([]byte, 0, len(ed25519PubMulticodec)+len(pub))
	payload = append(payload, ed25519PubMulticodec...)
	payload = append(payload, pub...)
	return didKeyPrefix + base58.Encode(payload)
}

// DIDToPublicKey recovers the public key embedded in a did:key string. The
// bool is false for any malformed input; callers must treat that as an
// unresolvable identity, never as a valid empty key.
func (s *Service) DIDToPublicKey(did string) (ed25519.PublicKey, bool) {
	if !strings.HasPrefix(did, didKeyPrefix) {
		return nil, false
	}
	decoded, err := base58.Decode(strings.TrimPrefix(did, didKeyPrefix))
	if err != nil {
		return nil, false
	}
	if len(decoded) != len(ed25519PubMulticodec)+ed25519.PublicKeySize {
		return nil, false
	}
	if decoded[0] != ed25519PubMulticodec[0] || decoded[1] != ed25519PubMulticodec[1] {
		return nil, false
	}
	return ed25519.PublicKey(decoded[2:]), true
}

// Sign signs raw bytes. Canonicalizing structured payloads is the caller's
// job; nothing at this layer inspects the message.
func (s *Service) Sign(priv ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(priv, message)
}

func (s *Service) Verify(pub ed25519.PublicKey, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}

// Base58Encode and Base58Decode expose the underlying codec. Leading zero
// bytes round-trip as leading '1' characters.
func Base58Encode(b []byte) string {
	return base58.Encode(b)
}

func Base58Decode(s string) ([]byte, error) {
	return base58.Decode(s)
}
