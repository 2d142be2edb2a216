package usecase

import (
	"context"
	"crypto/ed25519"
	"time"

	"vouchd/internal/domain"
)

// Clock is the single source of "now" for everything the core stamps,
// injected so signing and timestamps stay deterministic under test.
type Clock func() time.Time

// IdentityService covers the did:key primitives the core needs. All
// operations are pure and safe to call concurrently.
type IdentityService interface {
	GenerateKeyPair() (domain.DIDKeyPair, error)
	PublicKeyToDID(pub ed25519.PublicKey) string
	DIDToPublicKey(did string) (ed25519.PublicKey, bool)
	Sign(priv ed25519.PrivateKey, message []byte) []byte
	Verify(pub ed25519.PublicKey, message, sig []byte) bool
}

// CredentialCodec produces the canonical byte region a credential proof
// signs.
type CredentialCodec interface {
	CanonicalSignedRegion(vc domain.VerifiableCredential) ([]byte, error)
}

// CommitmentRepository is row-by-row storage for commitments. No
// cross-call transactions are assumed; UpdateStatus carries the optimistic
// pre-state check that substitutes for row locking.
type CommitmentRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Commitment, error)
	Create(ctx context.Context, c domain.Commitment) error
	// UpdateStatus saves the full row only if the stored status still equals
	// expected; otherwise it reports domain.ErrStateConflict.
	UpdateStatus(ctx context.Context, c domain.Commitment, expected domain.CommitmentStatus) error
	// ListByPromiser returns all commitments the agent promised, optionally
	// narrowed to one context ("" matches every context).
	ListByPromiser(ctx context.Context, agentID, context string) ([]domain.Commitment, error)
	ListByDelegator(ctx context.Context, agentID, context string) ([]domain.Commitment, error)
}

type AttestationRepository interface {
	Create(ctx context.Context, a domain.Attestation) error
	ListByCommitment(ctx context.Context, commitmentID string) ([]domain.Attestation, error)
	// ExistsForPromiserContext reports whether attester has already judged
	// this promiser within this context, regardless of outcome.
	ExistsForPromiserContext(ctx context.Context, attesterID, promiserID, context string) (bool, error)
}

// AuditRepository is append-only; there is deliberately no update or delete.
// Append assigns the next sequence number and hash-chains the entry to its
// predecessor. ListChain returns the whole trail in sequence order for chain
// verification.
type AuditRepository interface {
	Append(ctx context.Context, e domain.AuditEntry) error
	List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, int64, error)
	ListChain(ctx context.Context) ([]domain.AuditEntry, error)
}

type CredentialRepository interface {
	Put(ctx context.Context, rec domain.CredentialRecord) error
	GetByID(ctx context.Context, id string) (*domain.CredentialRecord, error)
}

// KeyStore holds agent records and their key material. The core never
// persists private keys itself; it only reads them back through this port.
type KeyStore interface {
	Put(ctx context.Context, agent domain.Agent, kp domain.DIDKeyPair) error
	Get(ctx context.Context, agentID string) (*domain.DIDKeyPair, error)
	Resolve(ctx context.Context, agentID string) (*domain.Agent, error)
}

// ReputationCache is an optional read-through cache in front of the
// reputation engine. A nil cache means every read recomputes.
type ReputationCache interface {
	Get(ctx context.Context, key string) (*domain.ReputationStats, bool, error)
	Put(ctx context.Context, key string, stats domain.ReputationStats, ttl time.Duration) error
}

// TransitionPolicy is the optional operator policy hook evaluated before a
// lifecycle transition applies.
type TransitionPolicy interface {
	Evaluate(ctx context.Context, input domain.TransitionInput) (domain.PolicyDecision, error)
}
