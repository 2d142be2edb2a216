package usecase

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vouchd/internal/domain"
)

// CredentialService issues and verifies the signed envelopes that wrap
// commitment and attestation payloads. Credentials are write-once: a new
// state means a new credential, never a mutation of an issued one.
type CredentialService struct {
	Identity IdentityService
	Codec    CredentialCodec
	Clock    Clock
	// Expiry, when positive, stamps an expirationDate that far past issuance.
	Expiry time.Duration
	NewID  func(kind string) string
}

func NewCredentialService(identity IdentityService, codec CredentialCodec, clock Clock) *CredentialService {
	return &CredentialService{
		Identity: identity,
		Codec:    codec,
		Clock:    clock,
	}
}

func (s *CredentialService) IssueCommitment(subject domain.CommitmentSubject, issuer domain.DIDKeyPair) (domain.VerifiableCredential, error) {
	if subject.CommitmentID == "" || subject.ID == "" {
		return domain.VerifiableCredential{}, fmt.Errorf("%w: commitment subject missing id fields", domain.ErrValidation)
	}
	raw, err := json.Marshal(subject)
	if err != nil {
		return domain.VerifiableCredential{}, err
	}
	return s.issue(domain.CredentialTypeCommitment, raw, issuer)
}

func (s *CredentialService) IssueAttestation(subject domain.AttestationSubject, issuer domain.DIDKeyPair) (domain.VerifiableCredential, error) {
	if subject.AttestationID == "" || subject.CommitmentID == "" || subject.ID == "" {
		return domain.VerifiableCredential{}, fmt.Errorf("%w: attestation subject missing id fields", domain.ErrValidation)
	}
	raw, err := json.Marshal(subject)
	if err != nil {
		return domain.VerifiableCredential{}, err
	}
	return s.issue(domain.CredentialTypeAttestation, raw, issuer)
}

func (s *CredentialService) issue(kind string, subject json.RawMessage, issuer domain.DIDKeyPair) (domain.VerifiableCredential, error) {
	if len(issuer.PrivateKey) != ed25519.PrivateKeySize {
		return domain.VerifiableCredential{}, fmt.Errorf("%w: issuer private key missing", domain.ErrValidation)
	}
	if _, ok := s.Identity.DIDToPublicKey(issuer.DID); !ok {
		return domain.VerifiableCredential{}, fmt.Errorf("%w: %s", domain.ErrUnresolvableIssuer, issuer.DID)
	}

	now := s.now().UTC()
	vc := domain.VerifiableCredential{
		Context:           domain.CredentialContexts,
		ID:                s.newID(kind),
		Type:              []string{domain.CredentialTypeBase, kind},
		Issuer:            domain.CredentialIssuerRef{ID: issuer.DID},
		IssuanceDate:      now.Format(time.RFC3339),
		CredentialSubject: subject,
	}
	if s.Expiry > 0 {
		vc.ExpirationDate = now.Add(s.Expiry).Format(time.RFC3339)
	}

	region, err := s.Codec.CanonicalSignedRegion(vc)
	if err != nil {
		return domain.VerifiableCredential{}, err
	}
	sig := s.Identity.Sign(issuer.PrivateKey, region)
	vc.Proof = &domain.Proof{
		Type:               domain.ProofTypeEd25519,
		Created:            vc.IssuanceDate,
		ProofPurpose:       domain.ProofPurposeAssert,
		VerificationMethod: issuer.DID + "#key-1",
		ProofValue:         base64.StdEncoding.EncodeToString(sig),
	}
	return vc, nil
}

// Verify checks a presented credential. A failed check is an expected
// outcome and comes back as a result, never as an error return: the Err
// field carries the sentinel describing which rule failed. Expiry is checked
// after, and independently of, signature validity.
func (s *CredentialService) Verify(vc domain.VerifiableCredential) domain.CredentialVerification {
	if vc.Proof == nil || vc.Proof.ProofValue == "" {
		return invalid(fmt.Errorf("%w: credential has no proof", domain.ErrValidation))
	}
	pub, ok := s.Identity.DIDToPublicKey(vc.Issuer.ID)
	if !ok {
		return invalid(fmt.Errorf("%w: %s", domain.ErrUnresolvableIssuer, vc.Issuer.ID))
	}
	region, err := s.Codec.CanonicalSignedRegion(vc)
	if err != nil {
		return invalid(fmt.Errorf("%w: %v", domain.ErrValidation, err))
	}
	sig, err := base64.StdEncoding.DecodeString(vc.Proof.ProofValue)
	if err != nil {
		return invalid(fmt.Errorf("%w: proof value is not base64", domain.ErrSignatureInvalid))
	}
	if !s.Identity.Verify(pub, region, sig) {
		return invalid(domain.ErrSignatureInvalid)
	}
	if vc.Expired(s.now()) {
		return invalid(domain.ErrCredentialExpired)
	}
	return domain.CredentialVerification{Valid: true}
}

func (s *CredentialService) newID(kind string) string {
	if s.NewID != nil {
		return s.NewID(kind)
	}
	tag := strings.TrimSuffix(strings.ToLower(kind), "credential")
	return "urn:vc:vouchd:" + tag + ":" + uuid.NewString()
}

func (s *CredentialService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func invalid(err error) domain.CredentialVerification {
	return domain.CredentialVerification{Valid: false, Err: err}
}
