package usecase

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"vouchd/internal/domain"
	"vouchd/internal/infra/credential"
	"vouchd/internal/infra/didkey"
)

func newCredentialFixture(t *testing.T) (*CredentialService, domain.DIDKeyPair) {
	t.Helper()
	identity := &didkey.Service{}
	kp, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := NewCredentialService(identity, &credential.Service{}, func() time.Time { return now })
	return svc, kp
}

func commitmentSubjectFixture(kp domain.DIDKeyPair) domain.CommitmentSubject {
	return domain.CommitmentSubject{
		ID:           kp.DID,
		CommitmentID: "cmt-1",
		Context:      "code-review",
		Task:         "review the storage layer PR",
		Status:       string(domain.StatusAccepted),
	}
}

func TestIssueCommitmentCredentialShape(t *testing.T) {
	svc, kp := newCredentialFixture(t)

	vc, err := svc.IssueCommitment(commitmentSubjectFixture(kp), kp)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if vc.Kind() != domain.CredentialTypeCommitment {
		t.Fatalf("kind = %q", vc.Kind())
	}
	if !strings.HasPrefix(vc.ID, "urn:vc:vouchd:") {
		t.Fatalf("id = %q", vc.ID)
	}
	if vc.Issuer.ID != kp.DID {
		t.Fatalf("issuer = %q", vc.Issuer.ID)
	}
	if vc.Proof == nil {
		t.Fatal("no proof")
	}
	if vc.Proof.Type != domain.ProofTypeEd25519 || vc.Proof.ProofPurpose != domain.ProofPurposeAssert {
		t.Fatalf("proof = %+v", vc.Proof)
	}
	if vc.Proof.VerificationMethod != kp.DID+"#key-1" {
		t.Fatalf("verification method = %q", vc.Proof.VerificationMethod)
	}
	if _, err := base64.StdEncoding.DecodeString(vc.Proof.ProofValue); err != nil {
		t.Fatalf("proof value not base64: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, vc.IssuanceDate); err != nil {
		t.Fatalf("issuance date: %v", err)
	}

	subject, ok := vc.CommitmentSubject()
	if !ok {
		t.Fatal("decode subject failed")
	}
	if subject.CommitmentID != "cmt-1" || subject.Context != "code-review" {
		t.Fatalf("subject = %+v", subject)
	}
}

func TestVerifyIssuedCredential(t *testing.T) {
	svc, kp := newCredentialFixture(t)
	vc, err := svc.IssueCommitment(commitmentSubjectFixture(kp), kp)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if res := svc.Verify(vc); !res.Valid {
		t.Fatalf("verify fresh credential: %v", res.Err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	svc, kp := newCredentialFixture(t)
	vc, err := svc.IssueCommitment(commitmentSubjectFixture(kp), kp)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tampered := vc
	tampered.CredentialSubject = json.RawMessage(strings.Replace(
		string(vc.CredentialSubject), "code-review", "translation", 1,
	))
	res := svc.Verify(tampered)
	if res.Valid || !errors.Is(res.Err, domain.ErrSignatureInvalid) {
		t.Fatalf("tampered subject: valid=%v err=%v", res.Valid, res.Err)
	}

	// Reordering subject keys is not tampering under canonical hashing.
	var subject map[string]any
	if err := json.Unmarshal(vc.CredentialSubject, &subject); err != nil {
		t.Fatalf("unmarshal subject: %v", err)
	}
	reordered, err := json.Marshal(subject)
	if err != nil {
		t.Fatalf("marshal subject: %v", err)
	}
	same := vc
	same.CredentialSubject = reordered
	if res := svc.Verify(same); !res.Valid {
		t.Fatalf("reordered subject rejected: %v", res.Err)
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	svc, kp := newCredentialFixture(t)
	other, err := (&didkey.Service{}).GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	vc, err := svc.IssueCommitment(commitmentSubjectFixture(kp), kp)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	vc.Issuer.ID = other.DID
	res := svc.Verify(vc)
	if res.Valid || !errors.Is(res.Err, domain.ErrSignatureInvalid) {
		t.Fatalf("wrong issuer: valid=%v err=%v", res.Valid, res.Err)
	}
}

func TestVerifyUnresolvableIssuer(t *testing.T) {
	svc, kp := newCredentialFixture(t)
	vc, err := svc.IssueCommitment(commitmentSubjectFixture(kp), kp)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	vc.Issuer.ID = "did:web:example.test"
	res := svc.Verify(vc)
	if res.Valid || !errors.Is(res.Err, domain.ErrUnresolvableIssuer) {
		t.Fatalf("unresolvable issuer: valid=%v err=%v", res.Valid, res.Err)
	}
}

func TestVerifyMissingProof(t *testing.T) {
	svc, kp := newCredentialFixture(t)
	vc, err := svc.IssueCommitment(commitmentSubjectFixture(kp), kp)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	vc.Proof = nil
	res := svc.Verify(vc)
	if res.Valid || !errors.Is(res.Err, domain.ErrValidation) {
		t.Fatalf("missing proof: valid=%v err=%v", res.Valid, res.Err)
	}
}

func TestVerifyExpiryIndependentOfSignature(t *testing.T) {
	identity := &didkey.Service{}
	kp, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	issued := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	now := issued
	svc := &CredentialService{
		Identity: identity,
		Codec:    &credential.Service{},
		Clock:    func() time.Time { return now },
		Expiry:   time.Hour,
	}

	vc, err := svc.IssueCommitment(commitmentSubjectFixture(kp), kp)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if vc.ExpirationDate == "" {
		t.Fatal("expected expirationDate")
	}
	if res := svc.Verify(vc); !res.Valid {
		t.Fatalf("fresh: %v", res.Err)
	}

	// A valid signature over an expired envelope is expired, not forged.
	now = issued.Add(2 * time.Hour)
	res := svc.Verify(vc)
	if res.Valid || !errors.Is(res.Err, domain.ErrCredentialExpired) {
		t.Fatalf("expired: valid=%v err=%v", res.Valid, res.Err)
	}

	// And a forged expired envelope reports the signature first.
	forged := vc
	forged.CredentialSubject = json.RawMessage(strings.Replace(
		string(vc.CredentialSubject), "cmt-1", "cmt-2", 1,
	))
	res = svc.Verify(forged)
	if res.Valid || !errors.Is(res.Err, domain.ErrSignatureInvalid) {
		t.Fatalf("forged+expired: valid=%v err=%v", res.Valid, res.Err)
	}
}

func TestIssueAttestationCredential(t *testing.T) {
	svc, kp := newCredentialFixture(t)
	vc, err := svc.IssueAttestation(domain.AttestationSubject{
		ID:            kp.DID,
		AttestationID: "att-1",
		CommitmentID:  "cmt-1",
		Fulfilled:     true,
		Comment:       "verified against the PR",
	}, kp)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if vc.Kind() != domain.CredentialTypeAttestation {
		t.Fatalf("kind = %q", vc.Kind())
	}
	subject, ok := vc.AttestationSubject()
	if !ok {
		t.Fatal("decode subject failed")
	}
	if !subject.Fulfilled || subject.AttestationID != "att-1" {
		t.Fatalf("subject = %+v", subject)
	}
	if res := svc.Verify(vc); !res.Valid {
		t.Fatalf("verify: %v", res.Err)
	}
}

func TestIssueRequiresSubjectIDs(t *testing.T) {
	svc, kp := newCredentialFixture(t)
	if _, err := svc.IssueCommitment(domain.CommitmentSubject{ID: kp.DID}, kp); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing commitment id: err = %v", err)
	}
	if _, err := svc.IssueAttestation(domain.AttestationSubject{ID: kp.DID, CommitmentID: "cmt-1"}, kp); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing attestation id: err = %v", err)
	}
}

func TestIssueRequiresPrivateKey(t *testing.T) {
	svc, kp := newCredentialFixture(t)
	bare := domain.DIDKeyPair{DID: kp.DID, PublicKey: kp.PublicKey}
	if _, err := svc.IssueCommitment(commitmentSubjectFixture(kp), bare); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing private key: err = %v", err)
	}
}
