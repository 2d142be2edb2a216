package domain

import (
	"encoding/json"
	"time"
)

const (
	CredentialTypeBase        = "VerifiableCredential"
	CredentialTypeCommitment  = "CommitmentCredential"
	CredentialTypeAttestation = "AttestationCredential"

	ProofTypeEd25519   = "Ed25519Signature2020"
	ProofPurposeAssert = "assertionMethod"
)

var CredentialContexts = []string{
	"https://www.w3.org/2018/credentials/v1",
	"https://w3id.org/security/suites/ed25519-2020/v1",
}

type CredentialIssuerRef struct {
	ID string `json:"id"`
}

type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	ProofPurpose       string `json:"proofPurpose"`
	VerificationMethod string `json:"verificationMethod"`
	ProofValue         string `json:"proofValue"`
}

// VerifiableCredential is a write-once signed envelope. The proof covers the
// canonical serialization of every field except the proof itself; a new state
// requires a new credential, never a mutation.
type VerifiableCredential struct {
	Context           []string            `json:"@context"`
	ID                string              `json:"id"`
	Type              []string            `json:"type"`
	Issuer            CredentialIssuerRef `json:"issuer"`
	IssuanceDate      string              `json:"issuanceDate"`
	ExpirationDate    string              `json:"expirationDate,omitempty"`
	CredentialSubject json.RawMessage     `json:"credentialSubject"`
	Proof             *Proof              `json:"proof,omitempty"`
}

// CommitmentSubject is the payload of a CommitmentCredential. The subject id
// is the promiser's DID.
type CommitmentSubject struct {
	ID           string `json:"id"`
	CommitmentID string `json:"commitmentId"`
	Context      string `json:"context"`
	Task         string `json:"task"`
	Status       string `json:"status"`
	DelegatorDID string `json:"delegatorDid,omitempty"`
	Deadline     string `json:"deadline,omitempty"`
}

// AttestationSubject is the payload of an AttestationCredential. The subject
// id is the attester's DID.
type AttestationSubject struct {
	ID            string `json:"id"`
	AttestationID string `json:"attestationId"`
	CommitmentID  string `json:"commitmentId"`
	Fulfilled     bool   `json:"fulfilled"`
	Evidence      string `json:"evidence,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// Kind returns the distinguishing credential type tag, or "" when the type
// list carries none.
func (vc VerifiableCredential) Kind() string {
	for _, t := range vc.Type {
		if t == CredentialTypeCommitment || t == CredentialTypeAttestation {
			return t
		}
	}
	return ""
}

// CommitmentSubject decodes the subject as a commitment payload. The bool is
// false when the credential is not a CommitmentCredential.
func (vc VerifiableCredential) CommitmentSubject() (CommitmentSubject, bool) {
	if vc.Kind() != CredentialTypeCommitment {
		return CommitmentSubject{}, false
	}
	var s CommitmentSubject
	if err := json.Unmarshal(vc.CredentialSubject, &s); err != nil {
		return CommitmentSubject{}, false
	}
	return s, true
}

// AttestationSubject decodes the subject as an attestation payload. The bool
// is false when the credential is not an AttestationCredential.
func (vc VerifiableCredential) AttestationSubject() (AttestationSubject, bool) {
	if vc.Kind() != CredentialTypeAttestation {
		return AttestationSubject{}, false
	}
	var s AttestationSubject
	if err := json.Unmarshal(vc.CredentialSubject, &s); err != nil {
		return AttestationSubject{}, false
	}
	return s, true
}

// Expired reports whether the credential carries an expiration date in the
// past relative to now. A missing or malformed expiration date never expires
// a credential; malformed dates are a verification-time concern.
func (vc VerifiableCredential) Expired(now time.Time) bool {
	if vc.ExpirationDate == "" {
		return false
	}
	exp, err := time.Parse(time.RFC3339, vc.ExpirationDate)
	if err != nil {
		return false
	}
	return exp.Before(now)
}

// CredentialRecord is a stored issued credential, addressable by id. Payload
// holds the full credential JSON as issued.
type CredentialRecord struct {
	ID        string
	Kind      string
	IssuerDID string
	TargetID  string
	Payload   json.RawMessage
	IssuedAt  time.Time
}

// CredentialVerification is the outcome of verifying a presented credential.
// Failed verification is an expected result, not an exception: Err carries
// one of the crypto sentinel errors when Valid is false.
type CredentialVerification struct {
	Valid bool
	Err   error
}
