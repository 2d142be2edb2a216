// Package credential serializes verifiable credentials into the canonical
// byte region that proofs sign.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"vouchd/internal/domain"
)

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// CanonicalSignedRegion serializes the fields a credential proof covers:
// everything except the proof block itself. Issuance and verification both
// go through here, so a credential whose subject was reordered or reformatted
// in transit still verifies, and a credential whose subject was altered does
// not.
func (s *Service) CanonicalSignedRegion(vc domain.VerifiableCredential) ([]byte, error) {
	if vc.ID == "" {
		return nil, fmt.Errorf("%w: credential id is required", domain.ErrValidation)
	}
	if len(vc.CredentialSubject) == 0 {
		return nil, fmt.Errorf("%w: credential subject is required", domain.ErrValidation)
	}
	subject, err := decodeValue(vc.CredentialSubject)
	if err != nil {
		return nil, fmt.Errorf("credential subject: %w", err)
	}

	contexts := make([]any, 0, len(vc.Context))
	for _, c := range vc.Context {
		contexts = append(contexts, c)
	}
	types := make([]any, 0, len(vc.Type))
	for _, t := range vc.Type {
		types = append(types, t)
	}

	region := map[string]any{
		"@context":          contexts,
		"id":                vc.ID,
		"type":              types,
		"issuer":            map[string]any{"id": vc.Issuer.ID},
		"issuanceDate":      vc.IssuanceDate,
		"credentialSubject": subject,
	}
	if vc.ExpirationDate != "" {
		region["expirationDate"] = vc.ExpirationDate
	}
	return CanonicalizeAny(region)
}

// ParseCredential decodes a credential presented as JSON, rejecting trailing
// garbage and envelopes with no subject.
func ParseCredential(raw []byte) (domain.VerifiableCredential, error) {
	var vc domain.VerifiableCredential
	if err := strictUnmarshal(raw, &vc); err != nil {
		return domain.VerifiableCredential{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if vc.ID == "" || len(vc.CredentialSubject) == 0 {
		return domain.VerifiableCredential{}, fmt.Errorf("%w: credential missing id or subject", domain.ErrValidation)
	}
	return vc, nil
}

func strictUnmarshal(raw []byte, v any) error {
	if len(raw) == 0 {
		return errors.New("empty document")
	}
	if _, err := decodeValue(raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
