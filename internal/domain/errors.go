package domain

import "errors"

var (
	ErrValidation           = errors.New("invalid input")
	ErrUnauthorizedActor    = errors.New("actor not permitted for this transition")
	ErrStateConflict        = errors.New("commitment status does not permit this transition")
	ErrNotFound             = errors.New("not found")
	ErrSelfAttestation      = errors.New("promiser cannot attest own fulfillment")
	ErrDuplicateAttestation = errors.New("attester has already judged this promiser in this context")
	ErrUnresolvableIssuer   = errors.New("issuer did is unresolvable")
	ErrSignatureInvalid     = errors.New("signature invalid")
	ErrCredentialExpired    = errors.New("credential expired")
	ErrPolicyDenied         = errors.New("transition denied by policy")
)
