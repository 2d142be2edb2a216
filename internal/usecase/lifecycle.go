package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vouchd/internal/domain"
)

// DefaultContext is the reputation context assigned when a commitment is
// created without one.
const DefaultContext = "general"

// CommitmentLifecycle owns the commitment state machine. Every transition
// validates the acting party and the current status, applies the new status
// through an optimistic per-row check, and appends an audit entry whether the
// attempt succeeded or not. Credentials, Keys, CredentialStore and Policy are
// optional collaborators; a nil value disables receipts or the policy hook.
type CommitmentLifecycle struct {
	Commitments     CommitmentRepository
	Attestations    AttestationRepository
	Audit           *AuditEmitter
	Credentials     *CredentialService
	CredentialStore CredentialRepository
	Keys            KeyStore
	Policy          TransitionPolicy
	Clock           Clock
	NewID           func() string
}

type CreateCommitmentRequest struct {
	PromiserID  string
	DelegatorID string
	Context     string
	Task        string
	Deadline    *time.Time
}

type VerifyCommitmentRequest struct {
	CommitmentID string
	ActorID      string
	Fulfilled    bool
	Evidence     string
	Comment      string
}

// Create registers a new commitment. A delegator-initiated request starts in
// PENDING_ACCEPT; a self-commitment has nobody to accept on the promiser's
// behalf and starts directly in ACCEPTED.
func (l *CommitmentLifecycle) Create(ctx context.Context, req CreateCommitmentRequest) (*domain.Commitment, error) {
	if req.PromiserID == "" {
		return nil, fmt.Errorf("%w: promiserId is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Task) == "" {
		return nil, fmt.Errorf("%w: task is required", domain.ErrValidation)
	}
	cctx := req.Context
	if cctx == "" {
		cctx = DefaultContext
	}
	status := domain.StatusPendingAccept
	if req.DelegatorID == "" {
		status = domain.StatusAccepted
	}

	now := l.now().UTC()
	c := domain.Commitment{
		ID:          l.newID(),
		PromiserID:  req.PromiserID,
		DelegatorID: req.DelegatorID,
		Context:     cctx,
		Task:        req.Task,
		Deadline:    req.Deadline,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.Commitments.Create(ctx, c); err != nil {
		return nil, err
	}
	l.audit(ctx, domain.AuditActionCreateCommitment, req.PromiserID, c.ID, "", c.Status, domain.AuditResultSuccess, "", map[string]any{
		"delegator_id": req.DelegatorID,
		"context":      cctx,
	})
	return &c, nil
}

// Get returns one commitment by id.
func (l *CommitmentLifecycle) Get(ctx context.Context, id string) (*domain.Commitment, error) {
	return l.load(ctx, id)
}

// Accept moves PENDING_ACCEPT to ACCEPTED. Only the promiser may accept.
func (l *CommitmentLifecycle) Accept(ctx context.Context, commitmentID, actorID string) (*domain.Commitment, error) {
	c, err := l.load(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	if actorID != c.PromiserID {
		return nil, l.deny(ctx, domain.AuditActionAccept, actorID, c, fmt.Errorf("%w: only the promiser may accept", domain.ErrUnauthorizedActor))
	}
	if c.Status != domain.StatusPendingAccept {
		return nil, l.deny(ctx, domain.AuditActionAccept, actorID, c, fmt.Errorf("%w: cannot accept from %s", domain.ErrStateConflict, c.Status))
	}
	if err := l.policyCheck(ctx, domain.AuditActionAccept, actorID, *c, nil, ""); err != nil {
		return nil, l.deny(ctx, domain.AuditActionAccept, actorID, c, err)
	}

	from := c.Status
	c.Status = domain.StatusAccepted
	c.UpdatedAt = l.now().UTC()
	if vcID := l.commitmentReceipt(ctx, *c, c.PromiserID); vcID != "" {
		c.CredentialID = vcID
	}
	if err := l.Commitments.UpdateStatus(ctx, *c, from); err != nil {
		return nil, l.deny(ctx, domain.AuditActionAccept, actorID, c, err)
	}
	l.audit(ctx, domain.AuditActionAccept, actorID, c.ID, from, c.Status, domain.AuditResultSuccess, "", nil)
	return c, nil
}

// Reject moves PENDING_ACCEPT to the terminal REJECTED. Only the promiser
// may reject, mirroring Accept.
func (l *CommitmentLifecycle) Reject(ctx context.Context, commitmentID, actorID, reason string) (*domain.Commitment, error) {
	c, err := l.load(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	if actorID != c.PromiserID {
		return nil, l.deny(ctx, domain.AuditActionReject, actorID, c, fmt.Errorf("%w: only the promiser may reject", domain.ErrUnauthorizedActor))
	}
	if c.Status != domain.StatusPendingAccept {
		return nil, l.deny(ctx, domain.AuditActionReject, actorID, c, fmt.Errorf("%w: cannot reject from %s", domain.ErrStateConflict, c.Status))
	}
	if err := l.policyCheck(ctx, domain.AuditActionReject, actorID, *c, nil, ""); err != nil {
		return nil, l.deny(ctx, domain.AuditActionReject, actorID, c, err)
	}

	from := c.Status
	c.Status = domain.StatusRejected
	c.UpdatedAt = l.now().UTC()
	if err := l.Commitments.UpdateStatus(ctx, *c, from); err != nil {
		return nil, l.deny(ctx, domain.AuditActionReject, actorID, c, err)
	}
	l.audit(ctx, domain.AuditActionReject, actorID, c.ID, from, c.Status, domain.AuditResultSuccess, "", map[string]any{"reason": reason})
	return c, nil
}

// SubmitEvidence stores the promiser's proof of performance and moves the
// commitment to PENDING. Resubmission after a request for more evidence is
// allowed, so both ACCEPTED and PENDING are valid pre-states.
func (l *CommitmentLifecycle) SubmitEvidence(ctx context.Context, commitmentID, actorID, evidence string) (*domain.Commitment, error) {
	if strings.TrimSpace(evidence) == "" {
		return nil, fmt.Errorf("%w: evidence is required", domain.ErrValidation)
	}
	c, err := l.load(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	if actorID != c.PromiserID {
		return nil, l.deny(ctx, domain.AuditActionSubmitEvidence, actorID, c, fmt.Errorf("%w: only the promiser may submit evidence", domain.ErrUnauthorizedActor))
	}
	if c.Status != domain.StatusAccepted && c.Status != domain.StatusPending {
		return nil, l.deny(ctx, domain.AuditActionSubmitEvidence, actorID, c, fmt.Errorf("%w: cannot submit evidence from %s", domain.ErrStateConflict, c.Status))
	}
	if err := l.policyCheck(ctx, domain.AuditActionSubmitEvidence, actorID, *c, nil, evidence); err != nil {
		return nil, l.deny(ctx, domain.AuditActionSubmitEvidence, actorID, c, err)
	}

	from := c.Status
	c.Status = domain.StatusPending
	c.Evidence = evidence
	c.UpdatedAt = l.now().UTC()
	if err := l.Commitments.UpdateStatus(ctx, *c, from); err != nil {
		return nil, l.deny(ctx, domain.AuditActionSubmitEvidence, actorID, c, err)
	}
	l.audit(ctx, domain.AuditActionSubmitEvidence, actorID, c.ID, from, c.Status, domain.AuditResultSuccess, "", map[string]any{"evidence": evidence})
	return c, nil
}

// Verify records a counterparty judgment and settles the commitment to
// FULFILLED or FAILED. Two anti-gaming rules gate it: a promiser can never
// attest their own success, and an attester gets exactly one judgment per
// promiser per context. An attestation row is recorded for either outcome.
func (l *CommitmentLifecycle) Verify(ctx context.Context, req VerifyCommitmentRequest) (*domain.Commitment, *domain.Attestation, error) {
	c, err := l.load(ctx, req.CommitmentID)
	if err != nil {
		return nil, nil, err
	}
	if c.Status != domain.StatusPending {
		return nil, nil, l.deny(ctx, domain.AuditActionVerify, req.ActorID, c, fmt.Errorf("%w: cannot verify from %s", domain.ErrStateConflict, c.Status))
	}
	if req.ActorID == c.PromiserID && req.Fulfilled {
		return nil, nil, l.deny(ctx, domain.AuditActionVerify, req.ActorID, c, domain.ErrSelfAttestation)
	}
	exists, err := l.Attestations.ExistsForPromiserContext(ctx, req.ActorID, c.PromiserID, c.Context)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, l.deny(ctx, domain.AuditActionVerify, req.ActorID, c, domain.ErrDuplicateAttestation)
	}
	fulfilled := req.Fulfilled
	if err := l.policyCheck(ctx, domain.AuditActionVerify, req.ActorID, *c, &fulfilled, req.Evidence); err != nil {
		return nil, nil, l.deny(ctx, domain.AuditActionVerify, req.ActorID, c, err)
	}

	now := l.now().UTC()
	att := domain.Attestation{
		ID:           l.newID(),
		CommitmentID: c.ID,
		AttesterID:   req.ActorID,
		Fulfilled:    req.Fulfilled,
		Evidence:     req.Evidence,
		Comment:      req.Comment,
		CreatedAt:    now,
	}

	from := c.Status
	if req.Fulfilled {
		c.Status = domain.StatusFulfilled
	} else {
		c.Status = domain.StatusFailed
	}
	c.UpdatedAt = now
	if vcID := l.attestationReceipt(ctx, att, req.ActorID); vcID != "" {
		c.CredentialID = vcID
	}

	// The guarded status write is the serialization point for racing
	// verifies; only the winner records its attestation.
	if err := l.Commitments.UpdateStatus(ctx, *c, from); err != nil {
		return nil, nil, l.deny(ctx, domain.AuditActionVerify, req.ActorID, c, err)
	}
	if err := l.Attestations.Create(ctx, att); err != nil {
		// The status already settled; record that the judgment row is
		// missing so the trail explains the gap.
		l.audit(ctx, domain.AuditActionVerify, req.ActorID, c.ID, from, c.Status, domain.AuditResultFailure, "attestation_not_recorded", map[string]any{
			"fulfilled":      req.Fulfilled,
			"attestation_id": att.ID,
		})
		return nil, nil, err
	}
	l.audit(ctx, domain.AuditActionVerify, req.ActorID, c.ID, from, c.Status, domain.AuditResultSuccess, "", map[string]any{
		"fulfilled":      req.Fulfilled,
		"attestation_id": att.ID,
		"comment":        req.Comment,
	})
	return c, &att, nil
}

// RequestMore sends a PENDING commitment back to ACCEPTED so the promiser
// can submit better evidence. It is a "send it back", not a judgment: no
// attestation is recorded and the one-judgment rule is not consumed.
func (l *CommitmentLifecycle) RequestMore(ctx context.Context, commitmentID, actorID, comment string) (*domain.Commitment, error) {
	c, err := l.load(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.StatusPending {
		return nil, l.deny(ctx, domain.AuditActionRequestMore, actorID, c, fmt.Errorf("%w: cannot request more evidence from %s", domain.ErrStateConflict, c.Status))
	}
	if actorID == c.PromiserID {
		return nil, l.deny(ctx, domain.AuditActionRequestMore, actorID, c, fmt.Errorf("%w: promiser cannot review own evidence", domain.ErrUnauthorizedActor))
	}
	if c.DelegatorID != "" && actorID != c.DelegatorID {
		return nil, l.deny(ctx, domain.AuditActionRequestMore, actorID, c, fmt.Errorf("%w: only the delegator may request more evidence", domain.ErrUnauthorizedActor))
	}
	if err := l.policyCheck(ctx, domain.AuditActionRequestMore, actorID, *c, nil, ""); err != nil {
		return nil, l.deny(ctx, domain.AuditActionRequestMore, actorID, c, err)
	}

	from := c.Status
	c.Status = domain.StatusAccepted
	c.UpdatedAt = l.now().UTC()
	if err := l.Commitments.UpdateStatus(ctx, *c, from); err != nil {
		return nil, l.deny(ctx, domain.AuditActionRequestMore, actorID, c, err)
	}
	l.audit(ctx, domain.AuditActionRequestMore, actorID, c.ID, from, c.Status, domain.AuditResultSuccess, "", map[string]any{"comment": comment})
	return c, nil
}

// Cancel moves any non-terminal commitment to the terminal CANCELLED.
// Either party may cancel. The row stays forever; cancellation is a status,
// not a deletion.
func (l *CommitmentLifecycle) Cancel(ctx context.Context, commitmentID, actorID, reason string) (*domain.Commitment, error) {
	c, err := l.load(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	if actorID != c.PromiserID && (c.DelegatorID == "" || actorID != c.DelegatorID) {
		return nil, l.deny(ctx, domain.AuditActionCancel, actorID, c, fmt.Errorf("%w: only a party to the commitment may cancel", domain.ErrUnauthorizedActor))
	}
	if c.Status.Terminal() {
		return nil, l.deny(ctx, domain.AuditActionCancel, actorID, c, fmt.Errorf("%w: cannot cancel from %s", domain.ErrStateConflict, c.Status))
	}
	if err := l.policyCheck(ctx, domain.AuditActionCancel, actorID, *c, nil, ""); err != nil {
		return nil, l.deny(ctx, domain.AuditActionCancel, actorID, c, err)
	}

	from := c.Status
	c.Status = domain.StatusCancelled
	c.UpdatedAt = l.now().UTC()
	if err := l.Commitments.UpdateStatus(ctx, *c, from); err != nil {
		return nil, l.deny(ctx, domain.AuditActionCancel, actorID, c, err)
	}
	l.audit(ctx, domain.AuditActionCancel, actorID, c.ID, from, c.Status, domain.AuditResultSuccess, "", map[string]any{"reason": reason})
	return c, nil
}

// ListByParty returns commitments where the agent is promiser or delegator.
func (l *CommitmentLifecycle) ListByParty(ctx context.Context, agentID, role, context string) ([]domain.Commitment, error) {
	switch role {
	case "", "promiser":
		return l.Commitments.ListByPromiser(ctx, agentID, context)
	case "delegator":
		return l.Commitments.ListByDelegator(ctx, agentID, context)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
}

// Attestations lists the recorded judgments for a commitment.
func (l *CommitmentLifecycle) ListAttestations(ctx context.Context, commitmentID string) ([]domain.Attestation, error) {
	if commitmentID == "" {
		return nil, fmt.Errorf("%w: commitment id is required", domain.ErrValidation)
	}
	return l.Attestations.ListByCommitment(ctx, commitmentID)
}

func (l *CommitmentLifecycle) load(ctx context.Context, id string) (*domain.Commitment, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: commitment id is required", domain.ErrValidation)
	}
	return l.Commitments.FindByID(ctx, id)
}

// deny audits a rejected transition attempt and passes the error through.
// Silent no-ops are forbidden: every attempt lands in the trail with the
// rule that blocked it.
func (l *CommitmentLifecycle) deny(ctx context.Context, action domain.AuditAction, actorID string, c *domain.Commitment, err error) error {
	l.audit(ctx, action, actorID, c.ID, c.Status, c.Status, domain.AuditResultFailure, errorCode(err), nil)
	return err
}

func (l *CommitmentLifecycle) audit(ctx context.Context, action domain.AuditAction, actorID, commitmentID string, from, to domain.CommitmentStatus, result domain.AuditResult, errorCode string, payload map[string]any) {
	if l.Audit == nil {
		return
	}
	_ = l.Audit.EmitTransition(ctx, action, actorID, commitmentID, from, to, result, errorCode, payload)
}

func (l *CommitmentLifecycle) policyCheck(ctx context.Context, action domain.AuditAction, actorID string, c domain.Commitment, fulfilled *bool, evidence string) error {
	if l.Policy == nil {
		return nil
	}
	decision, err := l.Policy.Evaluate(ctx, domain.TransitionInput{
		Action:     action,
		ActorID:    actorID,
		Commitment: c,
		Fulfilled:  fulfilled,
		Evidence:   evidence,
	})
	if err != nil {
		return err
	}
	if decision.Allow {
		return nil
	}
	reasons := make([]string, 0, len(decision.Deny))
	for _, r := range decision.Deny {
		reasons = append(reasons, r.Code)
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "denied")
	}
	return fmt.Errorf("%w: %s", domain.ErrPolicyDenied, strings.Join(reasons, ", "))
}

// commitmentReceipt issues a signed commitment credential as a transition
// receipt when the signer has stored key material. Best effort: the audit
// row, not the credential, is the source of truth, so issuance failure never
// rolls back a transition.
func (l *CommitmentLifecycle) commitmentReceipt(ctx context.Context, c domain.Commitment, signerAgentID string) string {
	kp := l.signerKey(ctx, signerAgentID)
	if kp == nil {
		return ""
	}
	subject := domain.CommitmentSubject{
		ID:           kp.DID,
		CommitmentID: c.ID,
		Context:      c.Context,
		Task:         c.Task,
		Status:       string(c.Status),
	}
	if c.Deadline != nil {
		subject.Deadline = c.Deadline.UTC().Format(time.RFC3339)
	}
	vc, err := l.Credentials.IssueCommitment(subject, *kp)
	if err != nil {
		return ""
	}
	return l.storeReceipt(ctx, vc, c.ID)
}

func (l *CommitmentLifecycle) attestationReceipt(ctx context.Context, att domain.Attestation, signerAgentID string) string {
	kp := l.signerKey(ctx, signerAgentID)
	if kp == nil {
		return ""
	}
	subject := domain.AttestationSubject{
		ID:            kp.DID,
		AttestationID: att.ID,
		CommitmentID:  att.CommitmentID,
		Fulfilled:     att.Fulfilled,
		Evidence:      att.Evidence,
		Comment:       att.Comment,
	}
	vc, err := l.Credentials.IssueAttestation(subject, *kp)
	if err != nil {
		return ""
	}
	return l.storeReceipt(ctx, vc, att.CommitmentID)
}

func (l *CommitmentLifecycle) signerKey(ctx context.Context, agentID string) *domain.DIDKeyPair {
	if l.Credentials == nil || l.Keys == nil || agentID == "" {
		return nil
	}
	kp, err := l.Keys.Get(ctx, agentID)
	if err != nil || kp == nil {
		return nil
	}
	return kp
}

func (l *CommitmentLifecycle) storeReceipt(ctx context.Context, vc domain.VerifiableCredential, targetID string) string {
	if l.CredentialStore != nil {
		payload, err := json.Marshal(vc)
		if err != nil {
			return ""
		}
		rec := domain.CredentialRecord{
			ID:        vc.ID,
			Kind:      vc.Kind(),
			IssuerDID: vc.Issuer.ID,
			TargetID:  targetID,
			Payload:   payload,
			IssuedAt:  l.now().UTC(),
		}
		if err := l.CredentialStore.Put(ctx, rec); err != nil {
			return ""
		}
	}
	return vc.ID
}

// errorCode flattens a sentinel error into the short code stored on the
// audit row.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorizedActor):
		return "unauthorized_actor"
	case errors.Is(err, domain.ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, domain.ErrSelfAttestation):
		return "self_attestation"
	case errors.Is(err, domain.ErrDuplicateAttestation):
		return "duplicate_attestation"
	case errors.Is(err, domain.ErrPolicyDenied):
		return "policy_denied"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}

func (l *CommitmentLifecycle) newID() string {
	if l.NewID != nil {
		return l.NewID()
	}
	return uuid.NewString()
}

func (l *CommitmentLifecycle) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}
