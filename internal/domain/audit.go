package domain

import "time"

type AuditAction string

const (
	AuditActionCreateCommitment AuditAction = "create_commitment"
	AuditActionAccept           AuditAction = "accept_commitment"
	AuditActionReject           AuditAction = "reject_commitment"
	AuditActionSubmitEvidence   AuditAction = "submit_evidence"
	AuditActionVerify           AuditAction = "verify_commitment"
	AuditActionRequestMore      AuditAction = "request_more_evidence"
	AuditActionCancel           AuditAction = "cancel_commitment"
	AuditActionRegisterAgent    AuditAction = "register_agent"
	AuditActionIssueCredential  AuditAction = "issue_credential"
)

type AuditTargetType string

const (
	AuditTargetCommitment  AuditTargetType = "commitment"
	AuditTargetAttestation AuditTargetType = "attestation"
	AuditTargetAgent       AuditTargetType = "agent"
	AuditTargetCredential  AuditTargetType = "credential"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

// AuditChainVersion is hashed into every entry so a future change to the
// chain region cannot silently invalidate stored trails.
const AuditChainVersion = "audit_chain_v1"

// AuditEntry records one attempted transition: who acted, what they tried,
// the status movement, and whether it was accepted. The log is append-only;
// rejected attempts are recorded with Result failure and an ErrorCode so the
// trail shows every attempt, not just the ones that landed.
//
// Entries form a hash chain. Seq is assigned at append time, PrevHash links
// to the previous entry's hash (a fixed zero hash for the first entry), and
// EntryHash covers the whole entry including PrevHash, so any mutation or
// reordering of stored rows breaks verification downstream of it.
type AuditEntry struct {
	ID          string           `json:"id"`
	Seq         int64            `json:"seq,omitempty"`
	Action      AuditAction      `json:"action"`
	ActorID     string           `json:"actorId"`
	TargetType  AuditTargetType  `json:"targetType"`
	TargetID    string           `json:"targetId,omitempty"`
	FromStatus  CommitmentStatus `json:"fromStatus,omitempty"`
	ToStatus    CommitmentStatus `json:"toStatus,omitempty"`
	Result      AuditResult      `json:"result"`
	ErrorCode   string           `json:"errorCode,omitempty"`
	Payload     map[string]any   `json:"payload,omitempty"`
	PayloadHash string           `json:"payloadHash,omitempty"`
	PrevHash    string           `json:"prevHash,omitempty"`
	EntryHash   string           `json:"entryHash,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// AuditFilter narrows audit queries. Zero values match everything.
type AuditFilter struct {
	ActorID    string
	TargetType AuditTargetType
	TargetID   string
	Action     AuditAction
	Limit      int
	Offset     int
}
