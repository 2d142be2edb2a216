package domain

import "time"

type CommitmentStatus string

const (
	StatusPendingAccept CommitmentStatus = "PENDING_ACCEPT"
	StatusAccepted      CommitmentStatus = "ACCEPTED"
	StatusRejected      CommitmentStatus = "REJECTED"
	StatusPending       CommitmentStatus = "PENDING"
	StatusFulfilled     CommitmentStatus = "FULFILLED"
	StatusFailed        CommitmentStatus = "FAILED"
	StatusCancelled     CommitmentStatus = "CANCELLED"
)

// Terminal reports whether no further transition is accepted from s.
func (s CommitmentStatus) Terminal() bool {
	switch s {
	case StatusFulfilled, StatusFailed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

func (s CommitmentStatus) Valid() bool {
	switch s {
	case StatusPendingAccept, StatusAccepted, StatusRejected, StatusPending,
		StatusFulfilled, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Commitment is a promise by PromiserID to perform Task within Context,
// optionally on behalf of DelegatorID. PromiserID is immutable after
// creation; Status only moves through the lifecycle transitions. Rows are
// never deleted; cancellation is a terminal status, which keeps the
// reputation audit trail complete.
type Commitment struct {
	ID           string           `json:"id"`
	PromiserID   string           `json:"promiserId"`
	DelegatorID  string           `json:"delegatorId,omitempty"`
	Context      string           `json:"context"`
	Task         string           `json:"task"`
	Deadline     *time.Time       `json:"deadline,omitempty"`
	Status       CommitmentStatus `json:"status"`
	Evidence     string           `json:"evidence,omitempty"`
	CredentialID string           `json:"credentialId,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Attestation is a counterparty's judgment of a submitted commitment.
// Immutable once recorded.
type Attestation struct {
	ID           string    `json:"id"`
	CommitmentID string    `json:"commitmentId"`
	AttesterID   string    `json:"attesterId"`
	Fulfilled    bool      `json:"fulfilled"`
	Evidence     string    `json:"evidence,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
