package db

import "time"

type AgentModel struct {
	ID         string `gorm:"primaryKey"`
	DID        string `gorm:"column:did;uniqueIndex;not null"`
	Display    string
	PublicKey  []byte    `gorm:"type:bytea;not null"`
	PrivateKey []byte    `gorm:"type:bytea"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (AgentModel) TableName() string {
	return "agents"
}

type CommitmentModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	PromiserID   string `gorm:"index;not null"`
	DelegatorID  string `gorm:"index"`
	Context      string `gorm:"index;not null"`
	Task         string `gorm:"not null"`
	Deadline     *time.Time
	Status       string `gorm:"index;not null"`
	Evidence     string
	CredentialID string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (CommitmentModel) TableName() string {
	return "commitments"
}

type AttestationModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	CommitmentID string `gorm:"type:uuid;index;not null"`
	AttesterID   string `gorm:"index;not null"`
	Fulfilled    bool   `gorm:"not null"`
	Evidence     string
	Comment      string
	CreatedAt    time.Time `gorm:"not null"`
}

func (AttestationModel) TableName() string {
	return "attestations"
}

type AuditEntryModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Seq         int64  `gorm:"uniqueIndex;not null"`
	Action      string `gorm:"index;not null"`
	ActorID     string `gorm:"index;not null"`
	TargetType  string `gorm:"not null"`
	TargetID    string `gorm:"index"`
	FromStatus  string
	ToStatus    string
	Result      string `gorm:"not null"`
	ErrorCode   string
	PayloadJSON []byte    `gorm:"type:jsonb"`
	PayloadHash string    `gorm:"not null"`
	PrevHash    string    `gorm:"not null"`
	EntryHash   string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"index;not null"`
}

func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// AuditChainHeadModel is a single-row counter the audit repository locks to
// serialize sequence assignment across concurrent appends.
type AuditChainHeadModel struct {
	ID  int64 `gorm:"primaryKey"`
	Seq int64 `gorm:"not null"`
}

func (AuditChainHeadModel) TableName() string {
	return "audit_chain_head"
}

type CredentialModel struct {
	ID          string    `gorm:"primaryKey"`
	Kind        string    `gorm:"index;not null"`
	IssuerDID   string    `gorm:"column:issuer_did;index;not null"`
	TargetID    string    `gorm:"index"`
	PayloadJSON []byte    `gorm:"type:jsonb;not null"`
	IssuedAt    time.Time `gorm:"not null"`
}

func (CredentialModel) TableName() string {
	return "credentials"
}
