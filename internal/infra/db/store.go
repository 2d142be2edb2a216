package db

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("db unavailable")

// Store owns the database handle and the repositories hanging off it.
type Store struct {
	DB           *gorm.DB
	Commitments  *CommitmentRepository
	Attestations *AttestationRepository
	Audit        *AuditRepository
	Credentials  *CredentialRepository
	Keys         *KeyRepository
}

func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewStoreWithDB(gdb), nil
}

func NewStoreWithDB(gdb *gorm.DB) *Store {
	return &Store{
		DB:           gdb,
		Commitments:  NewCommitmentRepository(gdb),
		Attestations: NewAttestationRepository(gdb),
		Audit:        NewAuditRepository(gdb),
		Credentials:  NewCredentialRepository(gdb),
		Keys:         NewKeyRepository(gdb),
	}
}

// Migrate creates or updates the schema for every model.
func (s *Store) Migrate() error {
	if s == nil || s.DB == nil {
		return errDBUnavailable
	}
	return s.DB.AutoMigrate(
		&AgentModel{},
		&CommitmentModel{},
		&AttestationModel{},
		&AuditEntryModel{},
		&AuditChainHeadModel{},
		&CredentialModel{},
	)
}

func newUUID() string {
	return uuid.NewString()
}
