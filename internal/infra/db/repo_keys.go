package db

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	"gorm.io/gorm"

	"vouchd/internal/domain"
)

// KeyRepository stores agent identities with their key material. One row per
// agent; re-registration is a conflict, not a rotation.
type KeyRepository struct {
	db *gorm.DB
}

func NewKeyRepository(db *gorm.DB) *KeyRepository {
	return &KeyRepository{db: db}
}

func (r *KeyRepository) Put(ctx context.Context, agent domain.Agent, kp domain.DIDKeyPair) error {
	if r.db == nil {
		return errDBUnavailable
	}
	createdAt := agent.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	model := AgentModel{
		ID:         agent.ID,
		DID:        kp.DID,
		Display:    agent.Display,
		PublicKey:  kp.PublicKey,
		PrivateKey: kp.PrivateKey,
		CreatedAt:  createdAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *KeyRepository) Get(ctx context.Context, agentID string) (*domain.DIDKeyPair, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AgentModel
	err := r.db.WithContext(ctx).Where("id = ?", agentID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.DIDKeyPair{
		DID:        model.DID,
		PublicKey:  ed25519.PublicKey(model.PublicKey),
		PrivateKey: ed25519.PrivateKey(model.PrivateKey),
	}, nil
}

func (r *KeyRepository) Resolve(ctx context.Context, agentID string) (*domain.Agent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AgentModel
	err := r.db.WithContext(ctx).Where("id = ?", agentID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.Agent{
		ID:        model.ID,
		DID:       model.DID,
		Display:   model.Display,
		PublicKey: ed25519.PublicKey(model.PublicKey),
		CreatedAt: model.CreatedAt,
	}, nil
}
