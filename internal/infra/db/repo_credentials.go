package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"vouchd/internal/domain"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Put(ctx context.Context, rec domain.CredentialRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := CredentialModel{
		ID:          rec.ID,
		Kind:        rec.Kind,
		IssuerDID:   rec.IssuerDID,
		TargetID:    rec.TargetID,
		PayloadJSON: rec.Payload,
		IssuedAt:    rec.IssuedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*domain.CredentialRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CredentialModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.CredentialRecord{
		ID:        model.ID,
		Kind:      model.Kind,
		IssuerDID: model.IssuerDID,
		TargetID:  model.TargetID,
		Payload:   model.PayloadJSON,
		IssuedAt:  model.IssuedAt,
	}, nil
}

// ListByTarget returns every credential issued against one commitment, in
// issuance order.
func (r *CredentialRepository) ListByTarget(ctx context.Context, targetID string) ([]domain.CredentialRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CredentialModel
	err := r.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("issued_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.CredentialRecord, 0, len(models))
	for _, m := range models {
		out = append(out, domain.CredentialRecord{
			ID:        m.ID,
			Kind:      m.Kind,
			IssuerDID: m.IssuerDID,
			TargetID:  m.TargetID,
			Payload:   m.PayloadJSON,
			IssuedAt:  m.IssuedAt,
		})
	}
	return out, nil
}
