package db

import (
	"context"

	"gorm.io/gorm"

	"vouchd/internal/domain"
)

type AttestationRepository struct {
	db *gorm.DB
}

func NewAttestationRepository(db *gorm.DB) *AttestationRepository {
	return &AttestationRepository{db: db}
}

func (r *AttestationRepository) Create(ctx context.Context, a domain.Attestation) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AttestationModel{
		ID:           a.ID,
		CommitmentID: a.CommitmentID,
		AttesterID:   a.AttesterID,
		Fulfilled:    a.Fulfilled,
		Evidence:     a.Evidence,
		Comment:      a.Comment,
		CreatedAt:    a.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *AttestationRepository) ListByCommitment(ctx context.Context, commitmentID string) ([]domain.Attestation, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AttestationModel
	err := r.db.WithContext(ctx).
		Where("commitment_id = ?", commitmentID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Attestation, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Attestation{
			ID:           m.ID,
			CommitmentID: m.CommitmentID,
			AttesterID:   m.AttesterID,
			Fulfilled:    m.Fulfilled,
			Evidence:     m.Evidence,
			Comment:      m.Comment,
			CreatedAt:    m.CreatedAt,
		})
	}
	return out, nil
}

// ExistsForPromiserContext joins attestations back to their commitments to
// answer whether attester has already judged promiser inside contextName,
// no matter which commitment carried the judgment or how it came out.
func (r *AttestationRepository) ExistsForPromiserContext(ctx context.Context, attesterID, promiserID, contextName string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AttestationModel{}).
		Joins("JOIN commitments ON commitments.id = attestations.commitment_id").
		Where("attestations.attester_id = ?", attesterID).
		Where("commitments.promiser_id = ?", promiserID).
		Where("commitments.context = ?", contextName).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
