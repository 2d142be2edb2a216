package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"vouchd/internal/domain"
)

type CommitmentRepository struct {
	db *gorm.DB
}

func NewCommitmentRepository(db *gorm.DB) *CommitmentRepository {
	return &CommitmentRepository{db: db}
}

func (r *CommitmentRepository) FindByID(ctx context.Context, id string) (*domain.Commitment, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CommitmentModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	c := commitmentFromModel(model)
	return &c, nil
}

func (r *CommitmentRepository) Create(ctx context.Context, c domain.Commitment) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := commitmentToModel(c)
	return r.db.WithContext(ctx).Create(&model).Error
}

// UpdateStatus writes the row only while its stored status still matches
// expected. Zero rows touched means another transition won the race, which
// surfaces as a state conflict rather than a lost update.
func (r *CommitmentRepository) UpdateStatus(ctx context.Context, c domain.Commitment, expected domain.CommitmentStatus) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&CommitmentModel{}).
		Where("id = ? AND status = ?", c.ID, string(expected)).
		Updates(map[string]any{
			"status":        string(c.Status),
			"evidence":      c.Evidence,
			"credential_id": c.CredentialID,
			"updated_at":    c.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrStateConflict
	}
	return nil
}

func (r *CommitmentRepository) ListByPromiser(ctx context.Context, agentID, contextName string) ([]domain.Commitment, error) {
	return r.list(ctx, "promiser_id", agentID, contextName)
}

func (r *CommitmentRepository) ListByDelegator(ctx context.Context, agentID, contextName string) ([]domain.Commitment, error) {
	return r.list(ctx, "delegator_id", agentID, contextName)
}

func (r *CommitmentRepository) list(ctx context.Context, column, agentID, contextName string) ([]domain.Commitment, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx).Where(column+" = ?", agentID)
	if contextName != "" {
		query = query.Where("context = ?", contextName)
	}
	var models []CommitmentModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Commitment, 0, len(models))
	for _, model := range models {
		out = append(out, commitmentFromModel(model))
	}
	return out, nil
}

func commitmentToModel(c domain.Commitment) CommitmentModel {
	return CommitmentModel{
		ID:           c.ID,
		PromiserID:   c.PromiserID,
		DelegatorID:  c.DelegatorID,
		Context:      c.Context,
		Task:         c.Task,
		Deadline:     c.Deadline,
		Status:       string(c.Status),
		Evidence:     c.Evidence,
		CredentialID: c.CredentialID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func commitmentFromModel(m CommitmentModel) domain.Commitment {
	return domain.Commitment{
		ID:           m.ID,
		PromiserID:   m.PromiserID,
		DelegatorID:  m.DelegatorID,
		Context:      m.Context,
		Task:         m.Task,
		Deadline:     m.Deadline,
		Status:       domain.CommitmentStatus(m.Status),
		Evidence:     m.Evidence,
		CredentialID: m.CredentialID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
