package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"vouchd/internal/domain"
	"vouchd/internal/usecase"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append assigns the next sequence number under a row lock, links the entry
// to its predecessor's hash, and inserts it. There is no update or delete
// anywhere in this repository; the trail only grows.
func (r *AuditRepository) Append(ctx context.Context, e domain.AuditEntry) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if e.ID == "" {
		e.ID = newUUID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	// Postgres stores microseconds; truncate before hashing so a read back
	// recomputes the same chain hash.
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, prevHash, err := nextAuditSeq(ctx, tx)
		if err != nil {
			return err
		}
		e.Seq = seq
		e.PrevHash = prevHash
		if err := usecase.ChainAuditEntry(&e); err != nil {
			return err
		}

		model := AuditEntryModel{
			ID:          e.ID,
			Seq:         e.Seq,
			Action:      string(e.Action),
			ActorID:     e.ActorID,
			TargetType:  string(e.TargetType),
			TargetID:    e.TargetID,
			FromStatus:  string(e.FromStatus),
			ToStatus:    string(e.ToStatus),
			Result:      string(e.Result),
			ErrorCode:   e.ErrorCode,
			PayloadJSON: payload,
			PayloadHash: e.PayloadHash,
			PrevHash:    e.PrevHash,
			EntryHash:   e.EntryHash,
			CreatedAt:   e.CreatedAt,
		}
		return tx.Create(&model).Error
	})
}

func (r *AuditRepository) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	if r.db == nil {
		return nil, 0, errDBUnavailable
	}
	query := r.db.WithContext(ctx).Model(&AuditEntryModel{})
	if f.ActorID != "" {
		query = query.Where("actor_id = ?", f.ActorID)
	}
	if f.TargetType != "" {
		query = query.Where("target_type = ?", string(f.TargetType))
	}
	if f.TargetID != "" {
		query = query.Where("target_id = ?", f.TargetID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", string(f.Action))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []AuditEntryModel
	err := query.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.AuditEntry, 0, len(models))
	for _, m := range models {
		out = append(out, auditEntryFromModel(m))
	}
	return out, total, nil
}

// ListChain returns every entry in sequence order for chain verification.
func (r *AuditRepository) ListChain(ctx context.Context) ([]domain.AuditEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEntryModel
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0, len(models))
	for _, m := range models {
		out = append(out, auditEntryFromModel(m))
	}
	return out, nil
}

func auditEntryFromModel(m AuditEntryModel) domain.AuditEntry {
	entry := domain.AuditEntry{
		ID:          m.ID,
		Seq:         m.Seq,
		Action:      domain.AuditAction(m.Action),
		ActorID:     m.ActorID,
		TargetType:  domain.AuditTargetType(m.TargetType),
		TargetID:    m.TargetID,
		FromStatus:  domain.CommitmentStatus(m.FromStatus),
		ToStatus:    domain.CommitmentStatus(m.ToStatus),
		Result:      domain.AuditResult(m.Result),
		ErrorCode:   m.ErrorCode,
		PayloadHash: m.PayloadHash,
		PrevHash:    m.PrevHash,
		EntryHash:   m.EntryHash,
		CreatedAt:   m.CreatedAt.UTC(),
	}
	if len(m.PayloadJSON) > 0 {
		_ = json.Unmarshal(m.PayloadJSON, &entry.Payload)
	}
	return entry
}

func nextAuditSeq(ctx context.Context, tx *gorm.DB) (int64, string, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO audit_chain_head (id, seq) VALUES (1, 0) ON CONFLICT (id) DO NOTHING",
	).Error; err != nil {
		return 0, "", err
	}

	var currentSeq int64
	if err := tx.WithContext(ctx).Raw(
		"SELECT seq FROM audit_chain_head WHERE id = 1 FOR UPDATE",
	).Scan(&currentSeq).Error; err != nil {
		return 0, "", err
	}
	nextSeq := currentSeq + 1
	if err := tx.WithContext(ctx).Exec(
		"UPDATE audit_chain_head SET seq = ? WHERE id = 1",
		nextSeq,
	).Error; err != nil {
		return 0, "", err
	}

	prevHash := usecase.ZeroAuditHash()
	if currentSeq > 0 {
		var prev AuditEntryModel
		if err := tx.WithContext(ctx).
			Where("seq = ?", currentSeq).
			Take(&prev).Error; err != nil {
			return 0, "", err
		}
		prevHash = prev.EntryHash
	}
	if prevHash == "" {
		return 0, "", fmt.Errorf("missing entry hash at seq %d", currentSeq)
	}
	return nextSeq, prevHash, nil
}
