// Package storemem is the in-memory counterpart of the postgres store. It
// backs the daemon's no-db mode and demo setups; nothing survives a restart.
package storemem

import (
	"context"
	"sort"
	"sync"
	"time"

	"vouchd/internal/domain"
	"vouchd/internal/usecase"
)

type Store struct {
	Commitments  *CommitmentRepository
	Attestations *AttestationRepository
	Audit        *AuditRepository
	Credentials  *CredentialRepository
}

func New() *Store {
	commitments := &CommitmentRepository{rows: map[string]domain.Commitment{}}
	return &Store{
		Commitments:  commitments,
		Attestations: &AttestationRepository{commitments: commitments},
		Audit:        &AuditRepository{},
		Credentials:  &CredentialRepository{rows: map[string]domain.CredentialRecord{}},
	}
}

type CommitmentRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Commitment
}

var _ usecase.CommitmentRepository = (*CommitmentRepository)(nil)

func (r *CommitmentRepository) FindByID(ctx context.Context, id string) (*domain.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := row
	return &out, nil
}

func (r *CommitmentRepository) Create(ctx context.Context, c domain.Commitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[c.ID] = c
	return nil
}

// UpdateStatus saves the row only while the stored status still matches
// expected, the same guard the postgres repository expresses in SQL.
func (r *CommitmentRepository) UpdateStatus(ctx context.Context, c domain.Commitment, expected domain.CommitmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.Status != expected {
		return domain.ErrStateConflict
	}
	r.rows[c.ID] = c
	return nil
}

func (r *CommitmentRepository) ListByPromiser(ctx context.Context, agentID, contextName string) ([]domain.Commitment, error) {
	return r.list(func(c domain.Commitment) bool {
		return c.PromiserID == agentID && (contextName == "" || c.Context == contextName)
	}), nil
}

func (r *CommitmentRepository) ListByDelegator(ctx context.Context, agentID, contextName string) ([]domain.Commitment, error) {
	return r.list(func(c domain.Commitment) bool {
		return c.DelegatorID == agentID && (contextName == "" || c.Context == contextName)
	}), nil
}

func (r *CommitmentRepository) list(keep func(domain.Commitment) bool) []domain.Commitment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Commitment
	for _, row := range r.rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

type AttestationRepository struct {
	mu          sync.Mutex
	rows        []domain.Attestation
	commitments *CommitmentRepository
}

var _ usecase.AttestationRepository = (*AttestationRepository)(nil)

func (r *AttestationRepository) Create(ctx context.Context, a domain.Attestation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, a)
	return nil
}

func (r *AttestationRepository) ListByCommitment(ctx context.Context, commitmentID string) ([]domain.Attestation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Attestation
	for _, a := range r.rows {
		if a.CommitmentID == commitmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *AttestationRepository) ExistsForPromiserContext(ctx context.Context, attesterID, promiserID, contextName string) (bool, error) {
	r.mu.Lock()
	rows := append([]domain.Attestation(nil), r.rows...)
	r.mu.Unlock()
	for _, a := range rows {
		if a.AttesterID != attesterID {
			continue
		}
		c, err := r.commitments.FindByID(ctx, a.CommitmentID)
		if err != nil {
			continue
		}
		if c.PromiserID == promiserID && c.Context == contextName {
			return true, nil
		}
	}
	return false, nil
}

type AuditRepository struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

var _ usecase.AuditRepository = (*AuditRepository)(nil)

// Append chains the entry to its predecessor before storing it, the same
// way the postgres repository does inside its transaction.
func (r *AuditRepository) Append(ctx context.Context, e domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	e.Seq = int64(len(r.entries)) + 1
	e.PrevHash = usecase.ZeroAuditHash()
	if len(r.entries) > 0 {
		e.PrevHash = r.entries[len(r.entries)-1].EntryHash
	}
	if err := usecase.ChainAuditEntry(&e); err != nil {
		return err
	}
	r.entries = append(r.entries, e)
	return nil
}

// ListChain returns every entry in sequence order.
func (r *AuditRepository) ListChain(ctx context.Context) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditEntry(nil), r.entries...), nil
}

func (r *AuditRepository) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.AuditEntry
	for _, e := range r.entries {
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.TargetType != "" && e.TargetType != f.TargetType {
			continue
		}
		if f.TargetID != "" && e.TargetID != f.TargetID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		matched = append(matched, e)
	}
	total := int64(len(matched))
	// Newest first, like the postgres repository.
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := f.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

type CredentialRepository struct {
	mu   sync.Mutex
	rows map[string]domain.CredentialRecord
}

var _ usecase.CredentialRepository = (*CredentialRepository)(nil)

func (r *CredentialRepository) Put(ctx context.Context, rec domain.CredentialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[rec.ID] = rec
	return nil
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*domain.CredentialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := rec
	return &out, nil
}
