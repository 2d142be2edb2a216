package usecase

import (
	"context"
	"errors"
	"time"

	"vouchd/internal/domain"
)

// AuditEmitter appends immutable audit entries for every attempted
// transition. The trail is what makes the protocol non-repudiable even
// before credentials are layered on top, so emission failures surface
// instead of being swallowed.
type AuditEmitter struct {
	Repo  AuditRepository
	Clock Clock
	NewID func() string
}

func NewAuditEmitter(repo AuditRepository, clock Clock, newID func() string) *AuditEmitter {
	return &AuditEmitter{Repo: repo, Clock: clock, NewID: newID}
}

func (e *AuditEmitter) Emit(ctx context.Context, entry domain.AuditEntry) error {
	if e == nil || e.Repo == nil {
		return errors.New("audit repository required")
	}
	if entry.Action == "" || entry.TargetType == "" || entry.Result == "" {
		return errors.New("audit entry missing required fields")
	}
	if entry.ID == "" && e.NewID != nil {
		entry.ID = e.NewID()
	}
	if entry.Payload == nil {
		entry.Payload = map[string]any{}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = e.now().UTC()
	} else {
		entry.CreatedAt = entry.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, entry)
}

// EmitTransition records one lifecycle transition attempt against a
// commitment. errorCode is empty on success.
func (e *AuditEmitter) EmitTransition(ctx context.Context, action domain.AuditAction, actorID, commitmentID string, from, to domain.CommitmentStatus, result domain.AuditResult, errorCode string, payload map[string]any) error {
	return e.Emit(ctx, domain.AuditEntry{
		Action:     action,
		ActorID:    actorID,
		TargetType: domain.AuditTargetCommitment,
		TargetID:   commitmentID,
		FromStatus: from,
		ToStatus:   to,
		Result:     result,
		ErrorCode:  errorCode,
		Payload:    payload,
	})
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
