package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vouchd/internal/domain"
)

// AgentRegistrar mints a did:key identity for an agent and stores the key
// material so later transitions can issue signed receipts under it.
type AgentRegistrar struct {
	Identity IdentityService
	Keys     KeyStore
	Audit    *AuditEmitter
	Clock    Clock
	NewID    func() string
}

// Register generates a fresh Ed25519 key pair for agentID and persists it.
// An empty agentID gets a generated one. Registering an already known agent
// fails rather than silently rotating its keys.
func (r *AgentRegistrar) Register(ctx context.Context, agentID, display string) (*domain.Agent, error) {
	if agentID == "" {
		if r.NewID != nil {
			agentID = r.NewID()
		} else {
			agentID = uuid.NewString()
		}
	}
	if existing, err := r.Keys.Get(ctx, agentID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: agent %s already registered", domain.ErrValidation, agentID)
	}

	kp, err := r.Identity.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	agent := &domain.Agent{
		ID:        agentID,
		DID:       kp.DID,
		Display:   display,
		PublicKey: kp.PublicKey,
		CreatedAt: r.now().UTC(),
	}
	if err := r.Keys.Put(ctx, *agent, kp); err != nil {
		return nil, err
	}
	if r.Audit != nil {
		_ = r.Audit.Emit(ctx, domain.AuditEntry{
			Action:     domain.AuditActionRegisterAgent,
			ActorID:    agentID,
			TargetType: domain.AuditTargetAgent,
			TargetID:   agentID,
			Result:     domain.AuditResultSuccess,
			Payload:    map[string]any{"did": kp.DID},
		})
	}
	return agent, nil
}

// Resolve returns the stored record of a registered agent.
func (r *AgentRegistrar) Resolve(ctx context.Context, agentID string) (*domain.Agent, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent id is required", domain.ErrValidation)
	}
	return r.Keys.Resolve(ctx, agentID)
}

func (r *AgentRegistrar) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
