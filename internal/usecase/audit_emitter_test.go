package usecase

import (
	"context"
	"testing"
	"time"

	"vouchd/internal/domain"
)

func TestAuditEmitterStampsEntries(t *testing.T) {
	repo := &memAudit{}
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	emitter := NewAuditEmitter(repo, func() time.Time { return now }, func() string { return "audit-1" })

	err := emitter.Emit(context.Background(), domain.AuditEntry{
		Action:     domain.AuditActionRegisterAgent,
		ActorID:    "alice",
		TargetType: domain.AuditTargetAgent,
		TargetID:   "alice",
		Result:     domain.AuditResultSuccess,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	entry := repo.last(t)
	if entry.ID != "audit-1" {
		t.Fatalf("id = %q", entry.ID)
	}
	if !entry.CreatedAt.Equal(now) {
		t.Fatalf("created at = %v", entry.CreatedAt)
	}
	if entry.Payload == nil {
		t.Fatal("payload should default to an empty map")
	}
}

func TestAuditEmitterRejectsIncompleteEntries(t *testing.T) {
	emitter := NewAuditEmitter(&memAudit{}, nil, nil)
	err := emitter.Emit(context.Background(), domain.AuditEntry{ActorID: "alice"})
	if err == nil {
		t.Fatal("expected error for entry without action")
	}
}

func TestEmitTransitionTargetsCommitment(t *testing.T) {
	repo := &memAudit{}
	emitter := NewAuditEmitter(repo, nil, func() string { return "audit-2" })

	err := emitter.EmitTransition(context.Background(), domain.AuditActionAccept, "alice", "cmt-1",
		domain.StatusPendingAccept, domain.StatusAccepted, domain.AuditResultSuccess, "", nil)
	if err != nil {
		t.Fatalf("emit transition: %v", err)
	}
	entry := repo.last(t)
	if entry.TargetType != domain.AuditTargetCommitment || entry.TargetID != "cmt-1" {
		t.Fatalf("target = %s/%s", entry.TargetType, entry.TargetID)
	}
	if entry.FromStatus != domain.StatusPendingAccept || entry.ToStatus != domain.StatusAccepted {
		t.Fatalf("statuses = %s -> %s", entry.FromStatus, entry.ToStatus)
	}
}

func TestAgentRegistrarRoundTrip(t *testing.T) {
	f := newLifecycleFixture(t)
	registrar := &AgentRegistrar{
		Identity: f.identity,
		Keys:     f.keys,
		Audit:    f.lifecycle.Audit,
		Clock:    func() time.Time { return f.now },
	}

	agent, err := registrar.Register(context.Background(), "alice", "Alice Liddell")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if agent.DID == "" || agent.ID != "alice" {
		t.Fatalf("agent = %+v", agent)
	}
	if agent.Display != "Alice Liddell" {
		t.Fatalf("display = %q, want %q", agent.Display, "Alice Liddell")
	}
	pub, ok := f.identity.DIDToPublicKey(agent.DID)
	if !ok {
		t.Fatalf("unresolvable did %q", agent.DID)
	}
	if string(pub) != string(agent.PublicKey) {
		t.Fatal("resolved key mismatch")
	}

	if _, err := registrar.Register(context.Background(), "alice", "Alice again"); err == nil {
		t.Fatal("re-registration should fail")
	}

	resolved, err := registrar.Resolve(context.Background(), "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.DID != agent.DID {
		t.Fatalf("resolved did = %q, want %q", resolved.DID, agent.DID)
	}
	if resolved.Display != "Alice Liddell" {
		t.Fatalf("resolved display = %q, want %q", resolved.Display, "Alice Liddell")
	}
	if !resolved.CreatedAt.Equal(f.now) {
		t.Fatalf("resolved createdAt = %v, want %v", resolved.CreatedAt, f.now)
	}

	entry := f.audit.last(t)
	if entry.Action != domain.AuditActionRegisterAgent {
		t.Fatalf("audit action = %s", entry.Action)
	}
}
