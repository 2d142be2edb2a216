package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"vouchd/internal/config"
	"vouchd/internal/domain"
	"vouchd/internal/infra/cachemem"
	"vouchd/internal/infra/credential"
	"vouchd/internal/infra/didkey"
	keymem "vouchd/internal/infra/keys/mem"
	"vouchd/internal/infra/ratelimit"
	"vouchd/internal/usecase"
)

type memCommitmentRepo struct {
	mu   sync.Mutex
	rows map[string]domain.Commitment
}

func newMemCommitmentRepo() *memCommitmentRepo {
	return &memCommitmentRepo{rows: map[string]domain.Commitment{}}
}

func (r *memCommitmentRepo) FindByID(ctx context.Context, id string) (*domain.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := row
	return &out, nil
}

func (r *memCommitmentRepo) Create(ctx context.Context, c domain.Commitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[c.ID] = c
	return nil
}

func (r *memCommitmentRepo) UpdateStatus(ctx context.Context, c domain.Commitment, expected domain.CommitmentStatus) error {
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

func (r *memCommitmentRepo) ListByPromiser(ctx context.Context, agentID, contextName string) ([]domain.Commitment, error) {
	return r.list(func(c domain.Commitment) bool {
		return c.PromiserID == agentID && (contextName == "" || c.Context == contextName)
	}), nil
}

func (r *memCommitmentRepo) ListByDelegator(ctx context.Context, agentID, contextName string) ([]domain.Commitment, error) {
	return r.list(func(c domain.Commitment) bool {
		return c.DelegatorID == agentID && (contextName == "" || c.Context == contextName)
	}), nil
}

func (r *memCommitmentRepo) list(keep func(domain.Commitment) bool) []domain.Commitment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Commitment
	for _, row := range r.rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}

type memAttestationRepo struct {
	mu          sync.Mutex
	rows        []domain.Attestation
	commitments *memCommitmentRepo
}

func (r *memAttestationRepo) Create(ctx context.Context, a domain.Attestation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, a)
	return nil
}

func (r *memAttestationRepo) ListByCommitment(ctx context.Context, commitmentID string) ([]domain.Attestation, error) {
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

func (r *memAttestationRepo) ExistsForPromiserContext(ctx context.Context, attesterID, promiserID, contextName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
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

type memAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (r *memAuditRepo) Append(ctx context.Context, e domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memAuditRepo) ListChain(ctx context.Context) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditEntry(nil), r.entries...), nil
}

func (r *memAuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range r.entries {
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.TargetID != "" && e.TargetID != f.TargetID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

type memCredentialRepo struct {
	mu   sync.Mutex
	rows map[string]domain.CredentialRecord
}

func newMemCredentialRepo() *memCredentialRepo {
	return &memCredentialRepo{rows: map[string]domain.CredentialRecord{}}
}

func (r *memCredentialRepo) Put(ctx context.Context, rec domain.CredentialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[rec.ID] = rec
	return nil
}

func (r *memCredentialRepo) GetByID(ctx context.Context, id string) (*domain.CredentialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

type serverFixture struct {
	server   *Server
	identity *didkey.Service
	audit    *memAuditRepo
}

func newServerFixture(t *testing.T, cfg config.Config) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	identity := &didkey.Service{}
	commitments := newMemCommitmentRepo()
	attestations := &memAttestationRepo{commitments: commitments}
	audit := &memAuditRepo{}
	keys := keymem.New()
	creds := newMemCredentialRepo()

	seq := 0
	newID := func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}
	clock := func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	emitter := usecase.NewAuditEmitter(audit, clock, newID)
	credSvc := usecase.NewCredentialService(identity, &credential.Service{}, clock)

	lifecycle := &usecase.CommitmentLifecycle{
		Commitments:     commitments,
		Attestations:    attestations,
		Audit:           emitter,
		Credentials:     credSvc,
		CredentialStore: creds,
		Keys:            keys,
		Clock:           clock,
		NewID:           newID,
	}
	reputation := &usecase.ReputationEngine{
		Commitments: commitments,
		Cache:       cachemem.New(),
		CacheTTL:    time.Second,
	}
	registrar := &usecase.AgentRegistrar{
		Identity: identity,
		Keys:     keys,
		Audit:    emitter,
		Clock:    clock,
		NewID:    newID,
	}

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
	}
	server := NewServer(cfg, ServerDeps{
		Lifecycle:   lifecycle,
		Reputation:  reputation,
		Registrar:   registrar,
		Credentials: credSvc,
		CredStore:   creds,
		Audit:       audit,
		RateLimiter: limiter,
	})
	return &serverFixture{server: server, identity: identity, audit: audit}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t, config.Config{HTTPAddr: ":0"})
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRegisterAndResolveAgent(t *testing.T) {
	f := newServerFixture(t, config.Config{})

	rec := f.do(t, http.MethodPost, "/v1/agents", gin.H{"agentId": "alice", "display": "Alice Liddell"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body = %s", rec.Code, rec.Body.String())
	}
	var agent agentResponse
	decodeBody(t, rec, &agent)
	if agent.ID != "alice" || agent.DID == "" {
		t.Fatalf("agent = %+v", agent)
	}
	if agent.Display != "Alice Liddell" {
		t.Fatalf("display = %q, want %q", agent.Display, "Alice Liddell")
	}

	rec = f.do(t, http.MethodGet, "/v1/agents/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d", rec.Code)
	}
	var resolved agentResponse
	decodeBody(t, rec, &resolved)
	if resolved.Display != "Alice Liddell" {
		t.Fatalf("resolved display = %q, want %q", resolved.Display, "Alice Liddell")
	}
	if resolved.DID != agent.DID || resolved.CreatedAt == "" {
		t.Fatalf("resolved agent = %+v", resolved)
	}

	rec = f.do(t, http.MethodPost, "/v1/agents", gin.H{"agentId": "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}
}

func createCommitmentViaAPI(t *testing.T, f *serverFixture) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/commitments", gin.H{
		"promiserId":  "alice",
		"delegatorId": "bob",
		"context":     "code-review",
		"task":        "review the storage layer PR",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body.String())
	}
	var c domain.Commitment
	decodeBody(t, rec, &c)
	if c.Status != domain.StatusPendingAccept {
		t.Fatalf("status = %s", c.Status)
	}
	return c.ID
}

func TestCommitmentLifecycleOverHTTP(t *testing.T) {
	f := newServerFixture(t, config.Config{})
	id := createCommitmentViaAPI(t, f)

	rec := f.do(t, http.MethodPost, "/v1/commitments/"+id+"/accept", gin.H{"actorId": "bob"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delegator accept status = %d", rec.Code)
	}
	var apiErr errorResponse
	decodeBody(t, rec, &apiErr)
	if apiErr.Code != "UNAUTHORIZED_ACTOR" {
		t.Fatalf("code = %q", apiErr.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/commitments/"+id+"/accept", gin.H{"actorId": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/commitments/"+id+"/accept", gin.H{"actorId": "alice"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("double accept status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/commitments/"+id+"/evidence", gin.H{
		"actorId":  "alice",
		"evidence": "merged in PR #42",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("evidence status = %d body = %s", rec.Code, rec.Body.String())
	}

	// Promiser claiming own success is a 422 with its own code.
	rec = f.do(t, http.MethodPost, "/v1/commitments/"+id+"/verify", gin.H{
		"actorId":   "alice",
		"fulfilled": true,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("self verify status = %d", rec.Code)
	}
	decodeBody(t, rec, &apiErr)
	if apiErr.Code != "SELF_ATTESTATION" {
		t.Fatalf("code = %q", apiErr.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/commitments/"+id+"/verify", gin.H{
		"actorId":   "bob",
		"fulfilled": true,
		"comment":   "looks complete",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d body = %s", rec.Code, rec.Body.String())
	}
	var verified struct {
		Commitment  domain.Commitment   `json:"commitment"`
		Attestation *domain.Attestation `json:"attestation"`
	}
	decodeBody(t, rec, &verified)
	if verified.Commitment.Status != domain.StatusFulfilled {
		t.Fatalf("status = %s", verified.Commitment.Status)
	}

	rec = f.do(t, http.MethodGet, "/v1/commitments/"+id+"/attestations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("attestations status = %d", rec.Code)
	}
}

func TestVerifyRequiresFulfilled(t *testing.T) {
	f := newServerFixture(t, config.Config{})
	id := createCommitmentViaAPI(t, f)

	rec := f.do(t, http.MethodPost, "/v1/commitments/"+id+"/verify", gin.H{"actorId": "bob"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReputationEndpoint(t *testing.T) {
	f := newServerFixture(t, config.Config{})
	id := createCommitmentViaAPI(t, f)

	for _, step := range []gin.H{
		{"path": "accept", "body": gin.H{"actorId": "alice"}},
		{"path": "evidence", "body": gin.H{"actorId": "alice", "evidence": "done"}},
		{"path": "verify", "body": gin.H{"actorId": "bob", "fulfilled": true}},
	} {
		rec := f.do(t, http.MethodPost, "/v1/commitments/"+id+"/"+step["path"].(string), step["body"])
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d body = %s", step["path"], rec.Code, rec.Body.String())
		}
	}

	rec := f.do(t, http.MethodGet, "/v1/agents/alice/reputation?context=code-review", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reputation status = %d", rec.Code)
	}
	var stats domain.ReputationStats
	decodeBody(t, rec, &stats)
	if stats.FulfilledCount != 1 || stats.FulfillmentRate != 100.0 {
		t.Fatalf("stats = %+v", stats)
	}
	// One commitment: full rate, dampened score.
	if stats.Score != 333 {
		t.Fatalf("score = %d", stats.Score)
	}

	rec = f.do(t, http.MethodGet, "/v1/agents/alice/reputation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("overall status = %d", rec.Code)
	}
	var report domain.AgentReputation
	decodeBody(t, rec, &report)
	if report.Overall.TotalCommitments != 1 || len(report.ByContext) != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestCredentialEndpoints(t *testing.T) {
	f := newServerFixture(t, config.Config{})

	if rec := f.do(t, http.MethodPost, "/v1/agents", gin.H{"agentId": "alice"}); rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}
	id := createCommitmentViaAPI(t, f)
	rec := f.do(t, http.MethodPost, "/v1/commitments/"+id+"/accept", gin.H{"actorId": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d", rec.Code)
	}
	var c domain.Commitment
	decodeBody(t, rec, &c)
	if c.CredentialID == "" {
		t.Fatal("expected receipt credential id")
	}

	rec = f.do(t, http.MethodGet, "/v1/credentials/"+c.CredentialID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get credential status = %d", rec.Code)
	}
	var credOut credentialResponse
	decodeBody(t, rec, &credOut)
	if credOut.Kind != domain.CredentialTypeCommitment {
		t.Fatalf("kind = %q", credOut.Kind)
	}

	// The stored credential verifies as issued.
	var vc domain.VerifiableCredential
	if err := json.Unmarshal(credOut.Credential, &vc); err != nil {
		t.Fatalf("unmarshal credential: %v", err)
	}
	rec = f.do(t, http.MethodPost, "/v1/credentials/verify", vc)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify credential status = %d", rec.Code)
	}
	var result verifyCredentialResponse
	decodeBody(t, rec, &result)
	if !result.Valid {
		t.Fatalf("result = %+v", result)
	}

	// Tampering flips the verdict but not the status code.
	vc.Issuer.ID = "did:web:example.test"
	rec = f.do(t, http.MethodPost, "/v1/credentials/verify", vc)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify tampered status = %d", rec.Code)
	}
	decodeBody(t, rec, &result)
	if result.Valid || result.Code != "UNRESOLVABLE_ISSUER" {
		t.Fatalf("result = %+v", result)
	}
}

func TestAuditEndpoint(t *testing.T) {
	f := newServerFixture(t, config.Config{})
	id := createCommitmentViaAPI(t, f)
	if rec := f.do(t, http.MethodPost, "/v1/commitments/"+id+"/accept", gin.H{"actorId": "mallory"}); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger accept status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/v1/audit?targetId="+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}
	var out struct {
		Entries []domain.AuditEntry `json:"entries"`
		Total   int64               `json:"total"`
	}
	decodeBody(t, rec, &out)
	if out.Total != 2 {
		t.Fatalf("total = %d", out.Total)
	}
	var sawFailure bool
	for _, e := range out.Entries {
		if e.Result == domain.AuditResultFailure && e.ErrorCode == "unauthorized_actor" {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatalf("denied attempt missing from trail: %+v", out.Entries)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	f := newServerFixture(t, config.Config{
		RateLimitRequests:      1,
		RateLimitWindowSeconds: 60,
	})

	first := f.do(t, http.MethodPost, "/v1/agents", gin.H{"agentId": "alice"})
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}
	if first.Header().Get("RateLimit-Limit") != "1" {
		t.Fatalf("limit header = %q", first.Header().Get("RateLimit-Limit"))
	}

	second := f.do(t, http.MethodPost, "/v1/agents", gin.H{"agentId": "alice"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func TestUnknownCommitmentIs404(t *testing.T) {
	f := newServerFixture(t, config.Config{})
	rec := f.do(t, http.MethodGet, "/v1/commitments/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
