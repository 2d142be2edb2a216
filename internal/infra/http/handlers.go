package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vouchd/internal/domain"
	"vouchd/internal/usecase"
)

type registerAgentRequest struct {
	AgentID string `json:"agentId"`
	Display string `json:"display"`
}

type agentResponse struct {
	ID        string `json:"id"`
	DID       string `json:"did"`
	Display   string `json:"display,omitempty"`
	PublicKey string `json:"publicKey,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func buildAgentResponse(a *domain.Agent) agentResponse {
	out := agentResponse{
		ID:      a.ID,
		DID:     a.DID,
		Display: a.Display,
	}
	if !a.CreatedAt.IsZero() {
		out.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	if len(a.PublicKey) > 0 {
		out.PublicKey = base64.StdEncoding.EncodeToString(a.PublicKey)
	}
	return out
}

func (s *Server) handleRegisterAgent(c *gin.Context) {
	if s.registrar == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if !s.enforceRateLimit(c, routeAgentsRegister, req.AgentID) {
		return
	}
	agent, err := s.registrar.Register(c.Request.Context(), req.AgentID, req.Display)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildAgentResponse(agent))
}

func (s *Server) handleGetAgent(c *gin.Context) {
	if s.registrar == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	agent, err := s.registrar.Resolve(c.Request.Context(), c.Param("agent_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildAgentResponse(agent))
}

func (s *Server) handleReputation(c *gin.Context) {
	if s.reputation == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	agentID := c.Param("agent_id")
	if contextName := c.Query("context"); contextName != "" {
		stats, err := s.reputation.ContextStats(c.Request.Context(), agentID, contextName)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
		return
	}
	report, err := s.reputation.AgentReputation(c.Request.Context(), agentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type createCommitmentRequest struct {
	PromiserID  string `json:"promiserId"`
	DelegatorID string `json:"delegatorId"`
	Context     string `json:"context"`
	Task        string `json:"task"`
	Deadline    string `json:"deadline"`
}

func (s *Server) handleCreateCommitment(c *gin.Context) {
	var req createCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if !s.enforceRateLimit(c, routeCommitmentsWrite, req.PromiserID) {
		return
	}
	ucReq := usecase.CreateCommitmentRequest{
		PromiserID:  req.PromiserID,
		DelegatorID: req.DelegatorID,
		Context:     req.Context,
		Task:        req.Task,
	}
	if req.Deadline != "" {
		deadline, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_DEADLINE", "deadline must be RFC 3339")
			return
		}
		ucReq.Deadline = &deadline
	}
	commitment, err := s.lifecycle.Create(c.Request.Context(), ucReq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, commitment)
}

func (s *Server) handleListCommitments(c *gin.Context) {
	agentID := c.Query("agentId")
	if agentID == "" {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "agentId query parameter is required")
		return
	}
	commitments, err := s.lifecycle.ListByParty(c.Request.Context(), agentID, c.Query("role"), c.Query("context"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commitments": commitments})
}

func (s *Server) handleGetCommitment(c *gin.Context) {
	commitment, err := s.lifecycle.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

func (s *Server) handleListAttestations(c *gin.Context) {
	attestations, err := s.lifecycle.ListAttestations(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attestations": attestations})
}

type transitionRequest struct {
	ActorID  string `json:"actorId"`
	Reason   string `json:"reason"`
	Comment  string `json:"comment"`
	Evidence string `json:"evidence"`
}

func (s *Server) bindTransition(c *gin.Context) (transitionRequest, bool) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return req, false
	}
	if req.ActorID == "" {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "actorId is required")
		return req, false
	}
	if !s.enforceRateLimit(c, routeCommitmentsWrite, req.ActorID) {
		return req, false
	}
	return req, true
}

func (s *Server) handleAccept(c *gin.Context) {
	req, ok := s.bindTransition(c)
	if !ok {
		return
	}
	commitment, err := s.lifecycle.Accept(c.Request.Context(), c.Param("id"), req.ActorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

func (s *Server) handleReject(c *gin.Context) {
	req, ok := s.bindTransition(c)
	if !ok {
		return
	}
	commitment, err := s.lifecycle.Reject(c.Request.Context(), c.Param("id"), req.ActorID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

func (s *Server) handleSubmitEvidence(c *gin.Context) {
	req, ok := s.bindTransition(c)
	if !ok {
		return
	}
	commitment, err := s.lifecycle.SubmitEvidence(c.Request.Context(), c.Param("id"), req.ActorID, req.Evidence)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

type verifyCommitmentRequest struct {
	ActorID   string `json:"actorId"`
	Fulfilled *bool  `json:"fulfilled"`
	Evidence  string `json:"evidence"`
	Comment   string `json:"comment"`
}

func (s *Server) handleVerify(c *gin.Context) {
	var req verifyCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.ActorID == "" {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "actorId is required")
		return
	}
	if req.Fulfilled == nil {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION", "fulfilled is required")
		return
	}
	if !s.enforceRateLimit(c, routeCommitmentsWrite, req.ActorID) {
		return
	}
	commitment, attestation, err := s.lifecycle.Verify(c.Request.Context(), usecase.VerifyCommitmentRequest{
		CommitmentID: c.Param("id"),
		ActorID:      req.ActorID,
		Fulfilled:    *req.Fulfilled,
		Evidence:     req.Evidence,
		Comment:      req.Comment,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commitment": commitment, "attestation": attestation})
}

func (s *Server) handleRequestMore(c *gin.Context) {
	req, ok := s.bindTransition(c)
	if !ok {
		return
	}
	commitment, err := s.lifecycle.RequestMore(c.Request.Context(), c.Param("id"), req.ActorID, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

func (s *Server) handleCancel(c *gin.Context) {
	req, ok := s.bindTransition(c)
	if !ok {
		return
	}
	commitment, err := s.lifecycle.Cancel(c.Request.Context(), c.Param("id"), req.ActorID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, commitment)
}

type credentialResponse struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	IssuerDID  string          `json:"issuerDid"`
	TargetID   string          `json:"targetId,omitempty"`
	IssuedAt   string          `json:"issuedAt"`
	Credential json.RawMessage `json:"credential"`
}

func (s *Server) handleGetCredential(c *gin.Context) {
	if s.credStore == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	rec, err := s.credStore.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, credentialResponse{
		ID:         rec.ID,
		Kind:       rec.Kind,
		IssuerDID:  rec.IssuerDID,
		TargetID:   rec.TargetID,
		IssuedAt:   rec.IssuedAt.UTC().Format(time.RFC3339),
		Credential: rec.Payload,
	})
}

type verifyCredentialResponse struct {
	Valid bool   `json:"valid"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleVerifyCredential reports a verification outcome, not an HTTP error:
// a forged or expired credential is a valid question with a negative answer.
func (s *Server) handleVerifyCredential(c *gin.Context) {
	if s.credentials == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var vc domain.VerifiableCredential
	if err := c.ShouldBindJSON(&vc); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	result := s.credentials.Verify(vc)
	out := verifyCredentialResponse{Valid: result.Valid}
	if result.Err != nil {
		out.Code = verificationCode(result.Err)
		out.Error = result.Err.Error()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleListAudit(c *gin.Context) {
	if s.audit == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	filter := domain.AuditFilter{
		ActorID:  c.Query("actorId"),
		TargetID: c.Query("targetId"),
		Action:   domain.AuditAction(c.Query("action")),
	}
	if t := c.Query("targetType"); t != "" {
		filter.TargetType = domain.AuditTargetType(t)
	}
	entries, total, err := s.audit.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total})
}
