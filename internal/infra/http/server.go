package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vouchd/internal/config"
	"vouchd/internal/domain"
	"vouchd/internal/usecase"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	lifecycle   *usecase.CommitmentLifecycle
	reputation  *usecase.ReputationEngine
	registrar   *usecase.AgentRegistrar
	credentials *usecase.CredentialService
	credStore   usecase.CredentialRepository
	audit       usecase.AuditRepository

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool

	hasDB bool
}

type ServerDeps struct {
	Lifecycle   *usecase.CommitmentLifecycle
	Reputation  *usecase.ReputationEngine
	Registrar   *usecase.AgentRegistrar
	Credentials *usecase.CredentialService
	CredStore   usecase.CredentialRepository
	Audit       usecase.AuditRepository
	RateLimiter domain.RateLimiter
	HasDB       bool
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		lifecycle:   deps.Lifecycle,
		reputation:  deps.Reputation,
		registrar:   deps.Registrar,
		credentials: deps.Credentials,
		credStore:   deps.CredStore,
		audit:       deps.Audit,
		hasDB:       deps.HasDB,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(limiter domain.RateLimiter) {
	s.rateLimiter = limiter
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		mode := "no-db"
		if s.hasDB {
			mode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/agents", s.handleRegisterAgent)
		v1.GET("/agents/:agent_id", s.handleGetAgent)
		v1.GET("/agents/:agent_id/reputation", s.handleReputation)

		v1.POST("/commitments", s.handleCreateCommitment)
		v1.GET("/commitments", s.handleListCommitments)
		v1.GET("/commitments/:id", s.handleGetCommitment)
		v1.GET("/commitments/:id/attestations", s.handleListAttestations)
		v1.POST("/commitments/:id/accept", s.handleAccept)
		v1.POST("/commitments/:id/reject", s.handleReject)
		v1.POST("/commitments/:id/evidence", s.handleSubmitEvidence)
		v1.POST("/commitments/:id/verify", s.handleVerify)
		v1.POST("/commitments/:id/request-evidence", s.handleRequestMore)
		v1.POST("/commitments/:id/cancel", s.handleCancel)

		v1.GET("/credentials/:id", s.handleGetCredential)
		v1.POST("/credentials/verify", s.handleVerifyCredential)

		v1.GET("/audit", s.handleListAudit)
	}
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.r
}
