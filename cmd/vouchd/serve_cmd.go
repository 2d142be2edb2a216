package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vouchd/internal/config"
	"vouchd/internal/domain"
	"vouchd/internal/infra/cachemem"
	"vouchd/internal/infra/cacheredis"
	"vouchd/internal/infra/credential"
	"vouchd/internal/infra/db"
	"vouchd/internal/infra/didkey"
	httpapi "vouchd/internal/infra/http"
	keymem "vouchd/internal/infra/keys/mem"
	"vouchd/internal/infra/policy"
	"vouchd/internal/infra/ratelimit"
	"vouchd/internal/infra/storemem"
	"vouchd/internal/usecase"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

With VOUCHD_POSTGRES_DSN set, state lives in postgres and the schema is
migrated on startup. Without it the daemon runs fully in memory, which is
fine for demos and tests and loses everything on restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			deps, hasDB, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			deps.HasDB = hasDB

			server := httpapi.NewServer(cfg, deps)
			srv := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Handler()}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			mode := "in-memory"
			if hasDB {
				mode = "postgres"
			}
			fmt.Printf("vouchd listening on %s (%s)\n", cfg.HTTPAddr, mode)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides VOUCHD_HTTP_ADDR)")
	return cmd
}

// buildDeps wires the full dependency graph the server needs from config
// alone: storage, key material, caching, rate limiting and the optional
// policy hook.
func buildDeps(ctx context.Context, cfg config.Config) (httpapi.ServerDeps, bool, error) {
	identity := didkey.NewService()
	credSvc := usecase.NewCredentialService(identity, credential.NewService(), time.Now)
	credSvc.Expiry = cfg.CredentialExpiry()

	var (
		commitments  usecase.CommitmentRepository
		attestations usecase.AttestationRepository
		auditRepo    usecase.AuditRepository
		credStore    usecase.CredentialRepository
		keys         usecase.KeyStore
		hasDB        bool
	)
	if cfg.PostgresDSN != "" {
		store, err := db.NewStore(cfg.PostgresDSN)
		if err != nil {
			return httpapi.ServerDeps{}, false, err
		}
		if err := store.Migrate(); err != nil {
			return httpapi.ServerDeps{}, false, fmt.Errorf("migrate schema: %w", err)
		}
		commitments = store.Commitments
		attestations = store.Attestations
		auditRepo = store.Audit
		credStore = store.Credentials
		keys = store.Keys
		hasDB = true
	} else {
		mem := storemem.New()
		commitments = mem.Commitments
		attestations = mem.Attestations
		auditRepo = mem.Audit
		credStore = mem.Credentials
		keys = keymem.New()
	}

	var cache usecase.ReputationCache
	if cfg.RedisAddr != "" {
		redisCache, err := cacheredis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "vouchd")
		if err != nil {
			return httpapi.ServerDeps{}, false, fmt.Errorf("connect redis: %w", err)
		}
		cache = redisCache
	} else {
		cache = cachemem.New()
	}

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		if cfg.RedisAddr != "" {
			rl, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
			if err != nil {
				return httpapi.ServerDeps{}, false, fmt.Errorf("connect redis limiter: %w", err)
			}
			limiter = rl
		} else {
			limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{MaxKeys: cfg.RateLimitMaxKeys})
		}
	}

	var transitionPolicy usecase.TransitionPolicy
	if cfg.PolicyBundlePath != "" {
		engine, err := policy.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath, cfg.PolicyBundleID)
		if err != nil {
			return httpapi.ServerDeps{}, false, fmt.Errorf("load policy bundle: %w", err)
		}
		fmt.Printf("policy bundle %s loaded (hash %s)\n", cfg.PolicyBundleID, engine.BundleHash())
		transitionPolicy = engine
	}

	emitter := usecase.NewAuditEmitter(auditRepo, time.Now, uuid.NewString)
	lifecycle := &usecase.CommitmentLifecycle{
		Commitments:     commitments,
		Attestations:    attestations,
		Audit:           emitter,
		Credentials:     credSvc,
		CredentialStore: credStore,
		Keys:            keys,
		Policy:          transitionPolicy,
	}
	reputation := &usecase.ReputationEngine{
		Commitments: commitments,
		Cache:       cache,
		CacheTTL:    cfg.ReputationCacheTTL(),
	}
	registrar := &usecase.AgentRegistrar{
		Identity: identity,
		Keys:     keys,
		Audit:    emitter,
	}

	return httpapi.ServerDeps{
		Lifecycle:   lifecycle,
		Reputation:  reputation,
		Registrar:   registrar,
		Credentials: credSvc,
		CredStore:   credStore,
		Audit:       auditRepo,
		RateLimiter: limiter,
	}, hasDB, nil
}
