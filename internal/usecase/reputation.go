package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"vouchd/internal/domain"
)

const (
	// DefaultMinSampleSize is the commitment count below which scores are
	// dampened toward zero.
	DefaultMinSampleSize = 3
	// DefaultScorePerPercent scales a fulfillment percentage onto the
	// 0..1000 score range.
	DefaultScorePerPercent = 10
)

// ReputationEngine derives reputation from commitment rows on demand.
// Nothing here is stored: delete the cache and every number reconstructs
// from the commitment table. An optional cache fronts reads with a short
// TTL since reputation tolerates slight staleness.
type ReputationEngine struct {
	Commitments     CommitmentRepository
	Cache           ReputationCache
	CacheTTL        time.Duration
	MinSampleSize   int
	ScorePerPercent int
}

// ContextStats computes the agent's reputation within a single context.
func (e *ReputationEngine) ContextStats(ctx context.Context, agentID, contextName string) (domain.ReputationStats, error) {
	if agentID == "" {
		return domain.ReputationStats{}, fmt.Errorf("%w: agent id is required", domain.ErrValidation)
	}
	if contextName == "" {
		contextName = DefaultContext
	}

	key := cacheKey(agentID, contextName)
	if e.Cache != nil {
		if cached, ok, err := e.Cache.Get(ctx, key); err == nil && ok {
			return *cached, nil
		}
	}

	commitments, err := e.Commitments.ListByPromiser(ctx, agentID, contextName)
	if err != nil {
		return domain.ReputationStats{}, err
	}
	stats := e.compute(contextName, commitments)

	if e.Cache != nil {
		ttl := e.CacheTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		_ = e.Cache.Put(ctx, key, stats, ttl)
	}
	return stats, nil
}

// AgentReputation computes the full cross-context report. The overall score
// is the per-context scores weighted by each context's commitment count, so
// one busy context cannot be diluted by a single lucky one.
func (e *ReputationEngine) AgentReputation(ctx context.Context, agentID string) (domain.AgentReputation, error) {
	if agentID == "" {
		return domain.AgentReputation{}, fmt.Errorf("%w: agent id is required", domain.ErrValidation)
	}
	commitments, err := e.Commitments.ListByPromiser(ctx, agentID, "")
	if err != nil {
		return domain.AgentReputation{}, err
	}

	byContext := map[string][]domain.Commitment{}
	order := []string{}
	for _, c := range commitments {
		if _, seen := byContext[c.Context]; !seen {
			order = append(order, c.Context)
		}
		byContext[c.Context] = append(byContext[c.Context], c)
	}

	report := domain.AgentReputation{AgentID: agentID, ByContext: make([]domain.ReputationStats, 0, len(order))}
	weighted := 0
	for _, name := range order {
		stats := e.compute(name, byContext[name])
		report.ByContext = append(report.ByContext, stats)
		report.Overall.TotalCommitments += stats.TotalCommitments
		report.Overall.TotalFulfilled += stats.FulfilledCount
		report.Overall.TotalFailed += stats.FailedCount
		weighted += stats.Score * stats.TotalCommitments
	}

	settled := report.Overall.TotalFulfilled + report.Overall.TotalFailed
	if settled > 0 {
		report.Overall.OverallRate = round1(float64(report.Overall.TotalFulfilled) / float64(settled) * 100)
	}
	if report.Overall.TotalCommitments > 0 {
		report.Overall.Score = clamp(int(math.Round(float64(weighted)/float64(report.Overall.TotalCommitments))), 0, 1000)
	}
	return report, nil
}

func (e *ReputationEngine) compute(contextName string, commitments []domain.Commitment) domain.ReputationStats {
	stats := domain.ReputationStats{Context: contextName}
	for _, c := range commitments {
		switch c.Status {
		case domain.StatusFulfilled:
			stats.FulfilledCount++
		case domain.StatusFailed:
			stats.FailedCount++
		case domain.StatusPendingAccept, domain.StatusAccepted, domain.StatusPending:
			stats.PendingCount++
		}
		// CANCELLED and REJECTED never touch any counter.
	}
	stats.TotalCommitments = stats.FulfilledCount + stats.FailedCount + stats.PendingCount

	settled := stats.FulfilledCount + stats.FailedCount
	rate := 0.0
	if settled > 0 {
		rate = float64(stats.FulfilledCount) / float64(settled) * 100
	}
	stats.FulfillmentRate = round1(rate)
	stats.Score = e.score(rate, stats.TotalCommitments)
	return stats
}

// score maps a raw fulfillment percentage to 0..1000, dampening small
// samples linearly so two fulfilled commitments cannot mint a perfect
// score.
func (e *ReputationEngine) score(rate float64, total int) int {
	minSample := e.MinSampleSize
	if minSample <= 0 {
		minSample = DefaultMinSampleSize
	}
	perPercent := e.ScorePerPercent
	if perPercent <= 0 {
		perPercent = DefaultScorePerPercent
	}
	raw := rate * float64(perPercent)
	if total < minSample {
		raw = raw * float64(total) / float64(minSample)
	}
	return clamp(int(math.Round(raw)), 0, 1000)
}

func cacheKey(agentID, contextName string) string {
	return "reputation:" + agentID + ":" + contextName
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
