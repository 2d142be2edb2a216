package domain

// ReputationStats is derived, never stored. Cancelled and rejected
// commitments are excluded from every denominator; pending commitments count
// toward the sample size but not the fulfillment rate.
type ReputationStats struct {
	Context          string  `json:"context"`
	TotalCommitments int     `json:"totalCommitments"`
	FulfilledCount   int     `json:"fulfilledCount"`
	FailedCount      int     `json:"failedCount"`
	PendingCount     int     `json:"pendingCount"`
	FulfillmentRate  float64 `json:"fulfillmentRate"`
	Score            int     `json:"score"`
}

type OverallReputation struct {
	TotalCommitments int     `json:"totalCommitments"`
	TotalFulfilled   int     `json:"totalFulfilled"`
	TotalFailed      int     `json:"totalFailed"`
	OverallRate      float64 `json:"overallRate"`
	Score            int     `json:"score"`
}

// AgentReputation is the full cross-context report for one promiser.
type AgentReputation struct {
	AgentID   string            `json:"agentId"`
	Overall   OverallReputation `json:"overall"`
	ByContext []ReputationStats `json:"byContext"`
}
