package domain

// TransitionInput is what an operator-supplied policy bundle sees for each
// attempted lifecycle transition. Policy can only deny; it never authorizes
// a transition the state machine forbids.
type TransitionInput struct {
	Action     AuditAction       `json:"action"`
	ActorID    string            `json:"actor_id"`
	Commitment Commitment        `json:"commitment"`
	Fulfilled  *bool             `json:"fulfilled,omitempty"`
	Evidence   string            `json:"evidence,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

type PolicyReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PolicyDecision struct {
	Allow bool           `json:"allow"`
	Deny  []PolicyReason `json:"deny"`
}
