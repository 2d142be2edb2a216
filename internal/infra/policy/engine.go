package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"vouchd/internal/domain"
	"vouchd/internal/usecase"
)

const defaultQuery = "data.vouchd.transitions.result"

// Engine evaluates an operator-supplied Rego bundle against each attempted
// lifecycle transition. Bundles run sandboxed: only an allowlist of pure
// builtins plus the time functions needed for deadline rules, no network
// and no environment access.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
	bundleID   string
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string, bundleID string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}

	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}

	return &Engine{
		query:      prepared,
		bundleHash: bundleHash,
		bundleID:   bundleID,
	}, nil
}

// BundleHash identifies the exact policy content in effect, for operators
// correlating denials with a deployed bundle.
func (e *Engine) BundleHash() string {
	return e.bundleHash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.TransitionInput) (domain.PolicyDecision, error) {
	if e == nil {
		return domain.PolicyDecision{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyDecision{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyDecision{}, errors.New("empty policy result")
	}
	decision, err := decodeDecision(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyDecision{}, err
	}
	normalizeDecision(&decision)
	return decision, nil
}

func decodeDecision(value any) (domain.PolicyDecision, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyDecision{}, err
	}
	var decision domain.PolicyDecision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return domain.PolicyDecision{}, err
	}
	return decision, nil
}

func normalizeDecision(decision *domain.PolicyDecision) {
	if decision == nil {
		return
	}
	sort.Slice(decision.Deny, func(i, j int) bool {
		if decision.Deny[i].Code == decision.Deny[j].Code {
			return decision.Deny[i].Message < decision.Deny[j].Message
		}
		return decision.Deny[i].Code < decision.Deny[j].Code
	})
	if len(decision.Deny) > 0 {
		decision.Allow = false
	}
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; ok {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}

var _ usecase.TransitionPolicy = (*Engine)(nil)
