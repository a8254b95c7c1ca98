package risk

import (
	"strings"

	"github.com/davidahmann/renoguard/internal/policy"
	"github.com/davidahmann/renoguard/pkg/types"
)

// Engine turns weighted risk factors into a verdict under one policy. It holds
// no mutable state and is safe for concurrent use.
type Engine struct {
	policy policy.LoadedPolicy
}

func NewEngine(p policy.LoadedPolicy) *Engine {
	return &Engine{policy: p}
}

var defaultEngine = NewEngine(policy.LoadDefault())

// Default returns the engine bound to the built-in policy.
func Default() *Engine { return defaultEngine }

// ComputeThresholds applies the built-in policy to ctx.
func ComputeThresholds(ctx types.DecisionContext) types.Thresholds {
	return defaultEngine.Thresholds(ctx)
}

// AggregateRisks judges risks under the built-in policy.
func AggregateRisks(risks []types.RiskFactor, ctx types.DecisionContext, alternatives []types.DecisionAlternative) types.DecisionResult {
	return defaultEngine.Aggregate(risks, ctx, alternatives)
}

func (e *Engine) Policy() policy.LoadedPolicy { return e.policy }

func (e *Engine) Thresholds(ctx types.DecisionContext) types.Thresholds {
	return e.policy.Policy.Thresholds(ctx)
}

// Aggregate sums weights per category and compares them against the
// context's thresholds with a strict greater-than:
//
//	BLOCK if DEFECT > t.defect, or ASSET > t.asset and MAINTENANCE > t.maintenance
//	WARN  if ASSET > t.asset or MAINTENANCE > t.maintenance
//	PASS  otherwise
//
// Alternatives are dropped on PASS and capped per verdict otherwise.
func (e *Engine) Aggregate(risks []types.RiskFactor, ctx types.DecisionContext, alternatives []types.DecisionAlternative) types.DecisionResult {
	sums := sumWeights(risks)
	th := e.Thresholds(ctx)

	over := func(c types.RiskCategory) bool { return sums[c] > th.For(c) }

	var verdict types.Verdict
	switch {
	case over(types.RiskDefect) || (over(types.RiskAsset) && over(types.RiskMaintenance)):
		verdict = types.VerdictBlock
	case over(types.RiskAsset) || over(types.RiskMaintenance):
		verdict = types.VerdictWarn
	default:
		verdict = types.VerdictPass
	}

	categories := []types.RiskCategory{}
	for _, c := range types.RiskCategories() {
		if over(c) {
			categories = append(categories, c)
		}
	}

	reasons, codes := uniqueReasons(risks)

	return types.DecisionResult{
		Result:       verdict,
		RiskCategory: categories,
		Reasons:      reasons,
		ReasonCodes:  codes,
		Consequences: Consequences(categories),
		Alternatives: e.capAlternatives(verdict, alternatives),
		Thresholds:   th,
	}
}

func (e *Engine) capAlternatives(verdict types.Verdict, alternatives []types.DecisionAlternative) []types.DecisionAlternative {
	if verdict == types.VerdictPass {
		return nil
	}
	limit := min(e.policy.Policy.AlternativeCap(verdict), len(alternatives))
	if limit <= 0 {
		return nil
	}
	out := make([]types.DecisionAlternative, limit)
	copy(out, alternatives[:limit])
	return out
}

func sumWeights(risks []types.RiskFactor) map[types.RiskCategory]int {
	sums := map[types.RiskCategory]int{
		types.RiskAsset:       0,
		types.RiskMaintenance: 0,
		types.RiskDefect:      0,
	}
	for _, r := range risks {
		if r.Weight <= 0 {
			continue
		}
		sums[r.Category] += r.Weight
	}
	return sums
}

// uniqueReasons trims and deduplicates reason sentences in first-seen order,
// keeping each sentence's reason code aligned by index.
func uniqueReasons(risks []types.RiskFactor) ([]string, []string) {
	reasons := []string{}
	codes := []string{}
	seen := map[string]struct{}{}
	for _, r := range risks {
		text := strings.TrimSpace(r.Reason)
		if text == "" {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		reasons = append(reasons, text)
		codes = append(codes, r.ReasonCode)
	}
	return reasons, codes
}
