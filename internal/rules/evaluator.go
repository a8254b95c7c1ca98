package rules

import "github.com/davidahmann/renoguard/pkg/types"

// Outcome is what a rule contributes: weighted risks and candidate
// substitutes. Rules never decide the verdict.
type Outcome struct {
	Risks        []types.RiskFactor
	Alternatives []types.DecisionAlternative
}

type Evaluator interface {
	Target() types.Target
	Evaluate(ctx types.DecisionContext, payload Payload) (Outcome, error)
}

// Default returns one evaluator per known target.
func Default() []Evaluator {
	return []Evaluator{CountertopEvaluator{}}
}

// FallbackAlternative is offered when a payload for target cannot be read.
func FallbackAlternative(target types.Target) (types.DecisionAlternative, bool) {
	switch target {
	case types.TargetKitchenCountertop:
		return types.DecisionAlternative{
			OptionType: string(MaterialQuartz),
			Reason:     textFallbackQuartz,
		}, true
	default:
		return types.DecisionAlternative{}, false
	}
}
