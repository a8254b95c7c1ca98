// Package envelope converts in-process decision results into the shapes a UI
// is allowed to see.
package envelope

import (
	"fmt"

	"github.com/davidahmann/renoguard/pkg/types"
)

// Wrap replaces reason sentences with opaque keys and snapshots the
// thresholds that produced the verdict.
func Wrap(target types.Target, result types.DecisionResult) types.DecisionEnvelope {
	env := types.DecisionEnvelope{
		Target: target,
		Result: result.Result,
		ThresholdsSnapshot: types.ThresholdsSnapshot{
			Defect:      result.Thresholds.DefectThreshold,
			Maintenance: result.Thresholds.MaintenanceThreshold,
			Asset:       result.Thresholds.AssetThreshold,
		},
	}
	if len(result.Reasons) > 0 {
		env.Reasons = make([]types.ReasonRef, len(result.Reasons))
		for i := range result.Reasons {
			ref := types.ReasonRef{Key: fmt.Sprintf("reason_%d", i), Weight: 1}
			if i < len(result.ReasonCodes) {
				ref.Code = result.ReasonCodes[i]
			}
			env.Reasons[i] = ref
		}
	}
	if len(result.Alternatives) > 0 {
		env.Alternatives = append([]types.DecisionAlternative(nil), result.Alternatives...)
	}
	return env
}

// ExtractUIContract reads the fields a UI renders. A missing envelope reads as
// an unblocked PASS with nothing to show.
func ExtractUIContract(env *types.DecisionEnvelope) types.UIContract {
	if env == nil {
		return types.UIContract{
			DecisionResult:  types.VerdictPass,
			Alternatives:    []types.DecisionAlternative{},
			DecisionBlocked: false,
		}
	}
	alternatives := make([]types.DecisionAlternative, len(env.Alternatives))
	copy(alternatives, env.Alternatives)
	return types.UIContract{
		DecisionResult:  env.Result,
		Alternatives:    alternatives,
		DecisionBlocked: env.Result == types.VerdictBlock,
	}
}
