package risk

import (
	"encoding/json"
	"testing"

	"github.com/davidahmann/renoguard/pkg/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genFactor() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf(types.RiskAsset, types.RiskMaintenance, types.RiskDefect),
		gen.IntRange(1, 4),
		gen.OneConstOf("r1", "r2", "r3", "r4"),
	).Map(func(v []any) types.RiskFactor {
		reason := v[2].(string)
		return types.RiskFactor{Category: v[0].(types.RiskCategory), Weight: v[1].(int), ReasonCode: "code." + reason, Reason: reason}
	})
}

func genAlternatives() gopter.Gen {
	return gen.IntRange(0, 4).Map(func(n int) []types.DecisionAlternative {
		out := make([]types.DecisionAlternative, n)
		for i := range out {
			out[i] = types.DecisionAlternative{OptionType: string(rune('A' + i)), Reason: "alt"}
		}
		return out
	})
}

func genRiskContext() gopter.Gen {
	return gopter.CombineGens(
		gen.Bool(), gen.Bool(),
		gen.OneConstOf(types.ResidenceShort, types.ResidenceMid, types.ResidenceLong),
	).Map(func(v []any) types.DecisionContext {
		ctx := neutral()
		ctx.Household.HasKids = v[0].(bool)
		ctx.Personality.MaintenanceSensitive = v[1].(bool)
		ctx.Space.ResidencePlan = v[2].(types.ResidencePlan)
		return ctx
	})
}

func TestAggregateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("aggregation is deterministic", prop.ForAll(
		func(risks []types.RiskFactor, ctx types.DecisionContext, alts []types.DecisionAlternative) bool {
			a, errA := json.Marshal(AggregateRisks(risks, ctx, alts))
			b, errB := json.Marshal(AggregateRisks(risks, ctx, alts))
			return errA == nil && errB == nil && string(a) == string(b)
		},
		gen.SliceOf(genFactor()), genRiskContext(), genAlternatives(),
	))

	properties.Property("PASS iff alternatives absent, given candidates exist", prop.ForAll(
		func(risks []types.RiskFactor, ctx types.DecisionContext, alts []types.DecisionAlternative) bool {
			res := AggregateRisks(risks, ctx, alts)
			if res.Result == types.VerdictPass {
				return res.Alternatives == nil
			}
			if len(alts) == 0 {
				return res.Alternatives == nil
			}
			return len(res.Alternatives) > 0 && len(res.Alternatives) <= 3
		},
		gen.SliceOf(genFactor()), genRiskContext(), genAlternatives(),
	))

	properties.Property("adding weight never lowers severity", prop.ForAll(
		func(risks []types.RiskFactor, extra types.RiskFactor, ctx types.DecisionContext) bool {
			before := AggregateRisks(risks, ctx, nil)
			after := AggregateRisks(append(append([]types.RiskFactor(nil), risks...), extra), ctx, nil)
			return after.Result.Severity() >= before.Result.Severity()
		},
		gen.SliceOf(genFactor()), genFactor(), genRiskContext(),
	))

	properties.Property("riskCategory lists exactly the categories over threshold", prop.ForAll(
		func(risks []types.RiskFactor, ctx types.DecisionContext) bool {
			res := AggregateRisks(risks, ctx, nil)
			sums := sumWeights(risks)
			flagged := map[types.RiskCategory]bool{}
			for _, c := range res.RiskCategory {
				flagged[c] = true
			}
			for _, c := range types.RiskCategories() {
				if flagged[c] != (sums[c] > res.Thresholds.For(c)) {
					return false
				}
			}
			return len(res.Consequences) == len(res.RiskCategory)
		},
		gen.SliceOf(genFactor()), genRiskContext(),
	))

	properties.TestingRun(t)
}
