package rules

import (
	"fmt"

	"github.com/davidahmann/renoguard/pkg/types"
)

const (
	CodePETGlossScratch      = "countertop.pet_gloss.scratch_discoloration"
	CodePETGlossImpact       = "countertop.pet_gloss.impact_defect"
	CodePETGlossUpkeep       = "countertop.pet_gloss.maintenance_sensitive"
	CodeQuartzBudgetFriction = "countertop.quartz.budget_efficiency"
)

const (
	textPETGlossScratch      = "스크래치 및 변색 발생 빈도가 높습니다."
	textPETGlossImpact       = "충격에 의한 하자 발생 가능성이 높습니다."
	textPETGlossUpkeep       = "유지관리 민감 성향에서는 부담이 커질 수 있습니다."
	textQuartzBudgetFriction = "예산 제약 대비 투자 효율이 불리할 수 있습니다."

	textAltQuartzFromPET    = "현재 사용 조건에서 유지관리 및 하자 리스크가 상대적으로 낮습니다."
	textAltPorcelainFromPET = "스크래치·열·오염 대응에서 유지관리 리스크가 낮은 편입니다."
	textAltPorcelainBudget  = "유지관리 리스크를 유지하면서 옵션 구성을 조정할 여지가 있습니다."
	textFallbackQuartz      = "선택 정보가 확인되지 않아 유지관리 부담이 예측 가능한 편인 대안을 함께 표시합니다."
)

// CountertopEvaluator judges kitchen countertop materials.
type CountertopEvaluator struct{}

func (CountertopEvaluator) Target() types.Target { return types.TargetKitchenCountertop }

func (CountertopEvaluator) Evaluate(ctx types.DecisionContext, payload Payload) (Outcome, error) {
	p, ok := payload.(CountertopPayload)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: expected countertop payload, got %T", ErrMalformedPayload, payload)
	}

	var out Outcome
	switch p.Material {
	case MaterialPETGloss:
		out.Risks = append(out.Risks, types.RiskFactor{
			Category: types.RiskMaintenance, Weight: 2,
			ReasonCode: CodePETGlossScratch, Reason: textPETGlossScratch,
		})
		if ctx.Household.HasKids {
			out.Risks = append(out.Risks, types.RiskFactor{
				Category: types.RiskDefect, Weight: 2,
				ReasonCode: CodePETGlossImpact, Reason: textPETGlossImpact,
			})
		}
		if ctx.Personality.MaintenanceSensitive {
			out.Risks = append(out.Risks, types.RiskFactor{
				Category: types.RiskMaintenance, Weight: 1,
				ReasonCode: CodePETGlossUpkeep, Reason: textPETGlossUpkeep,
			})
		}
		out.Alternatives = append(out.Alternatives,
			types.DecisionAlternative{OptionType: string(MaterialQuartz), Reason: textAltQuartzFromPET},
			types.DecisionAlternative{OptionType: string(MaterialPorcelain), Reason: textAltPorcelainFromPET},
		)

	case MaterialQuartz:
		if ctx.Budget.Level == types.BudgetLow && ctx.Personality.BudgetSensitive {
			out.Risks = append(out.Risks, types.RiskFactor{
				Category: types.RiskAsset, Weight: 1,
				ReasonCode: CodeQuartzBudgetFriction, Reason: textQuartzBudgetFriction,
			})
			out.Alternatives = append(out.Alternatives,
				types.DecisionAlternative{OptionType: string(MaterialPorcelain), Reason: textAltPorcelainBudget},
			)
		}

	case MaterialPorcelain:
		// Baseline material; no rules yet.

	default:
		return Outcome{}, fmt.Errorf("%w: unrecognized material", ErrMalformedPayload)
	}
	return out, nil
}

// FixedTexts returns every sentence this package can emit, for wording checks.
func FixedTexts() []string {
	return []string{
		textPETGlossScratch,
		textPETGlossImpact,
		textPETGlossUpkeep,
		textQuartzBudgetFriction,
		textAltQuartzFromPET,
		textAltPorcelainFromPET,
		textAltPorcelainBudget,
		textFallbackQuartz,
	}
}
