package policy

import "github.com/davidahmann/renoguard/pkg/types"

const (
	CondHasKids              = "household.has_kids"
	CondHasPets              = "household.has_pets"
	CondMaintenanceSensitive = "personality.maintenance_sensitive"
	CondBudgetSensitive      = "personality.budget_sensitive"
	CondRiskAverse           = "personality.risk_averse"
	CondResidenceShort       = "space.residence_plan.short"
	CondResidenceMid         = "space.residence_plan.mid"
	CondResidenceLong        = "space.residence_plan.long"
	CondBudgetLow            = "budget.level.low"
	CondBudgetMid            = "budget.level.mid"
	CondBudgetHigh           = "budget.level.high"
)

// matchCondition reports whether cond holds for ctx and whether cond is part
// of the vocabulary at all.
func matchCondition(cond string, ctx types.DecisionContext) (matched bool, known bool) {
	switch cond {
	case CondHasKids:
		return ctx.Household.HasKids, true
	case CondHasPets:
		return ctx.Household.HasPets, true
	case CondMaintenanceSensitive:
		return ctx.Personality.MaintenanceSensitive, true
	case CondBudgetSensitive:
		return ctx.Personality.BudgetSensitive, true
	case CondRiskAverse:
		return ctx.Personality.RiskAverse, true
	case CondResidenceShort:
		return ctx.Space.ResidencePlan == types.ResidenceShort, true
	case CondResidenceMid:
		return ctx.Space.ResidencePlan == types.ResidenceMid, true
	case CondResidenceLong:
		return ctx.Space.ResidencePlan == types.ResidenceLong, true
	case CondBudgetLow:
		return ctx.Budget.Level == types.BudgetLow, true
	case CondBudgetMid:
		return ctx.Budget.Level == types.BudgetMid, true
	case CondBudgetHigh:
		return ctx.Budget.Level == types.BudgetHigh, true
	default:
		return false, false
	}
}
