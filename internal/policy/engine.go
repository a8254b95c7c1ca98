package policy

import (
	"errors"
	"fmt"

	"github.com/davidahmann/renoguard/pkg/types"
)

var ErrInvalidPolicy = errors.New("invalid policy")

const (
	DefaultPolicyID      = "renoguard-default"
	DefaultPolicyVersion = "1.1"
)

// Default returns the built-in policy: base 3 per category, kids lower the
// defect bar, maintenance-sensitive households lower the maintenance bar, and
// short-term residents raise the asset bar.
func Default() Policy {
	return Policy{
		PolicyID:      DefaultPolicyID,
		PolicyVersion: DefaultPolicyVersion,
		Table: ThresholdTable{
			Base:  CategoryValues{Asset: 3, Maintenance: 3, Defect: 3},
			Floor: 1,
		},
		Modifiers: []Modifier{
			{ID: "has_kids", When: CondHasKids, Category: types.RiskDefect, Delta: -1},
			{ID: "maintenance_sensitive", When: CondMaintenanceSensitive, Category: types.RiskMaintenance, Delta: -1},
			{ID: "short_residence", When: CondResidenceShort, Category: types.RiskAsset, Delta: 1},
		},
		Alternatives: AlternativeLimits{WarnCap: 2, BlockCap: 3},
	}
}

// Thresholds applies every matching modifier to the base table. Modifiers are
// additive and order-independent; results never drop below the floor.
func (p Policy) Thresholds(ctx types.DecisionContext) types.Thresholds {
	values := p.Table.Base
	for _, mod := range p.Modifiers {
		matched, _ := matchCondition(mod.When, ctx)
		if !matched {
			continue
		}
		switch mod.Category {
		case types.RiskAsset:
			values.Asset += mod.Delta
		case types.RiskMaintenance:
			values.Maintenance += mod.Delta
		case types.RiskDefect:
			values.Defect += mod.Delta
		}
	}

	floor := p.floor()
	return types.Thresholds{
		AssetThreshold:       max(values.Asset, floor),
		MaintenanceThreshold: max(values.Maintenance, floor),
		DefectThreshold:      max(values.Defect, floor),
	}
}

// AlternativeCap returns how many alternatives a verdict may carry.
func (p Policy) AlternativeCap(verdict types.Verdict) int {
	switch verdict {
	case types.VerdictWarn:
		return p.Alternatives.WarnCap
	case types.VerdictBlock:
		return p.Alternatives.BlockCap
	default:
		return 0
	}
}

func (p Policy) floor() int {
	if p.Table.Floor < 1 {
		return 1
	}
	return p.Table.Floor
}

// Validate rejects policies the engine cannot apply faithfully.
func (p Policy) Validate() error {
	if p.PolicyID == "" {
		return fmt.Errorf("%w: policy_id is required", ErrInvalidPolicy)
	}
	base := p.Table.Base
	if base.Asset < 1 || base.Maintenance < 1 || base.Defect < 1 {
		return fmt.Errorf("%w: base thresholds must be >= 1", ErrInvalidPolicy)
	}
	if p.Table.Floor < 0 {
		return fmt.Errorf("%w: floor must not be negative", ErrInvalidPolicy)
	}
	if p.Alternatives.WarnCap < 0 || p.Alternatives.BlockCap < 0 {
		return fmt.Errorf("%w: alternative caps must not be negative", ErrInvalidPolicy)
	}

	seen := map[string]struct{}{}
	for i, mod := range p.Modifiers {
		if mod.ID == "" {
			return fmt.Errorf("%w: modifiers[%d].id is required", ErrInvalidPolicy, i)
		}
		if _, ok := seen[mod.ID]; ok {
			return fmt.Errorf("%w: duplicate modifier id %q", ErrInvalidPolicy, mod.ID)
		}
		seen[mod.ID] = struct{}{}

		if _, known := matchCondition(mod.When, types.DecisionContext{}); !known {
			return fmt.Errorf("%w: modifier %q has unknown condition %q", ErrInvalidPolicy, mod.ID, mod.When)
		}
		switch mod.Category {
		case types.RiskAsset, types.RiskMaintenance, types.RiskDefect:
		default:
			return fmt.Errorf("%w: modifier %q has unknown category %q", ErrInvalidPolicy, mod.ID, mod.Category)
		}
	}
	return nil
}
