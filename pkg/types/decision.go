package types

// Target identifies the choice being judged.
type Target string

const (
	TargetKitchenCountertop Target = "KITCHEN_COUNTERTOP"
)

// KnownTargets lists every target the engine ships rules for.
func KnownTargets() []Target {
	return []Target{TargetKitchenCountertop}
}

type Verdict string

const (
	VerdictPass  Verdict = "PASS"
	VerdictWarn  Verdict = "WARN"
	VerdictBlock Verdict = "BLOCK"
)

// Severity orders verdicts PASS < WARN < BLOCK. Unknown values rank as WARN.
func (v Verdict) Severity() int {
	switch v {
	case VerdictPass:
		return 0
	case VerdictBlock:
		return 2
	default:
		return 1
	}
}

type RiskCategory string

const (
	RiskAsset       RiskCategory = "ASSET"
	RiskMaintenance RiskCategory = "MAINTENANCE"
	RiskDefect      RiskCategory = "DEFECT"
)

// RiskCategories returns the categories in display order.
func RiskCategories() []RiskCategory {
	return []RiskCategory{RiskAsset, RiskMaintenance, RiskDefect}
}

// RiskFactor is one weighted concern raised by a rule. ReasonCode is safe to
// persist; Reason is display text and must not leave the process.
type RiskFactor struct {
	Category   RiskCategory `json:"category"`
	Weight     int          `json:"weight"`
	ReasonCode string       `json:"reasonCode"`
	Reason     string       `json:"reason"`
}

type DecisionAlternative struct {
	OptionType string `json:"optionType"`
	Reason     string `json:"reason"`
}

type Thresholds struct {
	AssetThreshold       int `json:"assetThreshold"`
	MaintenanceThreshold int `json:"maintenanceThreshold"`
	DefectThreshold      int `json:"defectThreshold"`
}

// For returns the threshold that applies to category.
func (t Thresholds) For(category RiskCategory) int {
	switch category {
	case RiskAsset:
		return t.AssetThreshold
	case RiskMaintenance:
		return t.MaintenanceThreshold
	default:
		return t.DefectThreshold
	}
}

// DecisionResult is the in-process verdict. Alternatives is nil whenever
// Result is PASS, so it is omitted from JSON rather than rendered as [].
type DecisionResult struct {
	Result       Verdict               `json:"result"`
	RiskCategory []RiskCategory        `json:"riskCategory"`
	Reasons      []string              `json:"reasons"`
	ReasonCodes  []string              `json:"reasonCodes"`
	Consequences []string              `json:"consequences"`
	Alternatives []DecisionAlternative `json:"alternatives,omitempty"`
	Thresholds   Thresholds            `json:"thresholds"`
}
