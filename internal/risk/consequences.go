package risk

import "github.com/davidahmann/renoguard/pkg/types"

var consequenceTexts = map[types.RiskCategory]string{
	types.RiskAsset:       "자산 가치 방어 관점에서 불리할 수 있습니다.",
	types.RiskMaintenance: "유지관리 부담이 예상보다 커질 수 있습니다.",
	types.RiskDefect:      "하자 및 A/S 분쟁 위험이 높아질 수 있습니다.",
}

// Consequences returns one fixed sentence per flagged category, in display
// order regardless of input order.
func Consequences(categories []types.RiskCategory) []string {
	flagged := map[types.RiskCategory]bool{}
	for _, c := range categories {
		flagged[c] = true
	}
	out := []string{}
	for _, c := range types.RiskCategories() {
		if flagged[c] {
			out = append(out, consequenceTexts[c])
		}
	}
	return out
}

// ConsequenceTexts exposes the template table for wording checks.
func ConsequenceTexts() map[types.RiskCategory]string {
	out := make(map[types.RiskCategory]string, len(consequenceTexts))
	for k, v := range consequenceTexts {
		out[k] = v
	}
	return out
}
