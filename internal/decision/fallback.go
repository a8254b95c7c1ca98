package decision

import (
	"github.com/davidahmann/renoguard/internal/risk"
	"github.com/davidahmann/renoguard/internal/rules"
	"github.com/davidahmann/renoguard/pkg/types"
)

type FallbackKind string

const (
	FallbackNone             FallbackKind = ""
	FallbackUnknownTarget    FallbackKind = "unknown_target"
	FallbackMalformedPayload FallbackKind = "malformed_payload"
	FallbackInternalError    FallbackKind = "internal_error"
	FallbackTimeout          FallbackKind = "timeout"
)

const (
	CodeRuleNotImplemented = "decision.rule_not_implemented"
	CodePayloadIncomplete  = "decision.payload_incomplete"
	CodeInternalError      = "decision.internal_error"
	CodeEvaluationTimeout  = "decision.evaluation_timeout"
)

type fallbackTemplate struct {
	category types.RiskCategory
	code     string
	text     string
}

var fallbacks = map[FallbackKind]fallbackTemplate{
	FallbackUnknownTarget: {
		category: types.RiskAsset,
		code:     CodeRuleNotImplemented,
		text:     "해당 항목의 판정 규칙이 아직 구현되지 않아 보수적으로 처리했습니다.",
	},
	FallbackMalformedPayload: {
		category: types.RiskMaintenance,
		code:     CodePayloadIncomplete,
		text:     "선택 정보가 불완전하여 보수적으로 처리했습니다.",
	},
	FallbackInternalError: {
		category: types.RiskDefect,
		code:     CodeInternalError,
		text:     "내부 평가 오류가 발생하여 보수적으로 처리했습니다.",
	},
	FallbackTimeout: {
		category: types.RiskDefect,
		code:     CodeEvaluationTimeout,
		text:     "평가 시간이 초과되어 보수적으로 처리했습니다.",
	},
}

// fallback builds the conservative WARN for kind and logs why it was needed.
func (d *Dispatcher) fallback(kind FallbackKind, target types.Target, dctx types.DecisionContext, cause error) (types.DecisionResult, FallbackKind) {
	fb := fallbacks[kind]

	attrs := []any{"target", string(target), "fallback", string(kind)}
	if cause != nil {
		attrs = append(attrs, "error", cause.Error())
	}
	d.logger.Warn("decision resolved conservatively", attrs...)

	var alternatives []types.DecisionAlternative
	if kind == FallbackMalformedPayload {
		if alt, ok := rules.FallbackAlternative(target); ok {
			alternatives = []types.DecisionAlternative{alt}
		}
	}

	categories := []types.RiskCategory{fb.category}
	return types.DecisionResult{
		Result:       types.VerdictWarn,
		RiskCategory: categories,
		Reasons:      []string{fb.text},
		ReasonCodes:  []string{fb.code},
		Consequences: risk.Consequences(categories),
		Alternatives: alternatives,
		Thresholds:   d.engine.Thresholds(dctx),
	}, kind
}

// FallbackTexts returns every sentence a conservative resolution can emit.
func FallbackTexts() []string {
	out := make([]string, 0, len(fallbacks))
	for _, kind := range []FallbackKind{FallbackUnknownTarget, FallbackMalformedPayload, FallbackInternalError, FallbackTimeout} {
		out = append(out, fallbacks[kind].text)
	}
	return out
}
