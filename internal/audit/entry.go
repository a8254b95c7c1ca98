// Package audit builds redacted decision records and writes them to a ledger
// store without holding up the caller.
package audit

import (
	"regexp"
	"strings"
	"time"

	"github.com/davidahmann/renoguard/internal/envelope"
	"github.com/davidahmann/renoguard/internal/ledger"
	"github.com/davidahmann/renoguard/internal/policy"
	"github.com/davidahmann/renoguard/internal/rules"
	"github.com/davidahmann/renoguard/pkg/types"
	"github.com/google/uuid"
)

// UnrecognizedMaterial stands in for any material value outside the known set.
const UnrecognizedMaterial = "UNRECOGNIZED"

var keyFlagPattern = regexp.MustCompile(`^[A-Z0-9_]{1,64}$`)

// NewEntry records what was decided without any free text: reasons become
// keys and codes, alternatives keep only their option type, and the payload
// is reduced to a material enum plus sanitized flags.
func NewEntry(target types.Target, result types.DecisionResult, payload rules.Payload, pol policy.LoadedPolicy, keyFlags []string, now time.Time) (types.AuditLogEntry, error) {
	env := envelope.Wrap(target, result)

	var alternatives []types.AlternativeRef
	for _, alt := range env.Alternatives {
		alternatives = append(alternatives, types.AlternativeRef{OptionType: alt.OptionType})
	}

	return ledger.Seal(types.AuditLogEntry{
		EntryID:            uuid.New().String(),
		OccurredAt:         now.UTC().Format(time.RFC3339Nano),
		Target:             target,
		Result:             result.Result,
		PolicyID:           pol.Policy.PolicyID,
		PolicyHash:         pol.Hash,
		PayloadSummary:     Summarize(target, payload, keyFlags),
		ThresholdsSnapshot: env.ThresholdsSnapshot,
		Reasons:            env.Reasons,
		Alternatives:       alternatives,
	})
}

// Summarize reduces a payload to the fields an audit record may hold.
func Summarize(target types.Target, payload rules.Payload, keyFlags []string) types.PayloadSummary {
	return types.PayloadSummary{
		Material: summarizeMaterial(target, payload),
		KeyFlags: SanitizeKeyFlags(keyFlags),
	}
}

func summarizeMaterial(target types.Target, payload rules.Payload) string {
	switch p := payload.(type) {
	case rules.CountertopPayload:
		if p.Material.Known() {
			return string(p.Material)
		}
		return UnrecognizedMaterial
	case nil:
		if target == types.TargetKitchenCountertop {
			return UnrecognizedMaterial
		}
		return ""
	default:
		return ""
	}
}

// SanitizeKeyFlags keeps only flag-shaped tags, first occurrence wins. The
// result is never nil.
func SanitizeKeyFlags(flags []string) []string {
	out := make([]string, 0, len(flags))
	seen := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		f = strings.TrimSpace(f)
		if !keyFlagPattern.MatchString(f) {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
