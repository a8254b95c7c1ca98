// Package ledgertest holds fixtures shared by the ledger backend tests.
package ledgertest

import (
	"github.com/davidahmann/renoguard/internal/ledger"
	"github.com/davidahmann/renoguard/pkg/types"
)

// SampleEntry returns a sealed WARN entry for backend tests.
func SampleEntry(id, occurredAt string) types.AuditLogEntry {
	entry, err := ledger.Seal(types.AuditLogEntry{
		EntryID:    id,
		OccurredAt: occurredAt,
		Target:     types.TargetKitchenCountertop,
		Result:     types.VerdictWarn,
		PolicyID:   "renoguard-default",
		PolicyHash: "sha256:test",
		PayloadSummary: types.PayloadSummary{
			Material: "PET_GLOSS",
			KeyFlags: []string{"KIDS", "PET"},
		},
		ThresholdsSnapshot: types.ThresholdsSnapshot{Defect: 2, Maintenance: 3, Asset: 4},
		Reasons:            []types.ReasonRef{{Key: "reason_0", Weight: 1, Code: "countertop.pet_gloss.impact_defect"}},
		Alternatives:       []types.AlternativeRef{{OptionType: "QUARTZ"}},
	})
	if err != nil {
		panic(err)
	}
	return entry
}
