package ledger

import (
	"github.com/davidahmann/renoguard/internal/crypto"
	"github.com/davidahmann/renoguard/pkg/types"
)

// EntryDigest hashes the canonical form of every entry field except the
// digest itself.
func EntryDigest(entry types.AuditLogEntry) (string, error) {
	keyFlags := make([]any, len(entry.PayloadSummary.KeyFlags))
	for i, flag := range entry.PayloadSummary.KeyFlags {
		keyFlags[i] = flag
	}
	reasons := make([]any, len(entry.Reasons))
	for i, r := range entry.Reasons {
		reasons[i] = map[string]any{"key": r.Key, "weight": r.Weight, "code": r.Code}
	}
	alternatives := make([]any, len(entry.Alternatives))
	for i, a := range entry.Alternatives {
		alternatives[i] = map[string]any{"optionType": a.OptionType}
	}

	return crypto.CanonicalDigest(map[string]any{
		"entryId":    entry.EntryID,
		"occurredAt": entry.OccurredAt,
		"target":     string(entry.Target),
		"result":     string(entry.Result),
		"policyId":   entry.PolicyID,
		"policyHash": entry.PolicyHash,
		"payloadSummary": map[string]any{
			"material": entry.PayloadSummary.Material,
			"keyFlags": keyFlags,
		},
		"thresholdsSnapshot": map[string]any{
			"defect":      entry.ThresholdsSnapshot.Defect,
			"maintenance": entry.ThresholdsSnapshot.Maintenance,
			"asset":       entry.ThresholdsSnapshot.Asset,
		},
		"reasons":      reasons,
		"alternatives": alternatives,
	})
}

// VerifyEntry recomputes the digest of entry and compares it with the
// recorded one.
func VerifyEntry(entry types.AuditLogEntry) error {
	digest, err := EntryDigest(entry)
	if err != nil {
		return err
	}
	if entry.Digest == "" || entry.Digest != digest {
		return ErrDigestMismatch
	}
	return nil
}

// Seal returns entry with its digest filled in.
func Seal(entry types.AuditLogEntry) (types.AuditLogEntry, error) {
	digest, err := EntryDigest(entry)
	if err != nil {
		return types.AuditLogEntry{}, err
	}
	entry.Digest = digest
	return entry, nil
}
