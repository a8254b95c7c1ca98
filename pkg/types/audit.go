package types

type PayloadSummary struct {
	Material string   `json:"material,omitempty"`
	KeyFlags []string `json:"keyFlags"`
}

type AlternativeRef struct {
	OptionType string `json:"optionType"`
}

// AuditLogEntry is the persisted, redacted record of one evaluation.
type AuditLogEntry struct {
	EntryID            string             `json:"entryId"`
	OccurredAt         string             `json:"occurredAt"`
	Target             Target             `json:"target"`
	Result             Verdict            `json:"result"`
	PolicyID           string             `json:"policyId,omitempty"`
	PolicyHash         string             `json:"policyHash,omitempty"`
	PayloadSummary     PayloadSummary     `json:"payloadSummary"`
	ThresholdsSnapshot ThresholdsSnapshot `json:"thresholdsSnapshot"`
	Reasons            []ReasonRef        `json:"reasons,omitempty"`
	Alternatives       []AlternativeRef   `json:"alternatives,omitempty"`
	Digest             string             `json:"digest"`
}
