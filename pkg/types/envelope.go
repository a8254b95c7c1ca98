package types

// ReasonRef replaces a reason sentence once it crosses a process boundary.
type ReasonRef struct {
	Key    string `json:"key"`
	Weight int    `json:"weight"`
	Code   string `json:"code,omitempty"`
}

type ThresholdsSnapshot struct {
	Defect      int `json:"defect"`
	Maintenance int `json:"maintenance"`
	Asset       int `json:"asset"`
}

// DecisionEnvelope is the only decision representation a UI may consume.
type DecisionEnvelope struct {
	Target             Target                `json:"target"`
	Result             Verdict               `json:"result"`
	Reasons            []ReasonRef           `json:"reasons,omitempty"`
	Alternatives       []DecisionAlternative `json:"alternatives,omitempty"`
	ThresholdsSnapshot ThresholdsSnapshot    `json:"thresholdsSnapshot"`
}

type UIContract struct {
	DecisionResult  Verdict               `json:"decisionResult"`
	Alternatives    []DecisionAlternative `json:"alternatives"`
	DecisionBlocked bool                  `json:"decisionBlocked"`
}
