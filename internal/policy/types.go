package policy

import "github.com/davidahmann/renoguard/pkg/types"

// Policy carries the threshold table every evaluation is judged against.
type Policy struct {
	PolicyID      string            `yaml:"policy_id"`
	PolicyVersion string            `yaml:"policy_version"`
	Table         ThresholdTable    `yaml:"thresholds"`
	Modifiers     []Modifier        `yaml:"modifiers"`
	Alternatives  AlternativeLimits `yaml:"alternatives"`
}

type ThresholdTable struct {
	Base  CategoryValues `yaml:"base"`
	Floor int            `yaml:"floor"`
}

type CategoryValues struct {
	Asset       int `yaml:"asset"`
	Maintenance int `yaml:"maintenance"`
	Defect      int `yaml:"defect"`
}

// Modifier shifts one category threshold by Delta when its condition holds.
type Modifier struct {
	ID       string             `yaml:"id"`
	When     string             `yaml:"when"`
	Category types.RiskCategory `yaml:"category"`
	Delta    int                `yaml:"delta"`
}

type AlternativeLimits struct {
	WarnCap  int `yaml:"warn_cap"`
	BlockCap int `yaml:"block_cap"`
}
