package policy

import (
	"errors"
	"reflect"
	"testing"
)

func TestLoadPolicyMatchesDefault(t *testing.T) {
	loaded, err := LoadPolicy("../../policies/renoguard.yaml")
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}

	if !reflect.DeepEqual(loaded.Policy, Default()) {
		t.Fatalf("shipped policy file drifted from Default():\n%+v\nwant:\n%+v", loaded.Policy, Default())
	}
	if loaded.Hash != LoadDefault().Hash {
		t.Fatalf("policy hash mismatch: got %s want %s", loaded.Hash, LoadDefault().Hash)
	}
}

func TestParsePolicyRejectsUnknownKeys(t *testing.T) {
	_, err := ParsePolicy([]byte(`
policy_id: p
thresholds:
  base: {asset: 3, maintenance: 3, defect: 3}
  flor: 1
`))
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestParsePolicyRejectsUnknownCondition(t *testing.T) {
	_, err := ParsePolicy([]byte(`
policy_id: p
thresholds:
  base: {asset: 3, maintenance: 3, defect: 3}
modifiers:
  - id: pets
    when: household.has_goldfish
    category: DEFECT
    delta: -1
`))
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestParsePolicyRejectsUnknownCategory(t *testing.T) {
	_, err := ParsePolicy([]byte(`
policy_id: p
thresholds:
  base: {asset: 3, maintenance: 3, defect: 3}
modifiers:
  - id: pets
    when: household.has_pets
    category: COMFORT
    delta: -1
`))
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestHashIgnoresFormatting(t *testing.T) {
	a, err := ParsePolicy([]byte("policy_id: p\nthresholds:\n  base: {asset: 3, maintenance: 3, defect: 3}\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := ParsePolicy([]byte("# comment\npolicy_id: \"p\"\nthresholds:\n  base:\n    defect: 3\n    asset: 3\n    maintenance: 3\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Hash != b.Hash {
		t.Fatalf("hash changed with formatting: %s vs %s", a.Hash, b.Hash)
	}
}
