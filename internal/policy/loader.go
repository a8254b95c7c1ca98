package policy

import (
	"bytes"
	"fmt"
	"os"

	"github.com/davidahmann/renoguard/internal/crypto"
	"gopkg.in/yaml.v3"
)

type LoadedPolicy struct {
	Policy Policy
	Hash   string
}

// LoadPolicy reads and validates a YAML threshold policy.
func LoadPolicy(path string) (LoadedPolicy, error) {
	// #nosec G304 -- path comes from operator-configured policy path.
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedPolicy{}, err
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes YAML bytes. Unknown keys are rejected so a typo cannot
// silently fall back to a zero threshold.
func ParsePolicy(data []byte) (LoadedPolicy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return LoadedPolicy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := p.Validate(); err != nil {
		return LoadedPolicy{}, err
	}
	hash, err := Hash(p)
	if err != nil {
		return LoadedPolicy{}, err
	}
	return LoadedPolicy{Policy: p, Hash: hash}, nil
}

// LoadDefault wraps Default with its hash.
func LoadDefault() LoadedPolicy {
	p := Default()
	hash, err := Hash(p)
	if err != nil {
		// The default policy only holds strings and ints.
		panic(err)
	}
	return LoadedPolicy{Policy: p, Hash: hash}
}

// Hash digests the parsed policy, so formatting-only edits keep the same hash.
func Hash(p Policy) (string, error) {
	modifiers := make([]any, 0, len(p.Modifiers))
	for _, mod := range p.Modifiers {
		modifiers = append(modifiers, map[string]any{
			"id":       mod.ID,
			"when":     mod.When,
			"category": string(mod.Category),
			"delta":    mod.Delta,
		})
	}
	view := map[string]any{
		"policy_id":      p.PolicyID,
		"policy_version": p.PolicyVersion,
		"thresholds": map[string]any{
			"base": map[string]any{
				"asset":       p.Table.Base.Asset,
				"maintenance": p.Table.Base.Maintenance,
				"defect":      p.Table.Base.Defect,
			},
			"floor": p.Table.Floor,
		},
		"modifiers": modifiers,
		"alternatives": map[string]any{
			"warn_cap":  p.Alternatives.WarnCap,
			"block_cap": p.Alternatives.BlockCap,
		},
	}
	return crypto.CanonicalDigest(view)
}
