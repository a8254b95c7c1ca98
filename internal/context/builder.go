package context

import (
	"strings"

	"github.com/davidahmann/renoguard/pkg/types"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultPyeong    = 25.0
	DefaultRooms     = 2
	DefaultBathrooms = 2
)

// SpaceInfo carries declared housing facts as the onboarding layer sends them.
// Every field is optional.
type SpaceInfo struct {
	HousingType   string   `json:"housingType,omitempty"`
	Pyeong        *float64 `json:"pyeong,omitempty"`
	Rooms         *int     `json:"rooms,omitempty"`
	Bathrooms     *int     `json:"bathrooms,omitempty"`
	ResidencePlan string   `json:"residencePlan,omitempty"`
}

// Signals carries inferred behavioral tags. Upstream analyzers populate either
// field depending on their version; both are honored.
type Signals struct {
	Tags      []string `json:"tags,omitempty"`
	FinalTags []string `json:"finalTags,omitempty"`
}

// BuildDecisionContext normalizes upstream facts and tags into a total
// DecisionContext. Unknown tags are ignored and nil inputs are allowed.
func BuildDecisionContext(space *SpaceInfo, signals *Signals) types.DecisionContext {
	if space == nil {
		space = &SpaceInfo{}
	}
	tags := tagSet(MergeTags(signals))

	return types.DecisionContext{
		Space: types.ContextSpace{
			HousingType:   NormalizeHousingType(space.HousingType),
			Pyeong:        positiveFloat(space.Pyeong, DefaultPyeong),
			Rooms:         positiveInt(space.Rooms, DefaultRooms),
			Bathrooms:     positiveInt(space.Bathrooms, DefaultBathrooms),
			ResidencePlan: NormalizeResidencePlan(space.ResidencePlan),
		},
		Household: types.ContextHousehold{
			HasKids: tags.any("HAS_CHILD", "HAS_INFANT", "HAS_TEEN"),
			HasPets: tags.any("HAS_PET_DOG", "HAS_PET_CAT"),
		},
		Personality: types.ContextPersonality{
			MaintenanceSensitive: tags.any("CLEANING_SYSTEM_NEED"),
			BudgetSensitive:      tags.any("BUDGET_STRICT"),
			RiskAverse:           tags.any("SAFETY_NEED", "OLD_RISK_HIGH"),
		},
		Budget: types.ContextBudget{
			Level: inferBudgetLevel(tags),
		},
	}
}

// MergeTags returns finalTags then tags, trimmed, without empties or repeats.
func MergeTags(signals *Signals) []string {
	if signals == nil {
		return []string{}
	}
	out := make([]string, 0, len(signals.FinalTags)+len(signals.Tags))
	seen := map[string]struct{}{}
	for _, group := range [][]string{signals.FinalTags, signals.Tags} {
		for _, tag := range group {
			tag = strings.TrimSpace(norm.NFC.String(tag))
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// NormalizeHousingType maps free-form (often Korean) housing labels onto the
// closed HousingType set. Empty input is treated as an apartment.
func NormalizeHousingType(raw string) types.HousingType {
	s := strings.ToLower(strings.TrimSpace(norm.NFC.String(raw)))
	switch {
	case s == "":
		return types.HousingApartment
	case strings.Contains(s, "빌라") || strings.Contains(s, "villa"):
		return types.HousingVilla
	case strings.Contains(s, "오피스텔") || strings.Contains(s, "officetel"):
		return types.HousingOfficetel
	case strings.Contains(s, "단독") || strings.Contains(s, "주택") || strings.Contains(s, "house"):
		return types.HousingHouse
	case strings.Contains(s, "아파트") || strings.Contains(s, "apartment"):
		return types.HousingApartment
	default:
		return types.HousingOther
	}
}

// NormalizeResidencePlan defaults to short when the plan is missing or
// unrecognized; short-term residence is the conservative assumption.
func NormalizeResidencePlan(raw string) types.ResidencePlan {
	switch types.ResidencePlan(strings.ToLower(strings.TrimSpace(raw))) {
	case types.ResidenceMid:
		return types.ResidenceMid
	case types.ResidenceLong:
		return types.ResidenceLong
	default:
		return types.ResidenceShort
	}
}

type tagLookup map[string]struct{}

func tagSet(tags []string) tagLookup {
	set := make(tagLookup, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}

func (s tagLookup) any(tags ...string) bool {
	for _, tag := range tags {
		if _, ok := s[tag]; ok {
			return true
		}
	}
	return false
}

func inferBudgetLevel(tags tagLookup) types.BudgetLevel {
	if tags.any("BUDGET_STRICT") {
		return types.BudgetLow
	}
	if tags.any("BUDGET_FLEXIBLE") {
		return types.BudgetHigh
	}
	return types.BudgetMid
}

func positiveFloat(v *float64, fallback float64) float64 {
	if v == nil || *v <= 0 {
		return fallback
	}
	return *v
}

func positiveInt(v *int, fallback int) int {
	if v == nil || *v <= 0 {
		return fallback
	}
	return *v
}
