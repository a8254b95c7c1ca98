package types

type HousingType string

const (
	HousingApartment HousingType = "apartment"
	HousingVilla     HousingType = "villa"
	HousingOfficetel HousingType = "officetel"
	HousingHouse     HousingType = "house"
	HousingOther     HousingType = "other"
)

type ResidencePlan string

const (
	ResidenceShort ResidencePlan = "short"
	ResidenceMid   ResidencePlan = "mid"
	ResidenceLong  ResidencePlan = "long"
)

type BudgetLevel string

const (
	BudgetLow  BudgetLevel = "low"
	BudgetMid  BudgetLevel = "mid"
	BudgetHigh BudgetLevel = "high"
)

// DecisionContext is the fully-defaulted view of a customer that every rule
// evaluates against. It is a value type; builders return a fresh copy per call.
type DecisionContext struct {
	Space       ContextSpace       `json:"space"`
	Household   ContextHousehold   `json:"household"`
	Personality ContextPersonality `json:"personality"`
	Budget      ContextBudget      `json:"budget"`
}

type ContextSpace struct {
	HousingType   HousingType   `json:"housingType"`
	Pyeong        float64       `json:"pyeong"`
	Rooms         int           `json:"rooms"`
	Bathrooms     int           `json:"bathrooms"`
	ResidencePlan ResidencePlan `json:"residencePlan"`
}

type ContextHousehold struct {
	HasKids bool `json:"hasKids"`
	HasPets bool `json:"hasPets"`
}

type ContextPersonality struct {
	MaintenanceSensitive bool `json:"maintenanceSensitive"`
	BudgetSensitive      bool `json:"budgetSensitive"`
	RiskAverse           bool `json:"riskAverse"`
}

type ContextBudget struct {
	Level BudgetLevel `json:"level"`
}
