package models

import (
	"github.com/shopspring/decimal"
)

// Plan is a fixed catalog tier resolving a session's allotted time.
type Plan struct {
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DurationSeconds int             `json:"duration_seconds"`
	Description     string          `json:"description"`
	Popular         bool            `json:"popular"`
}

const DefaultPlanName = "20-Min Vent"

// Plans is the static catalog; plans are not persisted per-instance.
var Plans = []Plan{
	{
		Name:            "10-Min Vent",
		Price:           decimal.RequireFromString("2.99"),
		DurationSeconds: 10 * 60,
		Description:     "Quick, focused vent session",
	},
	{
		Name:            "20-Min Vent",
		Price:           decimal.RequireFromString("4.99"),
		DurationSeconds: 20 * 60,
		Description:     "Standard, comforting vent session",
		Popular:         true,
	},
	{
		Name:            "30-Min Vent",
		Price:           decimal.RequireFromString("6.99"),
		DurationSeconds: 30 * 60,
		Description:     "Extended, deep-dive vent session",
	},
}

// PlanByName resolves a catalog plan. The second return is false for
// unknown names.
func PlanByName(name string) (Plan, bool) {
	for _, p := range Plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}
