package budget

import (
	"budget-meal-planner/internal/profile"
	"budget-meal-planner/internal/shared"
)

// Envelope is the spending band for a budget range, per person.
type Envelope struct {
	DailyMin     float64 `koanf:"daily_min" validate:"gte=0"`
	DailyMax     float64 `koanf:"daily_max" validate:"gtefield=DailyMin"`
	WeeklyBudget float64 `koanf:"weekly_budget" validate:"gt=0"`
}

// Envelopes maps budget ranges to their envelopes.
type Envelopes map[profile.BudgetRange]Envelope

// DefaultEnvelopes returns the built-in envelope table.
func DefaultEnvelopes() Envelopes {
	return Envelopes{
		profile.BudgetLow:    {DailyMin: 0, DailyMax: 150, WeeklyBudget: 1050},
		profile.BudgetMedium: {DailyMin: 150, DailyMax: 250, WeeklyBudget: 1750},
		profile.BudgetHigh:   {DailyMin: 250, DailyMax: 400, WeeklyBudget: 2800},
	}
}

// Lookup returns the envelope for a range. An empty range means medium.
func (e Envelopes) Lookup(r profile.BudgetRange) (Envelope, error) {
	if r == "" {
		r = profile.BudgetMedium
	}
	env, ok := e[r]
	if !ok {
		return Envelope{}, &shared.ValidationError{Field: "budget_range", Reason: "unknown value " + string(r)}
	}
	return env, nil
}

// Budget returns the weekly budget for a household.
func (e Envelope) Budget(familySize int) float64 {
	if familySize <= 0 {
		familySize = 1
	}
	return e.WeeklyBudget * float64(familySize)
}
