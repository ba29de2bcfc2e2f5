package budget

import (
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/recipe"
)

// Strategy is a single cost-reduction pass. Apply changes meals in place and
// returns the plan with the total reduction it achieved, which never exceeds
// cap.
type Strategy interface {
	Name() string
	Apply(plan *planner.MealPlan, cap float64) (*planner.MealPlan, float64)
}

// DefaultStrategies returns the strategies in the order they run.
func DefaultStrategies() []Strategy {
	return []Strategy{
		Substitution{Rate: 0.15},
		Simplification{Rate: 0.20, MaxIngredients: 8},
		Leftovers{Rate: 0.30},
		Portions{Factors: DefaultPortionFactors()},
	}
}

// Substitution swaps in cheaper ingredients on every meal not already
// substituted.
type Substitution struct {
	Rate float64
}

func (Substitution) Name() string { return "substitution" }

func (s Substitution) Apply(plan *planner.MealPlan, cap float64) (*planner.MealPlan, float64) {
	var total float64
	plan.Each(func(_ string, _ recipe.MealType, m *planner.Meal) {
		if m.Substituted {
			return
		}
		reduction := m.CostPerServing * s.Rate
		if reduction <= 0 || total+reduction > cap {
			return
		}
		m.CostPerServing -= reduction
		m.Substituted = true
		total += reduction
	})
	return plan, total
}

// Simplification trims meals with many ingredients.
type Simplification struct {
	Rate           float64
	MaxIngredients int
}

func (Simplification) Name() string { return "simplification" }

func (s Simplification) Apply(plan *planner.MealPlan, cap float64) (*planner.MealPlan, float64) {
	var total float64
	plan.Each(func(_ string, _ recipe.MealType, m *planner.Meal) {
		if m.Simplified || m.IngredientCount <= s.MaxIngredients {
			return
		}
		reduction := m.CostPerServing * s.Rate
		if total+reduction > cap {
			return
		}
		m.CostPerServing -= reduction
		m.Simplified = true
		total += reduction
	})
	return plan, total
}

// leftoverDays are the dinners whose leftovers feed the next day's lunch.
var leftoverDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

// Leftovers replaces a weekday's next-day lunch with the previous dinner.
type Leftovers struct {
	Rate float64
}

func (Leftovers) Name() string { return "leftovers" }

func (s Leftovers) Apply(plan *planner.MealPlan, cap float64) (*planner.MealPlan, float64) {
	var total float64
	for _, day := range leftoverDays {
		dinner := plan.Meal(day, recipe.Dinner)
		next := planner.NextDay(day)
		lunch := plan.Meal(next, recipe.Lunch)
		if dinner == nil || lunch == nil || lunch.LeftoverBased {
			continue
		}

		cost := dinner.CostPerServing * s.Rate
		reduction := lunch.CostPerServing - cost
		if reduction <= 0 || total+reduction > cap {
			continue
		}

		// The leftover keeps the dinner's flags: its cost is derived from the
		// dinner's already reduced cost.
		leftover := *dinner
		leftover.MealType = recipe.Lunch
		leftover.CostPerServing = cost
		leftover.LeftoverBased = true
		leftover.OriginalMeal = dinner.Name
		plan.Set(next, recipe.Lunch, &leftover)
		total += reduction
	}
	return plan, total
}

// DefaultPortionFactors returns the serving multiplier per meal type.
func DefaultPortionFactors() map[recipe.MealType]float64 {
	return map[recipe.MealType]float64{
		recipe.Breakfast: 0.9,
		recipe.Lunch:     1.0,
		recipe.Dinner:    1.1,
		recipe.Snack:     0.5,
	}
}

// Portions scales every meal not yet portioned by a per-meal-type factor.
// Only factors below one reduce cost.
type Portions struct {
	Factors map[recipe.MealType]float64
}

func (Portions) Name() string { return "portions" }

func (s Portions) Apply(plan *planner.MealPlan, cap float64) (*planner.MealPlan, float64) {
	var total float64
	plan.Each(func(_ string, mt recipe.MealType, m *planner.Meal) {
		if m.PortionOptimized {
			return
		}
		factor, ok := s.Factors[mt]
		if !ok {
			factor = 1.0
		}
		reduction := m.CostPerServing * (1 - factor)
		if reduction <= 0 || total+reduction > cap {
			return
		}
		m.CostPerServing -= reduction
		m.PortionOptimized = true
		total += reduction
	})
	return plan, total
}
