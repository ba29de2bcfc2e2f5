package budget

import (
	"errors"
	"testing"
	"time"

	"budget-meal-planner/internal/cost"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/profile"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var week = time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

// uniformPlan fills breakfast, lunch and dinner of every day with a meal of
// the given cost.
func uniformPlan(cost float64) *planner.MealPlan {
	plan := planner.NewMealPlan("u1", week)
	for _, day := range planner.Days {
		for _, mt := range planner.SlotMealTypes {
			plan.Set(day, mt, &planner.Meal{RecipeID: day + "-" + string(mt), Name: string(mt) + " on " + day, MealType: mt, CostPerServing: cost})
		}
	}
	return plan
}

func TestSubstitutionRespectsCap(t *testing.T) {
	plan := planner.NewMealPlan("u1", week)
	plan.Set("monday", recipe.Dinner, &planner.Meal{Name: "a", CostPerServing: 600})
	plan.Set("tuesday", recipe.Dinner, &planner.Meal{Name: "b", CostPerServing: 600})

	_, achieved := Substitution{Rate: 0.15}.Apply(plan, 150)

	assert.InDelta(t, 90, achieved, 1e-9)
	assert.InDelta(t, 60, 150-achieved, 1e-9)

	first := plan.Meal("monday", recipe.Dinner)
	assert.True(t, first.Substituted)
	assert.InDelta(t, 510, first.CostPerServing, 1e-9)

	second := plan.Meal("tuesday", recipe.Dinner)
	assert.False(t, second.Substituted)
	assert.Equal(t, 600.0, second.CostPerServing)
}

func TestSubstitutionSkipsSubstitutedMeals(t *testing.T) {
	plan := planner.NewMealPlan("u1", week)
	plan.Set("monday", recipe.Lunch, &planner.Meal{CostPerServing: 100, Substituted: true})

	_, achieved := Substitution{Rate: 0.15}.Apply(plan, 1000)
	assert.Zero(t, achieved)
	assert.Equal(t, 100.0, plan.Meal("monday", recipe.Lunch).CostPerServing)
}

func TestSimplification(t *testing.T) {
	plan := planner.NewMealPlan("u1", week)
	plan.Set("monday", recipe.Dinner, &planner.Meal{CostPerServing: 100, IngredientCount: 10})
	plan.Set("tuesday", recipe.Dinner, &planner.Meal{CostPerServing: 100, IngredientCount: 8})
	plan.Set("wednesday", recipe.Dinner, &planner.Meal{CostPerServing: 100, IngredientCount: 12, Simplified: true})

	_, achieved := Simplification{Rate: 0.20, MaxIngredients: 8}.Apply(plan, 1000)

	assert.InDelta(t, 20, achieved, 1e-9)
	assert.True(t, plan.Meal("monday", recipe.Dinner).Simplified)
	assert.False(t, plan.Meal("tuesday", recipe.Dinner).Simplified)
	assert.Equal(t, 100.0, plan.Meal("wednesday", recipe.Dinner).CostPerServing)
}

func TestLeftovers(t *testing.T) {
	t.Run("WeekdayDinnersFeedNextLunch", func(t *testing.T) {
		plan := uniformPlan(100)
		_, achieved := Leftovers{Rate: 0.30}.Apply(plan, 10000)

		// Monday to Friday dinners replace Tuesday to Saturday lunches.
		assert.InDelta(t, 5*70, achieved, 1e-9)
		for _, day := range []string{"tuesday", "wednesday", "thursday", "friday", "saturday"} {
			lunch := plan.Meal(day, recipe.Lunch)
			assert.True(t, lunch.LeftoverBased, day)
			assert.Equal(t, recipe.Lunch, lunch.MealType)
			assert.InDelta(t, 30, lunch.CostPerServing, 1e-9)
		}
		assert.Equal(t, "dinner on friday", plan.Meal("saturday", recipe.Lunch).OriginalMeal)
		assert.False(t, plan.Meal("monday", recipe.Lunch).LeftoverBased)
		assert.False(t, plan.Meal("sunday", recipe.Lunch).LeftoverBased)
		assert.False(t, plan.Meal("monday", recipe.Dinner).LeftoverBased)
	})

	t.Run("LeftoverKeepsDinnerFlags", func(t *testing.T) {
		plan := uniformPlan(100)
		_, _ = Substitution{Rate: 0.15}.Apply(plan, 10000)
		_, _ = Leftovers{Rate: 0.30}.Apply(plan, 10000)

		lunch := plan.Meal("tuesday", recipe.Lunch)
		assert.True(t, lunch.Substituted)
		assert.InDelta(t, 85*0.3, lunch.CostPerServing, 1e-9)

		_, again := Substitution{Rate: 0.15}.Apply(plan, 10000)
		assert.Zero(t, again)
	})

	t.Run("SkipsWhenLunchIsCheaper", func(t *testing.T) {
		plan := planner.NewMealPlan("u1", week)
		plan.Set("monday", recipe.Dinner, &planner.Meal{Name: "stew", CostPerServing: 100})
		plan.Set("tuesday", recipe.Lunch, &planner.Meal{Name: "bread", CostPerServing: 20})

		_, achieved := Leftovers{Rate: 0.30}.Apply(plan, 10000)
		assert.Zero(t, achieved)
		assert.Equal(t, "bread", plan.Meal("tuesday", recipe.Lunch).Name)
	})

	t.Run("RespectsCap", func(t *testing.T) {
		plan := uniformPlan(100)
		_, achieved := Leftovers{Rate: 0.30}.Apply(plan, 150)
		assert.InDelta(t, 140, achieved, 1e-9)
		assert.False(t, plan.Meal("thursday", recipe.Lunch).LeftoverBased)
	})
}

func TestPortions(t *testing.T) {
	plan := planner.NewMealPlan("u1", week)
	plan.Set("monday", recipe.Breakfast, &planner.Meal{CostPerServing: 100})
	plan.Set("monday", recipe.Lunch, &planner.Meal{CostPerServing: 100})
	plan.Set("monday", recipe.Dinner, &planner.Meal{CostPerServing: 100})
	plan.Set("monday", recipe.Snack, &planner.Meal{CostPerServing: 100})
	plan.Set("tuesday", recipe.Breakfast, &planner.Meal{CostPerServing: 100, Substituted: true})
	plan.Set("wednesday", recipe.Breakfast, &planner.Meal{CostPerServing: 100, Simplified: true})
	plan.Set("thursday", recipe.Snack, &planner.Meal{CostPerServing: 100, LeftoverBased: true})
	plan.Set("friday", recipe.Breakfast, &planner.Meal{CostPerServing: 100, PortionOptimized: true})

	_, achieved := Portions{Factors: DefaultPortionFactors()}.Apply(plan, 1000)

	assert.InDelta(t, 10+50+10+10+50, achieved, 1e-9)
	assert.True(t, plan.Meal("monday", recipe.Breakfast).PortionOptimized)
	assert.True(t, plan.Meal("monday", recipe.Snack).PortionOptimized)
	assert.False(t, plan.Meal("monday", recipe.Lunch).PortionOptimized)
	assert.Equal(t, 100.0, plan.Meal("monday", recipe.Dinner).CostPerServing)

	// Other cost-reduction flags do not block portioning.
	for _, slot := range []struct {
		day  string
		mt   recipe.MealType
		want float64
	}{
		{"tuesday", recipe.Breakfast, 90},
		{"wednesday", recipe.Breakfast, 90},
		{"thursday", recipe.Snack, 50},
	} {
		m := plan.Meal(slot.day, slot.mt)
		assert.InDelta(t, slot.want, m.CostPerServing, 1e-9, slot.day)
		assert.True(t, m.PortionOptimized, slot.day)
	}
	assert.Equal(t, 100.0, plan.Meal("friday", recipe.Breakfast).CostPerServing)
}

type fixedStrategy struct {
	name      string
	reduction float64
	calls     *int
}

func (s fixedStrategy) Name() string { return s.name }

func (s fixedStrategy) Apply(plan *planner.MealPlan, _ float64) (*planner.MealPlan, float64) {
	*s.calls++
	return plan, s.reduction
}

func TestOptimize(t *testing.T) {
	low := profile.Profile{UserID: "u1", BudgetRange: profile.BudgetLow}

	t.Run("WithinBudgetIsUntouched", func(t *testing.T) {
		plan := uniformPlan(10)
		res, err := NewOptimizer().Optimize(plan, low, week)
		require.NoError(t, err)

		assert.True(t, res.WithinBudget)
		assert.Empty(t, res.Outcomes)
		assert.Equal(t, 210.0, res.InitialCost)
		assert.Equal(t, res.InitialCost, res.FinalCost)
		assert.Equal(t, 1050.0, res.Budget)
		assert.Zero(t, res.Remaining)
	})

	t.Run("PartialSuccess", func(t *testing.T) {
		plan := uniformPlan(100)
		res, err := NewOptimizer().Optimize(plan, low, week)
		require.NoError(t, err)

		assert.Equal(t, 2100.0, res.InitialCost)
		require.Len(t, res.Outcomes, 4)
		assert.Equal(t, "substitution", res.Outcomes[0].Strategy)
		assert.InDelta(t, 21*15, res.Outcomes[0].Reduction, 1e-9)
		assert.Zero(t, res.Outcomes[1].Reduction)
		assert.InDelta(t, 5*(85-0.3*85), res.Outcomes[2].Reduction, 1e-9)
		assert.Equal(t, "portions", res.Outcomes[3].Strategy)
		assert.InDelta(t, 7*85*0.1, res.Outcomes[3].Reduction, 1e-9)
		assert.True(t, plan.Meal("monday", recipe.Breakfast).PortionOptimized)
		assert.InDelta(t, 76.5, plan.Meal("monday", recipe.Breakfast).CostPerServing, 1e-9)

		assert.InDelta(t, 2100-315-297.5-59.5, res.FinalCost, 1e-9)
		assert.False(t, res.WithinBudget)
		assert.InDelta(t, res.FinalCost-1050, res.Remaining, 1e-9)
		assert.InDelta(t, res.InitialCost-res.FinalCost, res.Savings(), 1e-9)
		assert.InDelta(t, plan.TotalCost(), res.FinalCost, 1e-9)
	})

	t.Run("RerunFindsNothingMore", func(t *testing.T) {
		plan := uniformPlan(100)
		opt := NewOptimizer()
		first, err := opt.Optimize(plan, low, week)
		require.NoError(t, err)

		second, err := opt.Optimize(plan, low, week)
		require.NoError(t, err)
		assert.InDelta(t, first.FinalCost, second.InitialCost, 1e-9)
		assert.InDelta(t, first.FinalCost, second.FinalCost, 1e-9)
		for _, o := range second.Outcomes {
			assert.Zero(t, o.Reduction, o.Strategy)
		}
	})

	t.Run("CostNeverIncreases", func(t *testing.T) {
		for _, c := range []float64{0, 5, 49.99, 50, 75, 150, 600} {
			for _, r := range []profile.BudgetRange{profile.BudgetLow, profile.BudgetMedium, profile.BudgetHigh} {
				plan := uniformPlan(c)
				plan.Set("monday", recipe.Snack, &planner.Meal{CostPerServing: c, IngredientCount: 12})
				res, err := NewOptimizer().Optimize(plan, profile.Profile{BudgetRange: r}, week)
				require.NoError(t, err)
				assert.LessOrEqual(t, res.FinalCost, res.InitialCost)
			}
		}
	})

	t.Run("StopsOnceGapIsClosed", func(t *testing.T) {
		var firstCalls, secondCalls int
		opt := NewOptimizer(WithStrategies(
			fixedStrategy{name: "all", reduction: 1050, calls: &firstCalls},
			fixedStrategy{name: "never", reduction: 1, calls: &secondCalls},
		))
		res, err := opt.Optimize(uniformPlan(100), low, week)
		require.NoError(t, err)

		assert.Equal(t, 1, firstCalls)
		assert.Zero(t, secondCalls)
		assert.Len(t, res.Outcomes, 1)
	})

	t.Run("FamilySizeScalesBudget", func(t *testing.T) {
		family := profile.Profile{BudgetRange: profile.BudgetLow, FamilySize: 3}
		res, err := NewOptimizer().Optimize(uniformPlan(100), family, week)
		require.NoError(t, err)
		assert.Equal(t, 3150.0, res.Budget)
		assert.True(t, res.WithinBudget)
	})

	t.Run("EmptyRangeIsMedium", func(t *testing.T) {
		res, err := NewOptimizer().Optimize(uniformPlan(10), profile.Profile{}, week)
		require.NoError(t, err)
		assert.Equal(t, 1750.0, res.Budget)
	})

	t.Run("UnknownRange", func(t *testing.T) {
		_, err := NewOptimizer().Optimize(uniformPlan(10), profile.Profile{BudgetRange: "lavish"}, week)
		var vErr *shared.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "budget_range", vErr.Field)
	})

	t.Run("SeasonalProjection", func(t *testing.T) {
		predictor := cost.NewPredictor(cost.DefaultConfig())
		plan := planner.NewMealPlan("u1", week)
		plan.Set("monday", recipe.Dinner, &planner.Meal{CostPerServing: 100, Category: "vegetables"})

		res, err := NewOptimizer(WithPredictor(predictor)).Optimize(plan, low, week)
		require.NoError(t, err)
		assert.InDelta(t, 100*1.2*predictor.InflationFactor(week), res.ProjectedCost, 1e-9)
		assert.InDelta(t, 100.0/7, res.DailyAverage, 1e-9)
	})
}

func TestEnvelopes(t *testing.T) {
	envs := DefaultEnvelopes()
	env, err := envs.Lookup(profile.BudgetHigh)
	require.NoError(t, err)
	assert.Equal(t, Envelope{DailyMin: 250, DailyMax: 400, WeeklyBudget: 2800}, env)
	assert.Equal(t, 2800.0, env.Budget(0))
	assert.Equal(t, 5600.0, env.Budget(2))
}
