// Package planner assembles weekly meal plans from ranked recommendations and
// persists them.
package planner

import (
	"time"

	"budget-meal-planner/internal/profile"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/scoring"
	"budget-meal-planner/internal/shared"

	"github.com/rs/zerolog"
)

// Ranker produces ranked recommendations for a profile.
type Ranker interface {
	Produce(candidates []recipe.Recipe, p profile.Profile, topN int) []scoring.Recommendation
}

// SlotFilters supplies the soft filter for a meal slot.
type SlotFilters interface {
	SlotFilter(mealType recipe.MealType) (scoring.SlotFilter, bool)
}

// Generator fills every slot of a week with the top-ranked recipe.
type Generator struct {
	ranker  Ranker
	filters SlotFilters
	logger  zerolog.Logger
}

// NewGenerator creates a Generator. A nil filters value disables soft filtering.
func NewGenerator(ranker Ranker, filters SlotFilters, logger zerolog.Logger) *Generator {
	return &Generator{
		ranker:  ranker,
		filters: filters,
		logger:  logger.With().Str("component", "planner").Logger(),
	}
}

// Generate builds a draft plan with one meal per day for breakfast, lunch and
// dinner.
func (g *Generator) Generate(p profile.Profile, candidates []recipe.Recipe, weekStart time.Time) (*MealPlan, error) {
	if len(candidates) == 0 {
		return nil, &shared.ConfigError{Reason: "no candidate recipes to plan with"}
	}

	byID := make(map[string]recipe.Recipe, len(candidates))
	for _, r := range candidates {
		byID[r.ID] = r
	}

	// The pool and ranking for a slot depend only on its meal type.
	best := make(map[recipe.MealType]scoring.Recommendation, len(SlotMealTypes))
	for _, mt := range SlotMealTypes {
		pool := g.pool(candidates, mt)
		recs := g.ranker.Produce(pool, p, 1)
		if len(recs) == 0 {
			return nil, &shared.ConfigError{Reason: "no recommendation for " + string(mt)}
		}
		best[mt] = recs[0]
		g.logger.Debug().
			Str("meal_type", string(mt)).
			Int("pool", len(pool)).
			Str("recipe_id", recs[0].RecipeID).
			Float64("score", recs[0].Score).
			Msg("selected slot recipe")
	}

	plan := NewMealPlan(p.UserID, weekStart)
	for _, day := range Days {
		for _, mt := range SlotMealTypes {
			rec := best[mt]
			r := byID[rec.RecipeID]
			plan.Set(day, mt, &Meal{
				RecipeID:        rec.RecipeID,
				Name:            rec.Name,
				MealType:        mt,
				PreparationTime: rec.PreparationTime,
				CostPerServing:  rec.CostPerServing,
				IngredientCount: r.IngredientCount(),
				Category:        r.DominantCategory(),
				Score:           rec.Score,
				NutritionScore:  rec.NutritionScore,
			})
		}
	}
	return plan, nil
}

// pool returns the candidates for a meal type narrowed by the slot filter. An
// empty result falls back to the unfiltered pool at each step.
func (g *Generator) pool(candidates []recipe.Recipe, mealType recipe.MealType) []recipe.Recipe {
	base := make([]recipe.Recipe, 0, len(candidates))
	for _, r := range candidates {
		if r.MealType == mealType {
			base = append(base, r)
		}
	}
	if len(base) == 0 {
		base = candidates
	}

	if g.filters == nil {
		return base
	}
	filter, ok := g.filters.SlotFilter(mealType)
	if !ok {
		return base
	}

	filtered := make([]recipe.Recipe, 0, len(base))
	for _, r := range base {
		if filter.Match(r) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return base
	}
	return filtered
}
