package profile

import (
	"cmp"
	"slices"
	"strings"

	"budget-meal-planner/internal/interaction"
	"budget-meal-planner/internal/recipe"
)

// Preferences are the tastes learned from a user's interaction history.
type Preferences struct {
	PreferredRecipeIDs []string      `json:"preferred_recipe_ids"`
	TopIngredients     []string      `json:"top_ingredients"`
	TopCuisines        []string      `json:"top_cuisines"`
	AvoidedIngredients []string      `json:"avoided_ingredients"`
	AvailableTime      AvailableTime `json:"available_time"`
}

const (
	topIngredients = 10
	topCuisines    = 5
	topAvoided     = 5
)

// LearnPreferredRecipes returns the ids of engaged recipes, most recent first,
// without duplicates. A limit of zero or less returns them all.
func LearnPreferredRecipes(records []interaction.Record, limit int) []string {
	engaged := make([]interaction.Record, 0, len(records))
	for _, r := range records {
		if r.Engaged() {
			engaged = append(engaged, r)
		}
	}
	slices.SortStableFunc(engaged, func(a, b interaction.Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	seen := make(map[string]bool, len(engaged))
	var ids []string
	for _, r := range engaged {
		if seen[r.RecipeID] {
			continue
		}
		seen[r.RecipeID] = true
		ids = append(ids, r.RecipeID)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids
}

// InferAvailableTime buckets the mean preparation time of engaged recipes.
// Recipes without a preparation time are ignored; no data means medium.
func InferAvailableTime(records []interaction.Record, recipes map[string]recipe.Recipe) AvailableTime {
	var (
		sum float64
		n   int
	)
	for _, r := range records {
		if !r.Engaged() {
			continue
		}
		rec, ok := recipes[r.RecipeID]
		if !ok || rec.PreparationTime <= 0 {
			continue
		}
		sum += rec.PreparationTime
		n++
	}
	if n == 0 {
		return TimeMedium
	}

	switch mean := sum / float64(n); {
	case mean <= 30:
		return TimeLow
	case mean <= 60:
		return TimeMedium
	default:
		return TimeHigh
	}
}

// Learn summarizes one user's history. Ingredients of engaged recipes count
// towards TopIngredients, ingredients of recipes rated 2 or lower towards
// AvoidedIngredients.
func Learn(records []interaction.Record, recipes map[string]recipe.Recipe) Preferences {
	liked := make(map[string]int)
	cuisines := make(map[string]int)
	avoided := make(map[string]int)

	for _, r := range records {
		rec, ok := recipes[r.RecipeID]
		if !ok {
			continue
		}
		if r.Engaged() {
			for _, ing := range rec.Ingredients {
				liked[strings.ToLower(ing.Name)]++
			}
			for _, tag := range rec.CulturalTags {
				cuisines[strings.ToLower(tag)]++
			}
		}
		if r.Rating <= 2 {
			for _, ing := range rec.Ingredients {
				avoided[strings.ToLower(ing.Name)]++
			}
		}
	}

	return Preferences{
		PreferredRecipeIDs: LearnPreferredRecipes(records, 0),
		TopIngredients:     mostCommon(liked, topIngredients),
		TopCuisines:        mostCommon(cuisines, topCuisines),
		AvoidedIngredients: mostCommon(avoided, topAvoided),
		AvailableTime:      InferAvailableTime(records, recipes),
	}
}

// WithLearned fills the preferred recipes and available time of a profile
// from learned preferences when they are unset.
func (p Profile) WithLearned(prefs Preferences) Profile {
	if len(p.PreferredRecipeIDs) == 0 {
		p.PreferredRecipeIDs = prefs.PreferredRecipeIDs
	}
	if p.AvailableTime == "" {
		p.AvailableTime = prefs.AvailableTime
	}
	return p
}

// mostCommon returns up to n keys by descending count, ties by key.
func mostCommon(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
