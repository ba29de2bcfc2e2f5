package scoring

import (
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/shared"
)

// Cultural policy names accepted by PolicyByName.
const (
	PolicyDefault = "default"
	PolicyZambian = "zambian"
)

// SlotFilter is a soft filter that narrows the candidate pool for one meal slot.
type SlotFilter struct {
	// MaxPreparationTime is ignored when zero.
	MaxPreparationTime float64
	// AnyTags requires at least one matching cultural tag when non-empty.
	AnyTags []string
}

// Match reports whether the recipe passes the filter.
func (f SlotFilter) Match(r recipe.Recipe) bool {
	if f.MaxPreparationTime > 0 && r.PreparationTime > f.MaxPreparationTime {
		return false
	}
	if len(f.AnyTags) > 0 && !r.HasAnyTag(f.AnyTags...) {
		return false
	}
	return true
}

// CulturalPolicy decides the cultural term of the score and the per-slot soft
// filters used when assembling a plan.
type CulturalPolicy interface {
	Name() string
	CulturalFit(r recipe.Recipe) float64
	SlotFilter(mealType recipe.MealType) (SlotFilter, bool)
}

const culturalBonus = 0.1

// DefaultPolicy rewards traditional and Zambian recipes and never filters.
type DefaultPolicy struct{}

func (DefaultPolicy) Name() string { return PolicyDefault }

func (DefaultPolicy) CulturalFit(r recipe.Recipe) float64 {
	if r.HasAnyTag(recipe.TagZambian, recipe.TagTraditional) {
		return culturalBonus
	}
	return 0
}

func (DefaultPolicy) SlotFilter(recipe.MealType) (SlotFilter, bool) {
	return SlotFilter{}, false
}

// ZambianPolicy follows Zambian eating patterns: a quick breakfast and
// traditional lunches and dinners.
type ZambianPolicy struct {
	DefaultPolicy
}

func (ZambianPolicy) Name() string { return PolicyZambian }

func (ZambianPolicy) SlotFilter(mealType recipe.MealType) (SlotFilter, bool) {
	switch mealType {
	case recipe.Breakfast:
		return SlotFilter{MaxPreparationTime: 20, AnyTags: []string{recipe.TagZambian, "quick"}}, true
	case recipe.Lunch, recipe.Dinner:
		return SlotFilter{AnyTags: []string{recipe.TagZambian, recipe.TagTraditional}}, true
	default:
		return SlotFilter{}, false
	}
}

// PolicyByName resolves a configured policy name. An empty name selects the
// default policy.
func PolicyByName(name string) (CulturalPolicy, error) {
	switch name {
	case "", PolicyDefault:
		return DefaultPolicy{}, nil
	case PolicyZambian:
		return ZambianPolicy{}, nil
	default:
		return nil, &shared.ConfigError{Reason: "unknown cultural policy " + name}
	}
}
