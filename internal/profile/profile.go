package profile

import (
	"slices"

	"budget-meal-planner/internal/shared"
)

// BudgetRange is the user's spending band.
type BudgetRange string

const (
	BudgetLow    BudgetRange = "low"
	BudgetMedium BudgetRange = "medium"
	BudgetHigh   BudgetRange = "high"
)

// AvailableTime is how much cooking time the user has.
type AvailableTime string

const (
	TimeLow    AvailableTime = "low"
	TimeMedium AvailableTime = "medium"
	TimeHigh   AvailableTime = "high"
)

// HealthGoal is a nutrition objective the scorer rewards.
type HealthGoal string

const (
	GoalWeightLoss         HealthGoal = "weight_loss"
	GoalMuscleGain         HealthGoal = "muscle_gain"
	GoalDiabetesManagement HealthGoal = "diabetes_management"
	GoalGeneralHealth      HealthGoal = "general_health"
)

// Profile is a user's planning preferences.
type Profile struct {
	UserID              string        `json:"user_id"`
	HealthGoals         []HealthGoal  `json:"health_goals"`
	DietaryRestrictions []string      `json:"dietary_restrictions"`
	BudgetRange         BudgetRange   `json:"budget_range"`
	FamilySize          int           `json:"family_size"`
	AvailableTime       AvailableTime `json:"available_time"`
	PreferredRecipeIDs  []string      `json:"preferred_recipe_ids"`
}

// HasGoal reports whether the goal is among the user's health goals.
func (p Profile) HasGoal(goal HealthGoal) bool {
	return slices.Contains(p.HealthGoals, goal)
}

// Budget returns the budget range, defaulting to medium.
func (p Profile) Budget() BudgetRange {
	if p.BudgetRange == "" {
		return BudgetMedium
	}
	return p.BudgetRange
}

// Time returns the available time, defaulting to medium.
func (p Profile) Time() AvailableTime {
	if p.AvailableTime == "" {
		return TimeMedium
	}
	return p.AvailableTime
}

// Household returns the family size, treating an unset size as one person.
func (p Profile) Household() int {
	if p.FamilySize <= 0 {
		return 1
	}
	return p.FamilySize
}

// Validate rejects unknown enum values and negative family sizes.
func (p Profile) Validate() error {
	if p.UserID == "" {
		return &shared.ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	switch p.Budget() {
	case BudgetLow, BudgetMedium, BudgetHigh:
	default:
		return &shared.ValidationError{Field: "budget_range", Reason: "unknown value " + string(p.BudgetRange)}
	}
	switch p.Time() {
	case TimeLow, TimeMedium, TimeHigh:
	default:
		return &shared.ValidationError{Field: "available_time", Reason: "unknown value " + string(p.AvailableTime)}
	}
	if p.FamilySize < 0 {
		return &shared.ValidationError{Field: "family_size", Reason: "must be positive"}
	}
	return nil
}
