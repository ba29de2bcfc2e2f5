package scoring

import (
	"math"

	"budget-meal-planner/internal/profile"
	"budget-meal-planner/internal/recipe"
)

// NutritionScore grades how well a recipe serves the user's health goals, in
// [0,1]. It is reported alongside the ranking score but never ranks.
func NutritionScore(r recipe.Recipe, goals []profile.HealthGoal) float64 {
	n := r.Nutrition
	p := profile.Profile{HealthGoals: goals}
	var score float64

	if p.HasGoal(profile.GoalWeightLoss) {
		switch {
		case n.Calories <= 400:
			score += 0.25
		case n.Calories <= 600:
			score += 0.15
		}
	}
	if p.HasGoal(profile.GoalMuscleGain) {
		switch {
		case n.Protein >= 25:
			score += 0.25
		case n.Protein >= 15:
			score += 0.15
		}
	}
	if p.HasGoal(profile.GoalDiabetesManagement) {
		switch {
		case n.Carbs <= 30 && n.Fiber >= 5:
			score += 0.25
		case n.Carbs <= 50 && n.Fiber >= 3:
			score += 0.15
		}
	}
	if p.HasGoal(profile.GoalGeneralHealth) {
		balanced := n.Protein >= 10 && n.Protein <= 30 &&
			n.Carbs >= 40 && n.Carbs <= 60 &&
			n.Fats >= 20 && n.Fats <= 40 &&
			n.Fiber >= 5
		if balanced {
			score += 0.25
		}
	}

	return math.Min(score, 1.0)
}
