package planner

import (
	"time"

	"budget-meal-planner/internal/recipe"
)

// PlanStatus represents the lifecycle state of a meal plan.
type PlanStatus string

const (
	StatusDraft PlanStatus = "DRAFT"
	StatusFinal PlanStatus = "FINAL"
)

// Days lists the plan days in order.
var Days = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// SlotMealTypes are the meal slots filled for every day.
var SlotMealTypes = []recipe.MealType{recipe.Breakfast, recipe.Lunch, recipe.Dinner}

// Meal is a recipe assigned to a plan slot, together with the flags the budget
// optimizer sets when it changes the meal.
type Meal struct {
	RecipeID         string          `json:"recipe_id"`
	Name             string          `json:"name"`
	MealType         recipe.MealType `json:"meal_type"`
	PreparationTime  float64         `json:"preparation_time"`
	CostPerServing   float64         `json:"cost_per_serving"`
	IngredientCount  int             `json:"ingredient_count"`
	Category         string          `json:"category,omitempty"`
	Score            float64         `json:"score"`
	NutritionScore   float64         `json:"nutrition_score"`
	Substituted      bool            `json:"substituted,omitempty"`
	Simplified       bool            `json:"simplified,omitempty"`
	LeftoverBased    bool            `json:"leftover_based,omitempty"`
	PortionOptimized bool            `json:"portion_optimized,omitempty"`
	OriginalMeal     string          `json:"original_meal,omitempty"`
}

// MealPlan represents a full weekly meal plan: day → meal type → meal.
type MealPlan struct {
	ID        string                                `json:"id,omitempty"`
	UserID    string                                `json:"user_id"`
	WeekStart time.Time                             `json:"week_start"`
	Status    PlanStatus                            `json:"status"`
	Days      map[string]map[recipe.MealType]*Meal `json:"days"`
}

// NewMealPlan creates an empty plan for the week.
func NewMealPlan(userID string, weekStart time.Time) *MealPlan {
	days := make(map[string]map[recipe.MealType]*Meal, len(Days))
	for _, d := range Days {
		days[d] = make(map[recipe.MealType]*Meal)
	}
	return &MealPlan{
		UserID:    userID,
		WeekStart: weekStart,
		Status:    StatusDraft,
		Days:      days,
	}
}

// Meal returns the meal in a slot, or nil when the slot is empty.
func (p *MealPlan) Meal(day string, mealType recipe.MealType) *Meal {
	return p.Days[day][mealType]
}

// Set assigns a meal to a slot, replacing whatever was there.
func (p *MealPlan) Set(day string, mealType recipe.MealType, m *Meal) {
	if p.Days == nil {
		p.Days = make(map[string]map[recipe.MealType]*Meal, len(Days))
	}
	if p.Days[day] == nil {
		p.Days[day] = make(map[recipe.MealType]*Meal)
	}
	p.Days[day][mealType] = m
}

// Each visits every filled slot in day order, then breakfast, lunch, dinner,
// snack.
func (p *MealPlan) Each(fn func(day string, mealType recipe.MealType, m *Meal)) {
	for _, d := range Days {
		for _, mt := range recipe.MealTypes {
			if m := p.Days[d][mt]; m != nil {
				fn(d, mt, m)
			}
		}
	}
}

// TotalCost sums the cost per serving of every meal.
func (p *MealPlan) TotalCost() float64 {
	var total float64
	p.Each(func(_ string, _ recipe.MealType, m *Meal) {
		total += m.CostPerServing
	})
	return total
}

// Count returns the number of filled slots.
func (p *MealPlan) Count() int {
	var n int
	p.Each(func(string, recipe.MealType, *Meal) { n++ })
	return n
}

// NextDay returns the day after the given one, wrapping sunday to monday.
func NextDay(day string) string {
	for i, d := range Days {
		if d == day {
			return Days[(i+1)%len(Days)]
		}
	}
	return ""
}

// NextMonday returns midnight of the first Monday strictly after t.
func NextMonday(t time.Time) time.Time {
	daysUntil := (8 - int(t.Weekday())) % 7
	if daysUntil == 0 {
		daysUntil = 7
	}
	y, m, d := t.AddDate(0, 0, daysUntil).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
