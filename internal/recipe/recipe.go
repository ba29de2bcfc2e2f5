package recipe

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"budget-meal-planner/internal/shared"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// MealType is the slot a recipe is meant for.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

// MealTypes lists every meal type in plan order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snack}

// Cultural tags with a dedicated similarity feature.
const (
	TagTraditional = "traditional"
	TagZambian     = "zambian"
	TagModern      = "modern"
)

// NutritionFacts holds per-serving nutrition values. Missing values are zero.
type NutritionFacts struct {
	Calories float64 `json:"calories" validate:"gte=0"`
	Protein  float64 `json:"protein" validate:"gte=0"`
	Carbs    float64 `json:"carbs" validate:"gte=0"`
	Fats     float64 `json:"fats" validate:"gte=0"`
	Fiber    float64 `json:"fiber" validate:"gte=0"`
	Sugar    float64 `json:"sugar" validate:"gte=0"`
}

// Ingredient is a single line of a recipe's ingredient list.
type Ingredient struct {
	Name          string  `json:"name" validate:"required"`
	Quantity      float64 `json:"quantity" validate:"gte=0"`
	Unit          string  `json:"unit"`
	EstimatedCost float64 `json:"estimated_cost" validate:"gte=0"`
	Category      string  `json:"category,omitempty"`
}

// Recipe is a read-only recipe record as seen by the planning engine.
type Recipe struct {
	ID              string         `json:"id" validate:"required"`
	Name            string         `json:"name"`
	MealType        MealType       `json:"meal_type" validate:"omitempty,oneof=breakfast lunch dinner snack"`
	PreparationTime float64        `json:"preparation_time" validate:"gte=0"`
	CostPerServing  float64        `json:"cost_per_serving" validate:"gte=0"`
	Nutrition       NutritionFacts `json:"nutrition_facts"`
	CulturalTags    []string       `json:"cultural_tags"`
	Ingredients     []Ingredient   `json:"ingredients" validate:"dive"`
	UpdatedAt       string         `json:"updated_at,omitempty"`
}

// IngredientCount is the number of ingredient lines.
func (r Recipe) IngredientCount() int {
	return len(r.Ingredients)
}

// HasTag reports whether the recipe carries the cultural tag, ignoring case.
func (r Recipe) HasTag(tag string) bool {
	return slices.ContainsFunc(r.CulturalTags, func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

// HasAnyTag reports whether the recipe carries at least one of the tags.
func (r Recipe) HasAnyTag(tags ...string) bool {
	for _, tag := range tags {
		if r.HasTag(tag) {
			return true
		}
	}
	return false
}

// DominantCategory returns the category of the most expensive ingredient, or ""
// when no ingredient is categorized.
func (r Recipe) DominantCategory() string {
	var (
		category string
		best     = -1.0
	)
	for _, ing := range r.Ingredients {
		if ing.Category == "" {
			continue
		}
		if ing.EstimatedCost > best {
			best = ing.EstimatedCost
			category = ing.Category
		}
	}
	return category
}

// IngredientsCost sums the estimated cost of every ingredient line.
func (r Recipe) IngredientsCost() float64 {
	var total float64
	for _, ing := range r.Ingredients {
		total += ing.EstimatedCost
	}
	return total
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the record for malformed values. Absent optional fields are
// never an error.
func (r Recipe) Validate() error {
	err := getValidator().Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &shared.ValidationError{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("failed %q constraint (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &shared.ValidationError{Reason: err.Error()}
}

// Decode parses a JSON recipe record. Type mismatches such as a non-numeric
// cost are reported as validation errors.
func Decode(data []byte) (Recipe, error) {
	rec, err := decodeJSON(data)
	if err != nil {
		return Recipe{}, err
	}
	if err := rec.Validate(); err != nil {
		return Recipe{}, err
	}
	return rec, nil
}

func decodeJSON(data []byte) (Recipe, error) {
	var rec Recipe
	if err := json.Unmarshal(data, &rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Recipe{}, &shared.ValidationError{Field: typeErr.Field, Reason: "expected " + typeErr.Type.String()}
		}
		return Recipe{}, &shared.ValidationError{Reason: err.Error()}
	}
	return rec, nil
}
