package interaction

import (
	"time"

	"budget-meal-planner/internal/shared"
)

// Record is one logged user–recipe interaction. Records are immutable once logged.
type Record struct {
	UserID      string    `json:"user_id"`
	RecipeID    string    `json:"recipe_id"`
	Rating      int       `json:"rating"`
	Timestamp   time.Time `json:"timestamp"`
	RepeatCount int       `json:"repeat_count"`
}

// Engaged is the training label: a good rating or a repeat cook.
func (r Record) Engaged() bool {
	return r.Rating >= 4 || r.RepeatCount > 0
}

// Validate rejects out-of-range ratings and negative repeat counts.
func (r Record) Validate() error {
	if r.UserID == "" {
		return &shared.ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if r.RecipeID == "" {
		return &shared.ValidationError{Field: "recipe_id", Reason: "must not be empty"}
	}
	if r.Rating < 1 || r.Rating > 5 {
		return &shared.ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	if r.RepeatCount < 0 {
		return &shared.ValidationError{Field: "repeat_count", Reason: "must not be negative"}
	}
	return nil
}
