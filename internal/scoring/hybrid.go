// Package scoring ranks candidate recipes for a user by combining rule-based
// fit terms with the collaborative and content signals.
package scoring

import (
	"sort"

	"budget-meal-planner/internal/profile"
	"budget-meal-planner/internal/recipe"
)

// Score terms. The total is an unnormalized sum; only relative order matters.
const (
	budgetFitBonus = 0.3
	healthBonus    = 0.2
	timeFitBonus   = 0.1
)

// DefaultContentPerSeed is how many neighbours each preferred recipe contributes.
const DefaultContentPerSeed = 5

// Recommendation is one ranked candidate.
type Recommendation struct {
	RecipeID        string          `json:"recipe_id"`
	Name            string          `json:"name"`
	Score           float64         `json:"score"`
	MealType        recipe.MealType `json:"meal_type"`
	PreparationTime float64         `json:"preparation_time"`
	CostPerServing  float64         `json:"cost_per_serving"`
	NutritionScore  float64         `json:"nutrition_score"`
	Affinity        float64         `json:"affinity,omitempty"`
	ContentScore    float64         `json:"content_score,omitempty"`
}

// AffinitySource predicts user-recipe affinity in [0,1].
type AffinitySource interface {
	Predict(userID, recipeID string) float64
}

// ContentSource aggregates similarity from a user's preferred recipes.
type ContentSource interface {
	Aggregate(seedIDs []string, perSeed int) map[string]float64
}

// HybridScorer produces ranked recommendations. It holds no mutable state and
// is safe for concurrent use as long as its sources are.
type HybridScorer struct {
	policy         CulturalPolicy
	affinity       AffinitySource
	affinityWeight float64
	content        ContentSource
	contentWeight  float64
	contentPerSeed int
}

// Option configures a HybridScorer.
type Option func(*HybridScorer)

// WithPolicy sets the cultural policy.
func WithPolicy(p CulturalPolicy) Option {
	return func(h *HybridScorer) {
		if p != nil {
			h.policy = p
		}
	}
}

// WithAffinity attaches the collaborative signal. With a zero weight the
// affinity is reported but does not change the ranking.
func WithAffinity(src AffinitySource, weight float64) Option {
	return func(h *HybridScorer) {
		h.affinity = src
		h.affinityWeight = weight
	}
}

// WithContent attaches the aggregate content-similarity signal. With a zero
// weight the content score is reported but does not change the ranking.
func WithContent(src ContentSource, perSeed int, weight float64) Option {
	return func(h *HybridScorer) {
		h.content = src
		h.contentWeight = weight
		if perSeed > 0 {
			h.contentPerSeed = perSeed
		}
	}
}

// NewHybridScorer creates a scorer using the default cultural policy unless
// another one is supplied.
func NewHybridScorer(opts ...Option) *HybridScorer {
	h := &HybridScorer{
		policy:         DefaultPolicy{},
		contentPerSeed: DefaultContentPerSeed,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Policy returns the cultural policy in use.
func (h *HybridScorer) Policy() CulturalPolicy {
	return h.policy
}

// BudgetFit is 0.3 when the cost per serving fits the user's budget range.
func BudgetFit(r recipe.Recipe, budget profile.BudgetRange) float64 {
	switch budget {
	case profile.BudgetLow:
		if r.CostPerServing <= 15 {
			return budgetFitBonus
		}
	case profile.BudgetMedium:
		if r.CostPerServing <= 25 {
			return budgetFitBonus
		}
	case profile.BudgetHigh:
		return budgetFitBonus
	}
	return 0
}

// HealthAlignment adds 0.2 for every health goal the recipe satisfies.
func HealthAlignment(r recipe.Recipe, p profile.Profile) float64 {
	var score float64
	if p.HasGoal(profile.GoalWeightLoss) && r.Nutrition.Calories <= 400 {
		score += healthBonus
	}
	if p.HasGoal(profile.GoalMuscleGain) && r.Nutrition.Protein >= 20 {
		score += healthBonus
	}
	if p.HasGoal(profile.GoalDiabetesManagement) && r.Nutrition.Sugar <= 10 {
		score += healthBonus
	}
	return score
}

// TimeFit is 0.1 when the preparation time fits the user's available time.
func TimeFit(r recipe.Recipe, available profile.AvailableTime) float64 {
	switch available {
	case profile.TimeLow:
		if r.PreparationTime <= 30 {
			return timeFitBonus
		}
	case profile.TimeMedium:
		if r.PreparationTime <= 60 {
			return timeFitBonus
		}
	case profile.TimeHigh:
		return timeFitBonus
	}
	return 0
}

// Score returns the rule-based score of one recipe.
func (h *HybridScorer) Score(r recipe.Recipe, p profile.Profile) float64 {
	return BudgetFit(r, p.Budget()) +
		HealthAlignment(r, p) +
		TimeFit(r, p.Time()) +
		h.policy.CulturalFit(r)
}

// Produce scores every candidate and returns them ordered by descending score,
// ties broken by ascending recipe id, truncated to topN. A non-positive topN
// returns every candidate.
func (h *HybridScorer) Produce(candidates []recipe.Recipe, p profile.Profile, topN int) []Recommendation {
	var content map[string]float64
	if h.content != nil && len(p.PreferredRecipeIDs) > 0 {
		content = h.content.Aggregate(p.PreferredRecipeIDs, h.contentPerSeed)
	}

	recs := make([]Recommendation, 0, len(candidates))
	for _, r := range candidates {
		rec := Recommendation{
			RecipeID:        r.ID,
			Name:            r.Name,
			Score:           h.Score(r, p),
			MealType:        r.MealType,
			PreparationTime: r.PreparationTime,
			CostPerServing:  r.CostPerServing,
			NutritionScore:  NutritionScore(r, p.HealthGoals),
			ContentScore:    content[r.ID],
		}
		if h.affinity != nil {
			rec.Affinity = h.affinity.Predict(p.UserID, r.ID)
		}
		rec.Score += h.affinityWeight*rec.Affinity + h.contentWeight*rec.ContentScore
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].RecipeID < recs[j].RecipeID
	})

	if topN > 0 && topN < len(recs) {
		recs = recs[:topN]
	}
	return recs
}
