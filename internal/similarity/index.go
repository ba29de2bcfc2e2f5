// Package similarity builds a content-based similarity index over the recipe
// corpus and answers nearest-neighbour queries against it.
package similarity

import (
	"fmt"
	"math"
	"sort"

	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/shared"
)

// MaxSeeds caps how many preferred recipes seed an aggregate content score.
const MaxSeeds = 3

// Neighbor is a single similarity query result.
type Neighbor struct {
	RecipeID string  `json:"recipe_id"`
	Score    float64 `json:"similarity_score"`
}

// Index is an immutable pairwise similarity matrix keyed by recipe id.
type Index struct {
	ids    []string
	pos    map[string]int
	matrix [][]float64
}

// featureVector selects the numeric features used for content similarity.
// Missing values are already zero on the typed record.
func featureVector(r recipe.Recipe) []float64 {
	return []float64{
		r.PreparationTime,
		r.CostPerServing,
		float64(r.IngredientCount()),
		r.Nutrition.Calories,
		r.Nutrition.Protein,
		r.Nutrition.Carbs,
		r.Nutrition.Fats,
		r.Nutrition.Fiber,
		indicator(r.HasTag(recipe.TagTraditional)),
		indicator(r.HasTag(recipe.TagZambian)),
		indicator(r.HasTag(recipe.TagModern)),
	}
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Build standardizes the feature columns of the corpus and computes the
// pairwise cosine similarity of every recipe pair.
func Build(recipes []recipe.Recipe) (*Index, error) {
	if len(recipes) == 0 {
		return nil, &shared.ConfigError{Reason: "recipe corpus is empty"}
	}

	n := len(recipes)
	ids := make([]string, n)
	pos := make(map[string]int, n)
	rows := make([][]float64, n)
	for i, r := range recipes {
		if r.ID == "" {
			return nil, &shared.ConfigError{Reason: fmt.Sprintf("recipe at position %d has no id", i)}
		}
		if _, dup := pos[r.ID]; dup {
			return nil, &shared.ConfigError{Reason: fmt.Sprintf("duplicate recipe id %q", r.ID)}
		}
		ids[i] = r.ID
		pos[r.ID] = i
		rows[i] = featureVector(r)
	}

	standardize(rows)

	norms := make([]float64, n)
	for i, row := range rows {
		norms[i] = math.Sqrt(dot(row, row))
	}

	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var sim float64
			if norms[i] > 0 && norms[j] > 0 {
				sim = clamp(dot(rows[i], rows[j]) / (norms[i] * norms[j]))
			}
			matrix[i][j] = sim
			matrix[j][i] = sim
		}
	}

	return &Index{ids: ids, pos: pos, matrix: matrix}, nil
}

// standardize centers every column and scales it to unit population variance.
// Zero-variance columns are centered only.
func standardize(rows [][]float64) {
	n := float64(len(rows))
	cols := len(rows[0])
	for c := 0; c < cols; c++ {
		var mean float64
		for _, row := range rows {
			mean += row[c]
		}
		mean /= n

		var variance float64
		for _, row := range rows {
			d := row[c] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / n)
		if std < 1e-12 {
			std = 1
		}

		for _, row := range rows {
			row[c] = (row[c] - mean) / std
		}
	}
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// Len returns the number of indexed recipes.
func (ix *Index) Len() int {
	return len(ix.ids)
}

// IDs returns the indexed recipe ids in corpus order.
func (ix *Index) IDs() []string {
	out := make([]string, len(ix.ids))
	copy(out, ix.ids)
	return out
}

// Similarity returns the raw matrix entry for two recipes.
func (ix *Index) Similarity(a, b string) (float64, error) {
	i, ok := ix.pos[a]
	if !ok {
		return 0, &shared.NotFoundError{Kind: "recipe", ID: a}
	}
	j, ok := ix.pos[b]
	if !ok {
		return 0, &shared.NotFoundError{Kind: "recipe", ID: b}
	}
	return ix.matrix[i][j], nil
}

// Query returns the k most similar recipes to recipeID, never including the
// recipe itself. Ties are ordered by ascending recipe id.
func (ix *Index) Query(recipeID string, k int) ([]Neighbor, error) {
	i, ok := ix.pos[recipeID]
	if !ok {
		return nil, &shared.NotFoundError{Kind: "recipe", ID: recipeID}
	}
	if k < 0 {
		k = 0
	}

	neighbors := make([]Neighbor, 0, len(ix.ids)-1)
	for j, id := range ix.ids {
		if j == i {
			continue
		}
		neighbors = append(neighbors, Neighbor{RecipeID: id, Score: ix.matrix[i][j]})
	}
	sort.Slice(neighbors, func(a, b int) bool {
		if neighbors[a].Score != neighbors[b].Score {
			return neighbors[a].Score > neighbors[b].Score
		}
		return neighbors[a].RecipeID < neighbors[b].RecipeID
	})

	if k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Aggregate sums the similarity of the top perSeed neighbours of each of the
// first MaxSeeds seed recipes. Unknown seeds are skipped.
func (ix *Index) Aggregate(seedIDs []string, perSeed int) map[string]float64 {
	scores := make(map[string]float64)
	if len(seedIDs) > MaxSeeds {
		seedIDs = seedIDs[:MaxSeeds]
	}
	for _, seed := range seedIDs {
		neighbors, err := ix.Query(seed, perSeed)
		if err != nil {
			continue
		}
		for _, nb := range neighbors {
			scores[nb.RecipeID] += nb.Score
		}
	}
	return scores
}
