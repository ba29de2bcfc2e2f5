package collab

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Model is an immutable fitted embedding model. A refit produces a new Model;
// an existing one is never modified.
type Model struct {
	version    int
	dimensions int
	trainedAt  time.Time
	bias       float64
	users      map[string][]float64
	recipes    map[string][]float64
	avgUser    []float64
	avgRecipe  []float64
}

// Version is the monotonically increasing model version.
func (m *Model) Version() int { return m.version }

// Dimensions is the embedding size.
func (m *Model) Dimensions() int { return m.dimensions }

// TrainedAt is when the model was fitted.
func (m *Model) TrainedAt() time.Time { return m.trainedAt }

// Users is the number of users with a learned embedding.
func (m *Model) Users() int { return len(m.users) }

// Recipes is the number of recipes with a learned embedding.
func (m *Model) Recipes() int { return len(m.recipes) }

// Predict returns the engagement probability for a user and recipe. Unseen ids
// fall back to the population-average embedding.
func (m *Model) Predict(userID, recipeID string) float64 {
	u, ok := m.users[userID]
	if !ok {
		u = m.avgUser
	}
	v, ok := m.recipes[recipeID]
	if !ok {
		v = m.avgRecipe
	}
	return sigmoid(dot(u, v) + m.bias)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func average(vectors map[string][]float64, dims int) []float64 {
	avg := make([]float64, dims)
	if len(vectors) == 0 {
		return avg
	}
	// Summed in id order so the result does not depend on map iteration.
	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for k, x := range vectors[id] {
			avg[k] += x
		}
	}
	for k := range avg {
		avg[k] /= float64(len(vectors))
	}
	return avg
}

// Snapshot is the serializable form of a Model.
type Snapshot struct {
	Version    int                  `json:"version"`
	Dimensions int                  `json:"dimensions"`
	TrainedAt  time.Time            `json:"trained_at"`
	Bias       float64              `json:"bias"`
	Users      map[string][]float64 `json:"users"`
	Recipes    map[string][]float64 `json:"recipes"`
}

// Snapshot copies the model into its serializable form.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{
		Version:    m.version,
		Dimensions: m.dimensions,
		TrainedAt:  m.trainedAt,
		Bias:       m.bias,
		Users:      copyVectors(m.users),
		Recipes:    copyVectors(m.recipes),
	}
}

// FromSnapshot rebuilds a Model, recomputing the population averages.
func FromSnapshot(s Snapshot) (*Model, error) {
	if s.Dimensions <= 0 {
		return nil, fmt.Errorf("invalid snapshot dimensions %d", s.Dimensions)
	}
	for _, set := range []map[string][]float64{s.Users, s.Recipes} {
		for id, vec := range set {
			if len(vec) != s.Dimensions {
				return nil, fmt.Errorf("embedding for %q has %d dimensions, want %d", id, len(vec), s.Dimensions)
			}
		}
	}

	users := copyVectors(s.Users)
	recipes := copyVectors(s.Recipes)
	return &Model{
		version:    s.Version,
		dimensions: s.Dimensions,
		trainedAt:  s.TrainedAt,
		bias:       s.Bias,
		users:      users,
		recipes:    recipes,
		avgUser:    average(users, s.Dimensions),
		avgRecipe:  average(recipes, s.Dimensions),
	}, nil
}

func copyVectors(src map[string][]float64) map[string][]float64 {
	dst := make(map[string][]float64, len(src))
	for id, vec := range src {
		dst[id] = append([]float64(nil), vec...)
	}
	return dst
}
