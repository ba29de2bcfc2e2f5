// Package collab learns user and recipe embeddings from the interaction log
// and predicts user-recipe affinity.
package collab

import (
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"budget-meal-planner/internal/interaction"

	"github.com/rs/zerolog"
)

// Config holds the training hyper-parameters.
type Config struct {
	// Dimensions is the embedding size.
	Dimensions int `koanf:"dimensions" validate:"gt=0"`
	// Epochs bounds the training time.
	Epochs         int     `koanf:"epochs" validate:"gt=0"`
	LearningRate   float64 `koanf:"learning_rate" validate:"gt=0"`
	Regularization float64 `koanf:"regularization" validate:"gte=0"`
}

// DefaultConfig returns the default training hyper-parameters.
func DefaultConfig() Config {
	return Config{
		Dimensions:     50,
		Epochs:         100,
		LearningRate:   0.05,
		Regularization: 0.01,
	}
}

// Scorer holds the current model and swaps it atomically on refit.
// Predict is safe for concurrent use; Fit must have a single caller at a time.
type Scorer struct {
	cfg    Config
	logger zerolog.Logger
	model  atomic.Pointer[Model]
	now    func() time.Time
}

// NewScorer creates a Scorer with no fitted model.
func NewScorer(cfg Config, logger zerolog.Logger) *Scorer {
	def := DefaultConfig()
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = def.Dimensions
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = def.Epochs
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.Regularization < 0 {
		cfg.Regularization = def.Regularization
	}
	return &Scorer{
		cfg:    cfg,
		logger: logger.With().Str("component", "collab").Logger(),
		now:    time.Now,
	}
}

// Model returns the current model, or nil before the first fit.
func (s *Scorer) Model() *Model {
	return s.model.Load()
}

// Swap installs a previously fitted model, e.g. one loaded from a snapshot.
func (s *Scorer) Swap(m *Model) {
	s.model.Store(m)
}

// Predict returns the affinity probability in [0,1]. Before any fit every
// prediction is 0.5.
func (s *Scorer) Predict(userID, recipeID string) float64 {
	m := s.model.Load()
	if m == nil {
		return 0.5
	}
	return m.Predict(userID, recipeID)
}

type sample struct {
	user   int
	recipe int
	label  float64
}

// Fit trains a logistic matrix factorization on the engagement label and
// installs the result as the current model. Identical records, seed and
// config always produce an identical model.
func (s *Scorer) Fit(records []interaction.Record, seed int64) *Model {
	start := time.Now()

	ordered := make([]interaction.Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.RecipeID != b.RecipeID {
			return a.RecipeID < b.RecipeID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Rating != b.Rating {
			return a.Rating < b.Rating
		}
		return a.RepeatCount < b.RepeatCount
	})

	userIDs := uniqueSorted(ordered, func(r interaction.Record) string { return r.UserID })
	recipeIDs := uniqueSorted(ordered, func(r interaction.Record) string { return r.RecipeID })
	userIdx := indexOf(userIDs)
	recipeIdx := indexOf(recipeIDs)

	dims := s.cfg.Dimensions
	//nolint:gosec // math/rand is fine for weight initialization
	rng := rand.New(rand.NewSource(seed))
	users := initFactors(rng, len(userIDs), dims)
	recipes := initFactors(rng, len(recipeIDs), dims)

	samples := make([]sample, len(ordered))
	for i, r := range ordered {
		label := 0.0
		if r.Engaged() {
			label = 1.0
		}
		samples[i] = sample{user: userIdx[r.UserID], recipe: recipeIdx[r.RecipeID], label: label}
	}

	lr, reg := s.cfg.LearningRate, s.cfg.Regularization
	var bias float64
	for epoch := 0; epoch < s.cfg.Epochs; epoch++ {
		rng.Shuffle(len(samples), func(i, j int) {
			samples[i], samples[j] = samples[j], samples[i]
		})
		for _, smp := range samples {
			u, v := users[smp.user], recipes[smp.recipe]
			g := smp.label - sigmoid(dot(u, v)+bias)
			for k := 0; k < dims; k++ {
				uk, vk := u[k], v[k]
				u[k] += lr * (g*vk - reg*uk)
				v[k] += lr * (g*uk - reg*vk)
			}
			bias += lr * g
		}
	}

	userVecs := make(map[string][]float64, len(userIDs))
	for i, id := range userIDs {
		userVecs[id] = users[i]
	}
	recipeVecs := make(map[string][]float64, len(recipeIDs))
	for i, id := range recipeIDs {
		recipeVecs[id] = recipes[i]
	}

	version := 1
	if prev := s.model.Load(); prev != nil {
		version = prev.version + 1
	}
	m := &Model{
		version:    version,
		dimensions: dims,
		trainedAt:  s.now(),
		bias:       bias,
		users:      userVecs,
		recipes:    recipeVecs,
		avgUser:    average(userVecs, dims),
		avgRecipe:  average(recipeVecs, dims),
	}
	s.model.Store(m)

	s.logger.Debug().
		Int("version", version).
		Int("records", len(records)).
		Int("users", len(userIDs)).
		Int("recipes", len(recipeIDs)).
		Dur("took", time.Since(start)).
		Msg("fitted collaborative model")
	return m
}

func uniqueSorted(records []interaction.Record, key func(interaction.Record) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func indexOf(ids []string) map[string]int {
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}

func initFactors(rng *rand.Rand, n, dims int) [][]float64 {
	factors := make([][]float64, n)
	for i := range factors {
		factors[i] = make([]float64, dims)
		for k := range factors[i] {
			factors[i][k] = (rng.Float64() - 0.5) * 0.1
		}
	}
	return factors
}
