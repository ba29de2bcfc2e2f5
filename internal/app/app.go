// Package app wires the repositories, the recommendation engine and the budget
// optimizer into the operations exposed by the CLI and the Telegram bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"budget-meal-planner/internal/budget"
	"budget-meal-planner/internal/collab"
	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/cost"
	"budget-meal-planner/internal/ghost"
	"budget-meal-planner/internal/interaction"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/profile"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/scoring"
	"budget-meal-planner/internal/shared"
	"budget-meal-planner/internal/similarity"
	"budget-meal-planner/internal/storage"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// keptModelVersions is how many model snapshots survive a refresh.
const keptModelVersions = 5

// Deps are the collaborators of an App. Ghost and Extractor may be nil when
// ingestion and publishing are not used.
type Deps struct {
	Ghost        ghost.Client
	Extractor    *recipe.Extractor
	Recipes      *recipe.Repository
	Profiles     *profile.Repository
	Interactions *interaction.Repository
	Plans        *planner.PlanRepository
	Models       *storage.ModelStore
	Usage        *metrics.Store
}

// App holds the application's dependencies and the current engine state.
type App struct {
	cfg       *config.Config
	deps      Deps
	logger    zerolog.Logger
	collab    *collab.Scorer
	predictor *cost.Predictor
	optimizer *budget.Optimizer
	policy    scoring.CulturalPolicy
	index     atomic.Pointer[similarity.Index]
	now       func() time.Time

	// llmInterval spaces LLM extractions to stay under the provider rate limit.
	llmInterval time.Duration
}

// New creates an App from the loaded configuration.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*App, error) {
	policy, err := scoring.PolicyByName(cfg.Engine.CulturalPolicy)
	if err != nil {
		return nil, err
	}

	predictor := cost.NewPredictor(cfg.Engine.Cost)
	return &App{
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With().Str("component", "app").Logger(),
		collab:    collab.NewScorer(cfg.Engine.Collab, logger),
		predictor: predictor,
		optimizer: budget.NewOptimizer(
			budget.WithEnvelopes(cfg.Engine.BudgetEnvelopes()),
			budget.WithPredictor(predictor),
			budget.WithLogger(logger),
		),
		policy:      policy,
		now:         time.Now,
		llmInterval: 5 * time.Second,
	}, nil
}

// Load restores the latest model snapshot and builds the similarity index from
// the stored recipes. A missing snapshot or an empty corpus is a cold start.
func (a *App) Load(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap, err := a.deps.Models.LoadLatest()
		var nf *shared.NotFoundError
		if errors.As(err, &nf) {
			a.logger.Info().Msg("no model snapshot found, starting cold")
			return nil
		}
		if err != nil {
			return err
		}
		m, err := collab.FromSnapshot(*snap)
		if err != nil {
			return fmt.Errorf("failed to restore model snapshot: %w", err)
		}
		a.collab.Swap(m)
		metrics.ModelVersion.Set(float64(m.Version()))
		a.logger.Info().Int("version", m.Version()).Int("users", m.Users()).Msg("restored model snapshot")
		return nil
	})

	g.Go(func() error {
		recipes, err := a.deps.Recipes.List(gctx)
		if err != nil {
			return err
		}
		return a.buildIndex(recipes)
	})

	return g.Wait()
}

// Refresh rebuilds the similarity index and refits the collaborative model
// from the stored recipes and interactions, then saves a model snapshot.
func (a *App) Refresh(ctx context.Context) (*collab.Model, error) {
	var (
		recipes []recipe.Recipe
		records []interaction.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recipes, err = a.deps.Recipes.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = a.deps.Interactions.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := a.buildIndex(recipes); err != nil {
		return nil, err
	}

	start := time.Now()
	m := a.collab.Fit(records, a.cfg.Engine.Seed)
	metrics.RecordModelFit(m.Version(), time.Since(start))

	if err := a.deps.Models.Save(m.Snapshot()); err != nil {
		return m, err
	}
	if err := a.deps.Models.RemoveStaleVersions(keptModelVersions); err != nil {
		a.logger.Warn().Err(err).Msg("failed to remove stale model snapshots")
	}

	a.logger.Info().
		Int("recipes", len(recipes)).
		Int("interactions", len(records)).
		Int("version", m.Version()).
		Msg("refreshed recommendation models")
	return m, nil
}

func (a *App) buildIndex(recipes []recipe.Recipe) error {
	if len(recipes) == 0 {
		a.index.Store(nil)
		a.logger.Info().Msg("recipe corpus is empty, similarity index disabled")
		return nil
	}
	ix, err := similarity.Build(recipes)
	if err != nil {
		return fmt.Errorf("failed to build similarity index: %w", err)
	}
	a.index.Store(ix)
	return nil
}

// scorer assembles a hybrid scorer over the current model and index.
func (a *App) scorer() *scoring.HybridScorer {
	engine := a.cfg.Engine
	opts := []scoring.Option{
		scoring.WithPolicy(a.policy),
		scoring.WithAffinity(a.collab, engine.AffinityWeight),
	}
	if ix := a.index.Load(); ix != nil {
		opts = append(opts, scoring.WithContent(ix, engine.ContentPerSeed, engine.ContentWeight))
	}
	return scoring.NewHybridScorer(opts...)
}

// profileFor loads the user's profile and fills unset preferences from the
// interaction history.
func (a *App) profileFor(ctx context.Context, userID string, recipes map[string]recipe.Recipe) (profile.Profile, error) {
	p, err := a.deps.Profiles.GetOrDefault(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}
	if len(p.PreferredRecipeIDs) > 0 && p.AvailableTime != "" {
		return p, nil
	}

	history, err := a.deps.Interactions.ListByUser(ctx, userID)
	if err != nil {
		return profile.Profile{}, err
	}
	return p.WithLearned(profile.Learn(history, recipes)), nil
}

// Recommend returns the top-ranked recipes for a user.
func (a *App) Recommend(ctx context.Context, userID string, topN int) ([]scoring.Recommendation, error) {
	recipes, err := a.deps.Recipes.List(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.profileFor(ctx, userID, byID(recipes))
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = a.cfg.Engine.TopN
	}
	return a.scorer().Produce(allowed(recipes, p.DietaryRestrictions), p, topN), nil
}

// Similar returns the k recipes most similar to recipeID.
func (a *App) Similar(recipeID string, k int) ([]similarity.Neighbor, error) {
	ix := a.index.Load()
	if ix == nil {
		return nil, &shared.ConfigError{Reason: "similarity index is not built, run a refresh first"}
	}
	return ix.Query(recipeID, k)
}

// PredictCost projects an ingredient's cost on a date.
func (a *App) PredictCost(name, category string, quantity float64, date time.Time) (float64, error) {
	return a.predictor.Predict(name, category, quantity, date)
}

// RecordInteraction appends a rating to the interaction log. The model picks
// it up on the next refresh.
func (a *App) RecordInteraction(ctx context.Context, rec interaction.Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = a.now()
	}
	return a.deps.Interactions.Append(ctx, rec)
}

// Usage returns the daily LLM token usage of the last days.
func (a *App) Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	return a.deps.Usage.GetDailyUsage(ctx, days)
}

// byID indexes recipes by id.
func byID(recipes []recipe.Recipe) map[string]recipe.Recipe {
	m := make(map[string]recipe.Recipe, len(recipes))
	for _, r := range recipes {
		m[r.ID] = r
	}
	return m
}

// allowed drops recipes with an ingredient named by a dietary restriction.
func allowed(recipes []recipe.Recipe, restrictions []string) []recipe.Recipe {
	if len(restrictions) == 0 {
		return recipes
	}
	out := make([]recipe.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if !restricted(r, restrictions) {
			out = append(out, r)
		}
	}
	return out
}

func restricted(r recipe.Recipe, restrictions []string) bool {
	for _, ing := range r.Ingredients {
		name := strings.ToLower(ing.Name)
		for _, x := range restrictions {
			x = strings.ToLower(strings.TrimSpace(x))
			if x != "" && strings.Contains(name, x) {
				return true
			}
		}
	}
	return false
}
