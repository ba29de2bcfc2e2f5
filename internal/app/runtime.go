package app

import (
	"context"
	"errors"
	"fmt"

	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/database"
	"budget-meal-planner/internal/ghost"
	"budget-meal-planner/internal/interaction"
	"budget-meal-planner/internal/llm"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/profile"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/storage"

	"github.com/rs/zerolog"
)

// Runtime owns the resources behind an App.
type Runtime struct {
	App     *App
	DB      *database.DB
	Usage   *metrics.Store
	closers []llm.Closer
}

// Open connects the database, the model store and the optional Ghost and
// Gemini clients, then loads the engine state.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Runtime, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{DB: db, Usage: metrics.NewStore(db.SQL), closers: []llm.Closer{db}}

	models, err := storage.NewModelStore(cfg.Storage.ModelDir)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}

	var textGen llm.TextGenerator
	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, gemini)
		textGen = gemini
	} else {
		logger.Info().Msg("GEMINI_API_KEY not set, posts without a recipe card will be skipped")
	}

	deps := Deps{
		Extractor:    recipe.NewExtractor(textGen),
		Recipes:      recipe.NewRepository(db.SQL),
		Profiles:     profile.NewRepository(db.SQL),
		Interactions: interaction.NewRepository(db.SQL),
		Plans:        planner.NewPlanRepository(db.SQL),
		Models:       models,
		Usage:        rt.Usage,
	}
	if cfg.Ghost.URL != "" {
		deps.Ghost = ghost.NewClient(cfg.Ghost)
	}

	a, err := New(cfg, deps, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if err := a.Load(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.App = a
	return rt, nil
}

// Close releases every resource in reverse order of acquisition.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
