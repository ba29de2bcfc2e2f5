package app

import (
	"context"
	"time"

	"budget-meal-planner/internal/ghost"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/shared"
)

// IngestReport counts what happened to the fetched posts.
type IngestReport struct {
	Fetched int
	Saved   int
	Skipped int
	Failed  int
}

// Ingest fetches recipe posts from Ghost, extracts a recipe from each changed
// post and saves it. Posts that cannot be extracted are logged and skipped.
func (a *App) Ingest(ctx context.Context) (IngestReport, error) {
	var report IngestReport
	if a.deps.Ghost == nil || a.deps.Extractor == nil {
		return report, &shared.ConfigError{Reason: "ingestion requires a Ghost client and an extractor"}
	}

	posts, err := a.deps.Ghost.FetchRecipes(ctx)
	if err != nil {
		return report, err
	}
	report.Fetched = len(posts)
	a.logger.Info().Int("posts", len(posts)).Msg("fetched recipe posts")

	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fresh, err := a.upToDate(ctx, post)
		if err != nil {
			return report, err
		}
		if fresh {
			report.Skipped++
			metrics.RecipesIngestedTotal.WithLabelValues("skipped").Inc()
			continue
		}

		usedLLM, err := a.ingestPost(ctx, post)
		if err != nil {
			report.Failed++
			metrics.RecipesIngestedTotal.WithLabelValues("failed").Inc()
			a.logger.Warn().Err(err).Str("post_id", post.ID).Str("title", post.Title).Msg("failed to ingest recipe")
		} else {
			report.Saved++
			metrics.RecipesIngestedTotal.WithLabelValues("saved").Inc()
			a.logger.Debug().Str("post_id", post.ID).Bool("llm", usedLLM).Msg("ingested recipe")
		}

		if usedLLM && a.llmInterval > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(a.llmInterval):
			}
		}
	}

	a.logger.Info().
		Int("saved", report.Saved).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("ingestion complete")
	return report, nil
}

// upToDate reports whether the stored recipe is at least as new as the post.
func (a *App) upToDate(ctx context.Context, post ghost.Post) (bool, error) {
	stored, err := a.deps.Recipes.UpdatedAt(ctx, post.ID)
	if err != nil {
		return false, err
	}
	if stored.IsZero() {
		return false, nil
	}
	updated, err := time.Parse(time.RFC3339, post.UpdatedAt)
	if err != nil {
		return false, nil
	}
	return !updated.After(stored), nil
}

func (a *App) ingestPost(ctx context.Context, post ghost.Post) (usedLLM bool, err error) {
	res, err := a.deps.Extractor.ExtractRecipe(ctx, recipe.PostData{
		ID:        post.ID,
		Title:     post.Title,
		UpdatedAt: post.UpdatedAt,
		HTML:      post.HTML,
	})
	usedLLM = !res.FromCard && res.Meta.AgentName != ""
	if usedLLM && a.deps.Usage != nil {
		if err := a.deps.Usage.RecordMeta(ctx, res.Meta); err != nil {
			a.logger.Warn().Err(err).Msg("failed to record LLM usage")
		}
	}
	if err != nil {
		return usedLLM, err
	}
	return usedLLM, a.deps.Recipes.Save(ctx, res.Recipe)
}
