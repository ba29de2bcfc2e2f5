package recipe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"budget-meal-planner/internal/llm"
	"budget-meal-planner/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTextGen struct {
	content string
	err     error
	prompts []string
}

func (f *fakeTextGen) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return llm.ContentResponse{}, f.err
	}
	return llm.ContentResponse{
		Content: f.content,
		Usage:   shared.TokenUsage{PromptTokens: 120, CompletionTokens: 40, Model: "fake"},
	}, nil
}

const cardHTML = `
<h1>Nshima with Ifisashi</h1>
<p>A Sunday classic.</p>
<div class="recipe-card" data-meal-type="Dinner" data-prep-time="45" data-cost="" data-tags="Zambian, traditional">
  <ul class="ingredients">
    <li data-quantity="0.5" data-unit="kg" data-cost="8.5" data-category="grains">maize_meal</li>
    <li data-quantity="1" data-unit="bunch" data-cost="10" data-category="vegetables">rape_leaves</li>
  </ul>
  <dl class="nutrition">
    <dt>calories</dt><dd>450</dd>
    <dt>protein</dt><dd>12</dd>
    <dt>fiber</dt><dd>6</dd>
  </dl>
</div>`

func TestParseRecipeCard(t *testing.T) {
	t.Run("Card", func(t *testing.T) {
		rec, found, err := ParseRecipeCard(cardHTML)
		require.NoError(t, err)
		require.True(t, found)

		assert.Equal(t, "Nshima with Ifisashi", rec.Name)
		assert.Equal(t, Dinner, rec.MealType)
		assert.Equal(t, 45.0, rec.PreparationTime)
		assert.Zero(t, rec.CostPerServing)
		assert.Equal(t, []string{"zambian", "traditional"}, rec.CulturalTags)
		require.Len(t, rec.Ingredients, 2)
		assert.Equal(t, Ingredient{Name: "maize_meal", Quantity: 0.5, Unit: "kg", EstimatedCost: 8.5, Category: "grains"}, rec.Ingredients[0])
		assert.Equal(t, NutritionFacts{Calories: 450, Protein: 12, Fiber: 6}, rec.Nutrition)
	})

	t.Run("NoCard", func(t *testing.T) {
		_, found, err := ParseRecipeCard("<p>Just a story.</p>")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("NonNumericCost", func(t *testing.T) {
		_, found, err := ParseRecipeCard(`<div class="recipe-card" data-cost="cheap"></div>`)
		assert.True(t, found)
		var vErr *shared.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "data-cost", vErr.Field)
	})
}

func TestExtractRecipe(t *testing.T) {
	ctx := context.Background()
	post := PostData{ID: "p1", Title: "Nshima", UpdatedAt: "2025-03-01T10:00:00Z", HTML: cardHTML}

	t.Run("CardSkipsLLM", func(t *testing.T) {
		gen := &fakeTextGen{}
		res, err := NewExtractor(gen).ExtractRecipe(ctx, post)
		require.NoError(t, err)

		assert.True(t, res.FromCard)
		assert.Empty(t, gen.prompts)
		assert.Equal(t, "p1", res.Recipe.ID)
		assert.Equal(t, post.UpdatedAt, res.Recipe.UpdatedAt)
		assert.Equal(t, 18.5, res.Recipe.CostPerServing)
	})

	t.Run("LLMFallback", func(t *testing.T) {
		gen := &fakeTextGen{content: "```json\n" + `{"name": "Beans stew", "meal_type": "lunch", "preparation_time": 60, "cost_per_serving": 15,
			"ingredients": [{"name": "beans", "quantity": 1, "unit": "cup", "estimated_cost": 9, "category": "protein"}]}` + "\n```"}
		res, err := NewExtractor(gen).ExtractRecipe(ctx, PostData{ID: "p2", Title: "Stew", HTML: "<p>Beans, slowly.</p>"})
		require.NoError(t, err)

		require.Len(t, gen.prompts, 1)
		assert.True(t, strings.Contains(gen.prompts[0], "Title: Stew"))
		assert.False(t, res.FromCard)
		assert.Equal(t, "p2", res.Recipe.ID)
		assert.Equal(t, Lunch, res.Recipe.MealType)
		assert.Equal(t, AgentName, res.Meta.AgentName)
		assert.Equal(t, 120, res.Meta.Usage.PromptTokens)
	})

	t.Run("LLMReturnsBadTypes", func(t *testing.T) {
		gen := &fakeTextGen{content: `{"name": "Stew", "cost_per_serving": "cheap"}`}
		res, err := NewExtractor(gen).ExtractRecipe(ctx, PostData{ID: "p3", HTML: "<p>x</p>"})
		var vErr *shared.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, AgentName, res.Meta.AgentName)
	})

	t.Run("LLMError", func(t *testing.T) {
		gen := &fakeTextGen{err: errors.New("quota exceeded")}
		_, err := NewExtractor(gen).ExtractRecipe(ctx, PostData{ID: "p4", HTML: "<p>x</p>"})
		assert.ErrorContains(t, err, "quota exceeded")
	})

	t.Run("NoCardNoLLM", func(t *testing.T) {
		_, err := NewExtractor(nil).ExtractRecipe(ctx, PostData{ID: "p5", HTML: "<p>x</p>"})
		assert.ErrorIs(t, err, ErrNoRecipeCard)
	})

	t.Run("InvalidCardMealType", func(t *testing.T) {
		html := `<div class="recipe-card" data-meal-type="brunch"></div>`
		_, err := NewExtractor(nil).ExtractRecipe(ctx, PostData{ID: "p6", HTML: html})
		var vErr *shared.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})
}
