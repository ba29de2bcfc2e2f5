package recipe

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"budget-meal-planner/internal/llm"
	"budget-meal-planner/internal/shared"

	"github.com/PuerkitoBio/goquery"
)

//go:embed extractor_prompt.md
var extractorPrompt string

var extractorTemplate = template.Must(template.New("extractor").Parse(extractorPrompt))

// AgentName identifies the extractor in LLM usage metrics.
const AgentName = "Extractor"

// PostData is the raw post a recipe is extracted from.
type PostData struct {
	ID        string
	Title     string
	UpdatedAt string
	HTML      string
}

// ExtractorResult is an extracted recipe with the metadata of the LLM call,
// if one was made.
type ExtractorResult struct {
	Recipe Recipe
	Meta   shared.AgentMeta
	// FromCard is true when the recipe came from a structured recipe card.
	FromCard bool
}

// ErrNoRecipeCard is returned when a post has no recipe card and no LLM is
// configured.
var ErrNoRecipeCard = errors.New("post has no recipe card")

// Extractor turns posts into recipes. Structured recipe cards are parsed
// directly; other posts are normalized by the LLM when one is available.
type Extractor struct {
	textGen llm.TextGenerator
}

// NewExtractor creates an Extractor. A nil textGen disables the LLM fallback.
func NewExtractor(textGen llm.TextGenerator) *Extractor {
	return &Extractor{textGen: textGen}
}

// ExtractRecipe extracts and validates a recipe from a post.
func (e *Extractor) ExtractRecipe(ctx context.Context, data PostData) (ExtractorResult, error) {
	rec, found, err := ParseRecipeCard(data.HTML)
	if err != nil {
		return ExtractorResult{}, err
	}

	result := ExtractorResult{FromCard: found}
	if found {
		result.Recipe = rec
	} else {
		if e.textGen == nil {
			return ExtractorResult{}, ErrNoRecipeCard
		}
		result, err = e.runLLM(ctx, data)
		if err != nil {
			return result, err
		}
	}

	result.Recipe.ID = data.ID
	result.Recipe.UpdatedAt = data.UpdatedAt
	if result.Recipe.Name == "" {
		result.Recipe.Name = data.Title
	}
	if result.Recipe.CostPerServing == 0 {
		result.Recipe.CostPerServing = result.Recipe.IngredientsCost()
	}
	if err := result.Recipe.Validate(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Extractor) runLLM(ctx context.Context, data PostData) (ExtractorResult, error) {
	start := time.Now()

	var buf bytes.Buffer
	if err := extractorTemplate.Execute(&buf, data); err != nil {
		return ExtractorResult{}, fmt.Errorf("failed to build extractor prompt: %w", err)
	}

	resp, err := e.textGen.GenerateContent(ctx, buf.String())
	if err != nil {
		return ExtractorResult{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	meta := shared.AgentMeta{AgentName: AgentName, Usage: resp.Usage, Latency: time.Since(start)}
	content := strings.TrimSpace(resp.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```")

	// Validation runs once the id is assigned.
	rec, err := decodeJSON([]byte(strings.TrimSpace(content)))
	if err != nil {
		return ExtractorResult{Meta: meta}, fmt.Errorf("failed to decode LLM response: %w", err)
	}
	return ExtractorResult{Recipe: rec, Meta: meta}, nil
}

// ParseRecipeCard reads the structured recipe card embedded in a post:
//
//	<div class="recipe-card" data-meal-type="dinner" data-prep-time="45"
//	     data-cost="22.5" data-tags="zambian,traditional">
//	  <ul class="ingredients">
//	    <li data-quantity="0.5" data-unit="kg" data-cost="8.5" data-category="grains">maize_meal</li>
//	  </ul>
//	  <dl class="nutrition"><dt>calories</dt><dd>450</dd></dl>
//	</div>
//
// found is false when the post has no card.
func ParseRecipeCard(html string) (rec Recipe, found bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Recipe{}, false, fmt.Errorf("failed to parse post HTML: %w", err)
	}

	card := doc.Find(".recipe-card").First()
	if card.Length() == 0 {
		return Recipe{}, false, nil
	}

	rec.Name = strings.TrimSpace(card.AttrOr("data-name", doc.Find("h1").First().Text()))
	rec.MealType = MealType(strings.ToLower(strings.TrimSpace(card.AttrOr("data-meal-type", ""))))
	if rec.PreparationTime, err = attrFloat(card, "data-prep-time"); err != nil {
		return Recipe{}, true, err
	}
	if rec.CostPerServing, err = attrFloat(card, "data-cost"); err != nil {
		return Recipe{}, true, err
	}
	for _, tag := range strings.Split(card.AttrOr("data-tags", ""), ",") {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			rec.CulturalTags = append(rec.CulturalTags, tag)
		}
	}

	card.Find(".ingredients li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		ing := Ingredient{
			Name:     strings.TrimSpace(li.Text()),
			Unit:     li.AttrOr("data-unit", ""),
			Category: li.AttrOr("data-category", ""),
		}
		if ing.Quantity, err = attrFloat(li, "data-quantity"); err != nil {
			return false
		}
		if ing.EstimatedCost, err = attrFloat(li, "data-cost"); err != nil {
			return false
		}
		rec.Ingredients = append(rec.Ingredients, ing)
		return true
	})
	if err != nil {
		return Recipe{}, true, err
	}

	card.Find(".nutrition dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		var v float64
		v, err = parseNumber("nutrition."+dt.Text(), dt.NextFiltered("dd").Text())
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(dt.Text())) {
		case "calories":
			rec.Nutrition.Calories = v
		case "protein":
			rec.Nutrition.Protein = v
		case "carbs":
			rec.Nutrition.Carbs = v
		case "fats", "fat":
			rec.Nutrition.Fats = v
		case "fiber":
			rec.Nutrition.Fiber = v
		case "sugar":
			rec.Nutrition.Sugar = v
		}
		return true
	})
	if err != nil {
		return Recipe{}, true, err
	}
	return rec, true, nil
}

func attrFloat(s *goquery.Selection, attr string) (float64, error) {
	return parseNumber(attr, s.AttrOr(attr, ""))
}

// parseNumber treats an empty value as zero and rejects anything non-numeric.
func parseNumber(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &shared.ValidationError{Field: field, Reason: fmt.Sprintf("not a number: %q", raw)}
	}
	return v, nil
}
