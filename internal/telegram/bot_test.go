package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"budget-meal-planner/internal/app"
	"budget-meal-planner/internal/budget"
	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/interaction"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/shared"
	"budget-meal-planner/internal/similarity"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminID   int64 = 1
	allowedID int64 = 42
)

type fakeSender struct {
	mu       sync.Mutex
	texts    []string
	markups  []*tgbotapi.InlineKeyboardMarkup
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.texts = append(f.texts, m.Text)
	case tgbotapi.EditMessageTextConfig:
		f.texts = append(f.texts, m.Text)
		f.markups = append(f.markups, m.ReplyMarkup)
	}
	return tgbotapi.Message{MessageID: len(f.texts)}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeService struct {
	exists  bool
	planned []time.Time
	rated   []interaction.Record
}

func (f *fakeService) PlanWeek(_ context.Context, userID string, weekStart time.Time) (*app.PlanResult, error) {
	f.planned = append(f.planned, weekStart)
	plan := planner.NewMealPlan(userID, weekStart)
	plan.Set("monday", recipe.Lunch, &planner.Meal{Name: "Beans and rice", CostPerServing: 30})
	return &app.PlanResult{
		Plan: plan,
		Result: &budget.Result{
			InitialCost: 40, FinalCost: 30, Budget: 1050, WithinBudget: true,
			Outcomes: []budget.Outcome{{Strategy: "ingredient_substitution", Reduction: 10}},
		},
	}, nil
}

func (f *fakeService) HasPlanForWeek(context.Context, string, time.Time) (bool, error) {
	return f.exists, nil
}

func (f *fakeService) Similar(recipeID string, k int) ([]similarity.Neighbor, error) {
	if recipeID == "missing" {
		return nil, &shared.NotFoundError{Kind: "recipe", ID: recipeID}
	}
	return []similarity.Neighbor{{RecipeID: "r2", Score: 0.9}, {RecipeID: "r3", Score: 0.5}}[:k], nil
}

func (f *fakeService) PredictCost(name, category string, quantity float64, date time.Time) (float64, error) {
	return quantity * 10, nil
}

func (f *fakeService) RecordInteraction(_ context.Context, rec interaction.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	f.rated = append(f.rated, rec)
	return nil
}

func (f *fakeService) Usage(context.Context, int) ([]metrics.DailyUsage, error) {
	return []metrics.DailyUsage{{Date: "2025-06-01", TotalPrompt: 100, TotalCompletion: 20, TotalExecution: 2}}, nil
}

func newTestBot() (*Bot, *fakeSender, *fakeService) {
	api := &fakeSender{}
	svc := &fakeService{}
	b := newBot(api, svc, config.TelegramConfig{AdminID: adminID, AllowUserIDs: []int64{allowedID}}, zerolog.Nop())
	b.now = func() time.Time { return time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC) }
	return b, api, svc
}

func command(from int64, text string) *tgbotapi.Message {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		length = i
	}
	return &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: from},
		Chat:     &tgbotapi.Chat{ID: from},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

func TestCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("Plan", func(t *testing.T) {
		b, api, svc := newTestBot()
		b.processMessage(ctx, command(allowedID, "/plan"))

		require.Len(t, svc.planned, 1)
		assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), svc.planned[0])
		assert.Contains(t, api.last(), "Beans and rice")
		assert.Contains(t, api.last(), "ingredient_substitution: 10.00")
	})

	t.Run("PlanExistsAsks", func(t *testing.T) {
		b, api, svc := newTestBot()
		svc.exists = true
		b.processMessage(ctx, command(allowedID, "/plan"))

		assert.Empty(t, svc.planned)
		assert.Contains(t, api.last(), "already exists for the week starting 2025-06-09")
		require.NotEmpty(t, api.markups)
		assert.NotNil(t, api.markups[len(api.markups)-1])
	})

	t.Run("Similar", func(t *testing.T) {
		b, api, _ := newTestBot()
		b.processMessage(ctx, command(allowedID, "/similar r1 1"))
		assert.Equal(t, "🔎 Recipes like r1:\n1. r2 (0.90)\n", api.last())

		b.processMessage(ctx, command(allowedID, "/similar missing"))
		assert.Contains(t, api.last(), `recipe "missing" not found`)

		b.processMessage(ctx, command(allowedID, "/similar r1 zero"))
		assert.Equal(t, "k must be a positive number", api.last())
	})

	t.Run("Cost", func(t *testing.T) {
		b, api, _ := newTestBot()
		b.processMessage(ctx, command(allowedID, "/cost maize_meal grains 2 2025-07-01"))
		assert.Equal(t, "💰 maize_meal x2 on 2025-07-01: 20.00", api.last())

		b.processMessage(ctx, command(allowedID, "/cost maize_meal grains"))
		assert.True(t, strings.HasPrefix(api.last(), "Usage: /cost"))
	})

	t.Run("Rate", func(t *testing.T) {
		b, api, svc := newTestBot()
		b.processMessage(ctx, command(allowedID, "/rate r1 5 2"))
		require.Len(t, svc.rated, 1)
		assert.Equal(t, interaction.Record{UserID: "42", RecipeID: "r1", Rating: 5, RepeatCount: 2, Timestamp: b.now()}, svc.rated[0])
		assert.Equal(t, "👍 Thanks, noted.", api.last())

		b.processMessage(ctx, command(allowedID, "/rate r1 7"))
		assert.Contains(t, api.last(), "rating")
		assert.Len(t, svc.rated, 1)
	})

	t.Run("StatsIsAdminOnly", func(t *testing.T) {
		b, api, _ := newTestBot()
		b.processMessage(ctx, command(allowedID, "/stats"))
		assert.Contains(t, api.last(), "admin only")

		b.processMessage(ctx, command(adminID, "/stats"))
		assert.Contains(t, api.last(), "2025-06-01: 120 tokens (2 calls)")
		assert.Contains(t, api.last(), "Goroutines")
	})

	t.Run("PlainTextGetsHelp", func(t *testing.T) {
		b, api, _ := newTestBot()
		b.processMessage(ctx, &tgbotapi.Message{Text: "hello", From: &tgbotapi.User{ID: allowedID}, Chat: &tgbotapi.Chat{ID: allowedID}})
		assert.Equal(t, helpText, api.last())
	})
}

func TestCallbackQuery(t *testing.T) {
	b, api, svc := newTestBot()
	b.handleCallbackQuery(context.Background(), &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: allowedID},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: allowedID}},
		Data:    "next",
	})

	assert.Equal(t, 1, api.requests)
	require.Len(t, svc.planned, 1)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), svc.planned[0])
	assert.Contains(t, api.last(), "Weekly meal plan")
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantReply  bool
	}{
		{"allowed user", `{"update_id":1,"message":{"message_id":1,"text":"/similar r1 1","from":{"id":42},"chat":{"id":42},"entities":[{"type":"bot_command","offset":0,"length":8}]}}`, http.StatusOK, true},
		{"unknown user", `{"update_id":2,"message":{"message_id":2,"text":"/plan","from":{"id":99},"chat":{"id":99},"entities":[{"type":"bot_command","offset":0,"length":5}]}}`, http.StatusOK, false},
		{"malformed", `{"update_id":`, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _ := newTestBot()
			mux := http.NewServeMux()
			b.RegisterHandlers(mux)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body)))
			b.Wait()

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantReply {
				assert.Contains(t, api.last(), "r2")
			} else {
				assert.Empty(t, api.last())
			}
		})
	}
}

func TestFormatPlan(t *testing.T) {
	plan := planner.NewMealPlan("u1", time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC))
	plan.Set("monday", recipe.Dinner, &planner.Meal{Name: "Beef stew", CostPerServing: 76.5, Substituted: true})

	out := formatPlan(&app.PlanResult{
		Plan:      plan,
		Result:    &budget.Result{InitialCost: 90, FinalCost: 76.5, Budget: 50, Remaining: 26.5},
		Published: nil,
	})

	assert.True(t, strings.HasPrefix(out, "📅 Weekly meal plan\n\nWeek of 2025-06-09\n"))
	assert.Contains(t, out, "Beef stew (76.50) [substituted]")
	assert.Contains(t, out, "Over budget by 26.50")
	assert.NotContains(t, out, "Savings")
}
