// Package telegram serves the meal planner over a Telegram bot webhook.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"budget-meal-planner/internal/app"
	"budget-meal-planner/internal/config"
	"budget-meal-planner/internal/interaction"
	"budget-meal-planner/internal/metrics"
	"budget-meal-planner/internal/planner"
	"budget-meal-planner/internal/similarity"

	"github.com/goccy/go-json"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	defaultSimilar = 5
	usageDays      = 7
	requestTimeout = 2 * time.Minute
)

const helpText = `Commands:
/plan - plan next week's meals
/similar <recipe_id> [k] - recipes like this one
/cost <ingredient> <category> <quantity> [YYYY-MM-DD] - projected ingredient cost
/rate <recipe_id> <1-5> [times_cooked] - rate a recipe`

// Service is the part of the application the bot exposes.
type Service interface {
	PlanWeek(ctx context.Context, userID string, weekStart time.Time) (*app.PlanResult, error)
	HasPlanForWeek(ctx context.Context, userID string, weekStart time.Time) (bool, error)
	Similar(recipeID string, k int) ([]similarity.Neighbor, error)
	PredictCost(name, category string, quantity float64, date time.Time) (float64, error)
	RecordInteraction(ctx context.Context, rec interaction.Record) error
	Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// sender is the subset of the Telegram API the bot calls.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot wraps the Telegram API and the planner service.
type Bot struct {
	api       sender
	svc       Service
	cfg       config.TelegramConfig
	dataPaths []string
	logger    zerolog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewBot initializes the Telegram Bot and sets the webhook when one is
// configured.
func NewBot(cfg *config.Config, svc Service, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info().Str("account", api.Self.UserName).Msg("authorized on telegram")

	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.Telegram.WebhookURL, err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.Telegram.WebhookURL, err)
		}
		logger.Info().Str("description", resp.Description).Msg("webhook set")
	}

	b := newBot(api, svc, cfg.Telegram, logger)
	b.dataPaths = []string{cfg.Database.Path, cfg.Storage.ModelDir}
	return b, nil
}

func newBot(api sender, svc Service, cfg config.TelegramConfig, logger zerolog.Logger) *Bot {
	return &Bot{
		api:    api,
		svc:    svc,
		cfg:    cfg,
		logger: logger.With().Str("component", "telegram").Logger(),
		now:    time.Now,
	}
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// Wait blocks until every in-flight update has been handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.logger.Warn().Err(err).Msg("failed to parse update")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	var from *tgbotapi.User
	switch {
	case update.CallbackQuery != nil:
		from = update.CallbackQuery.From
	case update.Message != nil:
		from = update.Message.From
	default:
		return
	}
	if from == nil || !b.isAllowed(from.ID) {
		if from != nil {
			b.logger.Warn().Int64("user_id", from.ID).Str("username", from.UserName).Msg("unauthorized access attempt")
		}
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if update.CallbackQuery != nil {
			b.handleCallbackQuery(ctx, update.CallbackQuery)
			return
		}
		b.processMessage(ctx, update.Message)
	}()
}

func (b *Bot) isAllowed(userID int64) bool {
	return (userID != 0 && userID == b.cfg.AdminID) || slices.Contains(b.cfg.AllowUserIDs, userID)
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.reply(msg.Chat.ID, helpText)
		return
	}

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "plan":
		b.handlePlan(ctx, msg)
	case "similar":
		b.handleSimilar(msg.Chat.ID, args)
	case "cost":
		b.handleCost(msg.Chat.ID, args)
	case "rate":
		b.handleRate(ctx, msg, args)
	case "stats":
		if msg.From.ID != b.cfg.AdminID {
			b.reply(msg.Chat.ID, "⛔ Access denied: admin only.")
			return
		}
		b.handleStats(ctx, msg.Chat.ID)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message) {
	sent, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "🧑‍🍳 Planning your week..."))
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to send initial reply")
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	nextMonday := planner.NextMonday(b.now())

	exists, err := b.svc.HasPlanForWeek(ctx, userID, nextMonday)
	if err != nil {
		b.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to check existing plan")
	}
	if exists {
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔄 Redo next week", "redo"),
				tgbotapi.NewInlineKeyboardButtonData("⏭️ Plan the week after", "next"),
			),
		)
		edit := tgbotapi.NewEditMessageText(msg.Chat.ID, sent.MessageID,
			fmt.Sprintf("🗓️ A plan already exists for the week starting %s. What would you like to do?", nextMonday.Format("2006-01-02")))
		edit.ReplyMarkup = &keyboard
		b.send(edit)
		return
	}

	b.generateAndSendPlan(ctx, userID, msg.Chat.ID, sent.MessageID, nextMonday)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	targetWeek := planner.NextMonday(b.now())
	switch query.Data {
	case "redo":
	case "next":
		targetWeek = targetWeek.AddDate(0, 0, 7)
	default:
		return
	}

	// Answer the callback to remove the spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("failed to answer callback")
	}
	b.send(tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, "🧑‍🍳 Planning your week..."))

	userID := strconv.FormatInt(query.From.ID, 10)
	b.generateAndSendPlan(ctx, userID, query.Message.Chat.ID, query.Message.MessageID, targetWeek)
}

func (b *Bot) generateAndSendPlan(ctx context.Context, userID string, chatID int64, messageID int, week time.Time) {
	out, err := b.svc.PlanWeek(ctx, userID, week)
	if err != nil {
		b.logger.Error().Err(err).Str("user_id", userID).Msg("failed to generate plan")
		b.send(tgbotapi.NewEditMessageText(chatID, messageID, "❌ Error generating plan: "+err.Error()))
		return
	}
	b.send(tgbotapi.NewEditMessageText(chatID, messageID, formatPlan(out)))
}

func formatPlan(out *app.PlanResult) string {
	var sb strings.Builder
	sb.WriteString("📅 Weekly meal plan\n\n")
	sb.WriteString(app.FormatPlan(out.Plan, out.Result))
	if out.Result != nil && len(out.Result.Outcomes) > 0 {
		sb.WriteString("\nSavings:\n")
		for _, o := range out.Result.Outcomes {
			if o.Reduction > 0 {
				fmt.Fprintf(&sb, "• %s: %.2f\n", o.Strategy, o.Reduction)
			}
		}
	}
	if out.Published != nil {
		fmt.Fprintf(&sb, "\n📝 Saved to the blog as %q\n", out.Published.Title)
	}
	return sb.String()
}

func (b *Bot) handleSimilar(chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(chatID, "Usage: /similar <recipe_id> [k]")
		return
	}
	k := defaultSimilar
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			b.reply(chatID, "k must be a positive number")
			return
		}
		k = n
	}

	neighbors, err := b.svc.Similar(args[0], k)
	if err != nil {
		b.reply(chatID, "❌ "+err.Error())
		return
	}
	if len(neighbors) == 0 {
		b.reply(chatID, "No similar recipes found.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔎 Recipes like %s:\n", args[0])
	for i, nb := range neighbors {
		fmt.Fprintf(&sb, "%d. %s (%.2f)\n", i+1, nb.RecipeID, nb.Score)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handleCost(chatID int64, args []string) {
	if len(args) < 3 {
		b.reply(chatID, "Usage: /cost <ingredient> <category> <quantity> [YYYY-MM-DD]")
		return
	}
	qty, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		b.reply(chatID, "quantity must be a number")
		return
	}
	date := b.now()
	if len(args) > 3 {
		if date, err = time.Parse("2006-01-02", args[3]); err != nil {
			b.reply(chatID, "date must look like 2025-06-30")
			return
		}
	}

	price, err := b.svc.PredictCost(args[0], args[1], qty, date)
	if err != nil {
		b.reply(chatID, "❌ "+err.Error())
		return
	}
	b.reply(chatID, fmt.Sprintf("💰 %s x%g on %s: %.2f", args[0], qty, date.Format("2006-01-02"), price))
}

func (b *Bot) handleRate(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) < 2 {
		b.reply(msg.Chat.ID, "Usage: /rate <recipe_id> <1-5> [times_cooked]")
		return
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		b.reply(msg.Chat.ID, "rating must be a number from 1 to 5")
		return
	}
	var repeats int
	if len(args) > 2 {
		if repeats, err = strconv.Atoi(args[2]); err != nil {
			b.reply(msg.Chat.ID, "times_cooked must be a number")
			return
		}
	}

	err = b.svc.RecordInteraction(ctx, interaction.Record{
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		RecipeID:    args[0],
		Rating:      rating,
		RepeatCount: repeats,
		Timestamp:   b.now(),
	})
	if err != nil {
		b.reply(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	b.reply(msg.Chat.ID, "👍 Thanks, noted.")
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	usage, err := b.svc.Usage(ctx, usageDays)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to fetch usage")
		b.reply(chatID, "❌ Error fetching metrics.")
		return
	}
	health := metrics.GetSysHealth(b.dataPaths...)

	var sb strings.Builder
	sb.WriteString("📊 Usage & health report\n\n")
	sb.WriteString("🗓 Recent LLM activity\n")
	if len(usage) == 0 {
		sb.WriteString("No data yet\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• %s: %d tokens (%d calls)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
	}

	sb.WriteString("\n🧠 System health\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (alloc) / %dMB (sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Uptime: %s\n", health.Uptime)
	fmt.Fprintf(&sb, "• Disk data: %s\n", health.DataDiskSize)
	b.reply(chatID, sb.String())
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error().Err(err).Msg("failed to send telegram message")
	}
}
