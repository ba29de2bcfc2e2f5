// Package config loads application configuration from defaults, an optional
// YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"budget-meal-planner/internal/budget"
	"budget-meal-planner/internal/collab"
	"budget-meal-planner/internal/cost"
	"budget-meal-planner/internal/logging"
	"budget-meal-planner/internal/profile"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds the configuration for the application.
type Config struct {
	Ghost    GhostConfig    `koanf:"ghost"`
	Gemini   GeminiConfig   `koanf:"gemini"`
	Telegram TelegramConfig `koanf:"telegram"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Logging  logging.Config `koanf:"logging"`
	Engine   EngineConfig   `koanf:"engine"`
}

// GhostConfig is the recipe source and plan publishing target.
type GhostConfig struct {
	URL        string `koanf:"url" validate:"omitempty,url"`
	ContentKey string `koanf:"content_key"`
	// AdminKey has the form id:secret. It defaults to ContentKey.
	AdminKey     string `koanf:"admin_key"`
	PublishPlans bool   `koanf:"publish_plans"`
}

type GeminiConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model" validate:"required"`
}

type TelegramConfig struct {
	BotToken     string  `koanf:"bot_token"`
	WebhookURL   string  `koanf:"webhook_url" validate:"omitempty,url"`
	AllowUserIDs []int64 `koanf:"allow_user_ids"`
	AdminID      int64   `koanf:"admin_id"`
	Port         int     `koanf:"port" validate:"gte=1,lte=65535"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type StorageConfig struct {
	ModelDir string `koanf:"model_dir" validate:"required"`
}

// EngineConfig holds the recommendation and budget tunables.
type EngineConfig struct {
	TopN           int     `koanf:"top_n" validate:"gte=0"`
	CulturalPolicy string  `koanf:"cultural_policy" validate:"oneof=default zambian"`
	AffinityWeight float64 `koanf:"affinity_weight" validate:"gte=0"`
	ContentWeight  float64 `koanf:"content_weight" validate:"gte=0"`
	ContentPerSeed int     `koanf:"content_per_seed" validate:"gte=1"`
	// Seed makes model fitting reproducible.
	Seed      int64                      `koanf:"seed"`
	Collab    collab.Config              `koanf:"collab"`
	Cost      cost.Config                `koanf:"cost"`
	Envelopes map[string]budget.Envelope `koanf:"envelopes" validate:"dive"`
}

// BudgetEnvelopes converts the configured envelopes into the optimizer table.
func (e EngineConfig) BudgetEnvelopes() budget.Envelopes {
	envs := make(budget.Envelopes, len(e.Envelopes))
	for name, env := range e.Envelopes {
		envs[profile.BudgetRange(name)] = env
	}
	return envs
}

// DefaultConfigPaths lists the paths where a config file is searched, in order.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns the built-in configuration that files and the environment
// override.
func Default() *Config {
	envelopes := make(map[string]budget.Envelope)
	for r, env := range budget.DefaultEnvelopes() {
		envelopes[string(r)] = env
	}

	return &Config{
		Gemini:   GeminiConfig{Model: "gemini-1.5-flash"},
		Telegram: TelegramConfig{Port: 8080},
		Database: DatabaseConfig{Path: "data/db/planner.db"},
		Storage:  StorageConfig{ModelDir: "data/models"},
		Logging:  logging.Config{Level: "info", Format: "json"},
		Engine: EngineConfig{
			TopN:           15,
			CulturalPolicy: "default",
			ContentPerSeed: 5,
			Seed:           42,
			Collab:         collab.DefaultConfig(),
			Cost:           cost.DefaultConfig(),
			Envelopes:      envelopes,
		},
	}
}

// Load reads configuration with the precedence env > file > defaults and
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Ghost.AdminKey == "" {
		cfg.Ghost.AdminKey = cfg.Ghost.ContentKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// RequireGhost reports the settings missing for talking to Ghost.
func (c *Config) RequireGhost() error {
	var errs []error
	if c.Ghost.URL == "" {
		errs = append(errs, errors.New("GHOST_API_URL environment variable not set"))
	}
	if c.Ghost.ContentKey == "" {
		errs = append(errs, errors.New("GHOST_CONTENT_API_KEY environment variable not set"))
	}
	return errors.Join(errs...)
}

// RequireTelegram reports the settings missing for running the bot.
func (c *Config) RequireTelegram() error {
	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN environment variable not set"))
	}
	if c.Telegram.WebhookURL == "" {
		errs = append(errs, errors.New("TELEGRAM_WEBHOOK_URL environment variable not set"))
	}
	return errors.Join(errs...)
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"telegram.allow_user_ids",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"ghost_api_url":           "ghost.url",
	"ghost_content_api_key":   "ghost.content_key",
	"ghost_admin_api_key":     "ghost.admin_key",
	"ghost_publish_plans":     "ghost.publish_plans",
	"gemini_api_key":          "gemini.api_key",
	"gemini_model":            "gemini.model",
	"telegram_bot_token":      "telegram.bot_token",
	"telegram_webhook_url":    "telegram.webhook_url",
	"telegram_allow_user_id":  "telegram.allow_user_ids",
	"telegram_allow_user_ids": "telegram.allow_user_ids",
	"telegram_admin_id":       "telegram.admin_id",
	"port":                    "telegram.port",
	"database_path":           "database.path",
	"model_dir":               "storage.model_dir",
	"log_level":               "logging.level",
	"log_format":              "logging.format",
	"engine_top_n":            "engine.top_n",
	"engine_cultural_policy":  "engine.cultural_policy",
	"engine_affinity_weight":  "engine.affinity_weight",
	"engine_content_weight":   "engine.content_weight",
	"engine_seed":             "engine.seed",
	"engine_epochs":           "engine.collab.epochs",
	"engine_dimensions":       "engine.collab.dimensions",
	"inflation_rate":          "engine.cost.inflation_rate",
}

// envTransformFunc maps known environment variable names to config paths and
// drops everything else.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
