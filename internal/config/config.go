package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings shared by the bot, the admin panel and the launcher.
type Config struct {
	TelegramToken string
	DatabaseURL   string

	AdminPassword  string
	AdminSecretKey string
	AdminPort      int
	AdminURL       string
	AdminID        int64
	Debug          bool

	OpenAIKey   string
	OpenAIModel string

	LogLevel    string
	Environment string

	StatsCacheTTL        time.Duration
	BroadcastConcurrency int
	BroadcastRate        float64

	CurrencyRefresh   time.Duration
	ReminderCheckSpec string
	TunnelAPIURL      string
}

// Load reads configuration from environment variables (and a .env file, if present) with sane defaults.
func Load() (Config, error) {
	// Existing env variables win over .env values.
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:     firstEnv("TELEGRAM_BOT_TOKEN", "TELEGRAM_TOKEN"),
		DatabaseURL:       firstEnv("DATABASE_PATH", "DATABASE_URL"),
		AdminPassword:     env("ADMIN_PASSWORD"),
		AdminSecretKey:    env("ADMIN_SECRET_KEY"),
		AdminURL:          env("ADMIN_URL"),
		OpenAIKey:         env("OPENAI_API_KEY"),
		OpenAIModel:       env("OPENAI_MODEL"),
		LogLevel:          strings.ToLower(env("LOG_LEVEL")),
		Environment:       strings.ToLower(env("ENVIRONMENT")),
		ReminderCheckSpec: env("REMINDER_CHECK_SPEC"),
		TunnelAPIURL:      env("TUNNEL_API_URL"),
	}

	if cfg.TelegramToken == "your-telegram-bot-token-here" {
		cfg.TelegramToken = ""
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "./data/bot.db"
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = "admin123"
	}
	if cfg.AdminSecretKey == "" {
		cfg.AdminSecretKey = "your-secret-key-change-this"
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-3.5-turbo"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.ReminderCheckSpec == "" {
		cfg.ReminderCheckSpec = "@every 1m"
	}
	if cfg.TunnelAPIURL == "" {
		cfg.TunnelAPIURL = "http://127.0.0.1:4040/api/tunnels"
	}

	var err error
	if cfg.AdminPort, err = intEnv("ADMIN_PORT", 3000); err != nil {
		return cfg, err
	}
	if raw := env("ADMIN_ID"); raw != "" {
		if cfg.AdminID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return cfg, fmt.Errorf("invalid ADMIN_ID: %w", err)
		}
	}
	cfg.Debug = parseBool(firstEnv("FLASK_DEBUG", "DEBUG"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		if cfg.Debug {
			cfg.LogLevel = "debug"
		}
	}

	if cfg.StatsCacheTTL, err = durationEnv("STATS_CACHE_TTL", 0); err != nil {
		return cfg, err
	}
	if cfg.BroadcastConcurrency, err = intEnv("BROADCAST_CONCURRENCY", 8); err != nil {
		return cfg, err
	}
	if cfg.BroadcastConcurrency <= 0 {
		cfg.BroadcastConcurrency = 1
	}
	cfg.BroadcastRate = 25
	if raw := env("BROADCAST_RATE"); raw != "" {
		if cfg.BroadcastRate, err = strconv.ParseFloat(raw, 64); err != nil {
			return cfg, fmt.Errorf("invalid BROADCAST_RATE: %w", err)
		}
	}
	minutes, err := intEnv("CURRENCY_UPDATE_INTERVAL_MINUTES", 30)
	if err != nil {
		return cfg, err
	}
	if minutes <= 0 {
		minutes = 30
	}
	cfg.CurrencyRefresh = time.Duration(minutes) * time.Minute

	return cfg, nil
}

// RequireBot validates the settings the bot process cannot run without.
func (c Config) RequireBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// ListenAddr is the admin panel bind address.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.AdminPort)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := env(key); v != "" {
			return v
		}
	}
	return ""
}

func intEnv(key string, def int) (int, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	// Bare numbers are seconds.
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def, fmt.Errorf("invalid %s %q", key, raw)
	}
	return d, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
