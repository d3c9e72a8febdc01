package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"plannerbot/internal/assistant"
	"plannerbot/internal/bot"
	"plannerbot/internal/config"
	"plannerbot/internal/currency"
	"plannerbot/internal/logger"
	"plannerbot/internal/lookup"
	"plannerbot/internal/repository"
	"plannerbot/internal/service"
	"plannerbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.Environment)
	if err := cfg.RequireBot(); err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL, logger.Component(log, "db"))
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("create bot api: %v", err)
	}
	log.Infof("bot authorized on account %s", api.Self.UserName)

	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	reminderRepo := repository.NewReminderRepository(db)

	planSvc := service.NewPlanService(userRepo, planRepo, reminderRepo, time.Local)
	reminderSvc := service.NewReminderService(reminderRepo, telegram.FromBotAPI(api), time.Local, logger.Component(log, "reminders"))
	converter := currency.NewConverter(currency.DefaultFeedURL, logger.Component(log, "currency"))

	scheduler := service.NewSchedulerService(time.Local, logger.Component(log, "scheduler"))
	if _, err := scheduler.Schedule(cfg.ReminderCheckSpec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
		defer cancel()
		if _, err := reminderSvc.DispatchDue(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("dispatch reminders")
		}
	}); err != nil {
		log.Fatalf("schedule reminders: %v", err)
	}
	refreshRates := func() {
		jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := converter.Refresh(jobCtx); err != nil {
			log.WithError(err).Warn("currency rates refresh failed, using backup rates")
		}
	}
	if _, err := scheduler.ScheduleInterval(cfg.CurrencyRefresh, refreshRates); err != nil {
		log.Fatalf("schedule currency refresh: %v", err)
	}
	go refreshRates()
	scheduler.Start()
	defer scheduler.Stop()

	telegramBot := bot.New(api, bot.Services{
		Users:     userRepo,
		Plans:     planSvc,
		Lookup:    lookup.NewClient(lookup.DefaultWeatherURL, lookup.DefaultRatesURL, logger.Component(log, "lookup")),
		Currency:  converter,
		Assistant: assistant.New(cfg.OpenAIKey, cfg.OpenAIModel, "", logger.Component(log, "assistant")),
	}, cfg, logger.Component(log, "bot"))

	log.Info("Daily planner bot started.")
	if err := telegramBot.Start(ctx); err != nil {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Info("Shutdown complete.")
}
