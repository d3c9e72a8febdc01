package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"plannerbot/internal/admin"
	"plannerbot/internal/config"
	"plannerbot/internal/logger"
	"plannerbot/internal/repository"
	"plannerbot/internal/telegram"
	"plannerbot/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.Environment)

	db, err := repository.NewDB(cfg.DatabaseURL, logger.Component(log, "db"))
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	client := telegram.NewClient(cfg.TelegramToken)
	if !client.Configured() {
		log.Warn("TELEGRAM_BOT_TOKEN is not set: bot info and broadcasts are disabled")
	}

	svc := admin.NewService(admin.Repositories{
		Users:     repository.NewUserRepository(db),
		Plans:     repository.NewPlanRepository(db),
		Reminders: repository.NewReminderRepository(db),
		Stats:     repository.NewStatsRepository(db),
	}, client, admin.NewStatsCache(cfg.StatsCacheTTL), admin.Options{
		Concurrency: cfg.BroadcastConcurrency,
		Rate:        cfg.BroadcastRate,
	}, logger.Component(log, "admin"))

	sessions, err := web.NewSessions(cfg.AdminPassword, cfg.AdminSecretKey)
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}
	server := web.NewServer(svc, sessions, logger.Component(log, "web"))

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("admin panel shutdown")
		}
	}()

	log.Infof("admin panel listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("admin panel: %v", err)
	}
	log.Info("Shutdown complete.")
}
