package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"plannerbot/internal/config"
	"plannerbot/internal/launcher"
	"plannerbot/internal/logger"
)

func main() {
	planPath := flag.String("config", os.Getenv("LAUNCHER_CONFIG"), "YAML file overriding the processes to start")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.Environment)

	plan, err := launcher.LoadPlan(*planPath, launcher.DefaultPlan(cfg.AdminPort, cfg.TunnelAPIURL))
	if err != nil {
		log.Fatalf("launcher plan: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := launcher.New(plan, os.Stdout, logger.Component(log, "launcher")).Run(ctx); err != nil {
		log.WithError(err).Error("launcher stopped")
		stop()
		os.Exit(1)
	}
	log.Info("All processes stopped.")
}
