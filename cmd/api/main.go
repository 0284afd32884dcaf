package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"prolink-chat/config"
	"prolink-chat/internal/app"
	"prolink-chat/internal/repository"
	"prolink-chat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, l)
	if err != nil {
		l.Errorf("Failed to start: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	if os.Getenv("AUTO_MIGRATE") == "true" {
		if err := repository.InitSchema(a.DB); err != nil {
			l.Errorf("Failed to apply migrations: %v", err)
			return
		}
	}

	if err := a.Run(ctx); err != nil {
		l.Errorf("Server exited: %v", err)
	}
}
