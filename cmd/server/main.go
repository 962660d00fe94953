package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"battleroyale/server/internal/app"
	"battleroyale/server/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv(nil)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
