package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/canopy-network/validatorstats/app/stats"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := stats.Initialize(ctx)
	app.Start(ctx)
}
