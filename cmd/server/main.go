package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jinnapat/jod-rod-matching-service/internal/cli"
	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("exiting", "error", err)
		stop()
		os.Exit(1)
	}
}
