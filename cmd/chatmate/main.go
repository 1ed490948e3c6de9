package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"chatmate.app/chatmate/internal/cli"
	"chatmate.app/chatmate/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		logger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
