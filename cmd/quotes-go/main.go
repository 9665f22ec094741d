package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var execute = func() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func main() {
	execute()
}
