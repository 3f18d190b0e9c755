package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"portald/internal/cli"
)

func main() {
	// Ctrl+C / SIGTERM cancel the command; serve shuts down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx, os.Args[1:], cli.Options{})
	stop()
	if err != nil {
		os.Exit(1)
	}
}
