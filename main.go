package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "handv-deploy/cmd"
	"handv-deploy/cmd/root"
	derrors "handv-deploy/internal/errors"
	"handv-deploy/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.RootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "handv: %v\n", err)
		os.Exit(derrors.ExitCode(err))
	}
}
