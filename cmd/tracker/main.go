package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/internal/config"
	"github.com/LeoCommon/tracker/internal/tracker"
	"github.com/LeoCommon/tracker/pkg/log"
)

func main() {
	flags, err := config.ParseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid arguments: %s\n", err)
		os.Exit(2)
	}

	app, err := tracker.Setup(flags)
	if err != nil || app == nil {
		fmt.Printf("Initialization failed, error: %s\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	if err := app.Run(ctx); err != nil {
		log.Error("tracker stopped with an error", zap.Error(err))
		exitCode = 1
	}

	log.Info("shutting down")
	app.Shutdown()
	os.Exit(exitCode)
}
