// Command bot runs the fitness reminder daemon: it polls the stored reminders,
// delivers due ones to Telegram and serves the upcoming calendar over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Shtya/fitness-reminders/internal/app"
	"github.com/Shtya/fitness-reminders/internal/config"
	"github.com/Shtya/fitness-reminders/internal/logger"
)

const (
	exitRuntime = 1
	exitSetup   = 2
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred flushes happen before exit.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitness-reminders: config: %v\n", err)
		return exitSetup
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitness-reminders: logger: %v\n", err)
		return exitSetup
	}
	defer func() { _ = log.Sync() }()

	daemon, err := app.New(cfg, log)
	if err != nil {
		log.Error("telegram bot init failed", zap.Error(err))
		return exitSetup
	}
	if err := daemon.Run(context.Background()); err != nil {
		log.Error("reminder daemon stopped with error", zap.Error(err))
		return exitRuntime
	}
	log.Info("reminder daemon stopped")
	return 0
}
