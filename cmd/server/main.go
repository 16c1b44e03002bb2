package main

import (
	"context"
	"log"
	"os"

	"github.com/ibcol/portal/internal/buildinfo"
	"github.com/ibcol/portal/internal/logging"
	"github.com/ibcol/portal/internal/server"
	"github.com/ibcol/portal/internal/server/config"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	logger.Info(ctx, "ibcol portal", "version", buildinfo.Version, "commit", buildinfo.Commit)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "server error", "error", err)
		os.Exit(1)
	}
}
