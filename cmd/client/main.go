package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/avanags/libris/internal/buildinfo"
	"github.com/avanags/libris/internal/client/cli"
	"github.com/avanags/libris/internal/client/config"
	"github.com/avanags/libris/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	app, err := cli.NewApp(ctx, cfg, log)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
