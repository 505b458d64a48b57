package main

import (
	"context"
	"log/slog"
	"os"

	"sysconsole/internal/app"
	"sysconsole/internal/config"
	"sysconsole/internal/transports/cli"
	"sysconsole/pkg/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	lg := logger.New("")
	slog.SetDefault(lg)

	root := cli.New(newApp, buildVersion())
	if err := root.ExecuteContext(context.Background()); err != nil {
		lg.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.New(cfg.Log.Level))
	return app.New(ctx, cfg)
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
