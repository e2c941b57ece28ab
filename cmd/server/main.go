package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/johnrirwin/feedformatter/internal/app"
	"github.com/johnrirwin/feedformatter/internal/config"
	"github.com/johnrirwin/feedformatter/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "feedformatter:", err)
		os.Exit(1)
	}
}

func rootApp() *cli.App {
	return &cli.App{
		Name:  "feedformatter",
		Usage: "Serve media playlists as templated RSS feeds",
		Description: `Fetches playlists from the configured video provider and renders
		them through Mustache templates, caching the rendered documents.

		Flags can be set via environment variables, e.g.:

		--config => FEEDFORMATTER_CONFIG=config.yaml
		--log-level => FEEDFORMATTER_LOG_LEVEL=debug
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "YAML configuration file",
				EnvVars:  []string{"FEEDFORMATTER_CONFIG"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "HTTP port, overrides the configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Append logs to this file instead of stdout",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-file") {
		cfg.Logging.File = c.String("log-file")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	release, held, err := app.AcquireLock(cfg.LockFile)
	if err != nil {
		return err
	}
	if held {
		// Another instance owns the lock.
		return nil
	}
	defer release()

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	select {
	case err := <-errCh:
		application.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		application.Logger.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger.Error("Shutdown error", logging.WithField("error", err.Error()))
	}
	return <-errCh
}
