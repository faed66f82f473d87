// Package server implements the "dacroq server" CLI subcommand.
package server

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/config"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/daemon"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/logging"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/version"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var configPath, logLevel string
	var showVersion bool
	fs.StringVar(&configPath, "config", "dacroq.yaml", "path to dacroq.yaml")
	fs.StringVar(&logLevel, "log-level", "", "log level override: debug|info|warning|error")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("dacroq server %s\n", version.Version)
		return nil
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level := c.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	lg, err := logging.New(logging.Options{Level: level, JSON: c.Log.JSON})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("starting", "version", version.Version, "environment", c.Environment)
	err = daemon.Run(ctx, daemon.Options{Config: c, Logger: lg})
	if err == context.Canceled {
		lg.Info("shutting down")
		return nil
	}
	return err
}
