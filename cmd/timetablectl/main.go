package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/Aashu-1911/sutra-backend/internal/cli"
	"github.com/Aashu-1911/sutra-backend/pkg/config"
	"github.com/Aashu-1911/sutra-backend/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// Only warnings reach stderr; stdout carries the table.
	cfg.Log.Level = "warn"
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	app := &cli.App{
		Config: cfg,
		Logger: logr,
		Stdin:  os.Stdin,
		IsTerminal: func() bool {
			return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		},
	}
	return cli.NewRootCmd(app).Execute()
}
