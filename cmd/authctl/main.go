package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/linaform/internal/app"
	"github.com/iudanet/linaform/internal/cli"
	"github.com/iudanet/linaform/internal/config"
	"github.com/iudanet/linaform/internal/iocli"
	"github.com/iudanet/linaform/internal/logging"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		printVersion()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUnknownCommand) {
			cli.PrintUsage(os.Stderr)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], ".env")
	if err != nil {
		return err
	}
	if len(cfg.Args) == 0 {
		cli.PrintUsage(os.Stderr)
		return errors.New("command is required")
	}

	// Логи в stderr, чтобы не смешивать с выводом команды
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", slog.Any("error", err))
		}
	}()

	manager, _, err := app.NewSessionManager(cfg, store, logger)
	if err != nil {
		return err
	}

	c := cli.New(iocli.NewStdio(os.Stdin, os.Stdout), manager)
	return c.Run(ctx, cfg.Args[0], cfg.Args[1:])
}

func printVersion() {
	fmt.Printf("Linaform authctl\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
