package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/linaform/internal/app"
	"github.com/iudanet/linaform/internal/config"
	"github.com/iudanet/linaform/internal/logging"
	"github.com/iudanet/linaform/internal/server"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Show version and exit if requested
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		printVersion()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "linaform: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], ".env")
	if err != nil {
		return err
	}
	if len(cfg.Args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", cfg.Args)
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
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

	manager, tokens, err := app.NewSessionManager(cfg, store, logger)
	if err != nil {
		return err
	}

	limiter, stopLimiter, err := app.NewLoginLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stopLimiter()

	// defer выполняется раньше store.Close: очистка не обращается к закрытому хранилищу
	stopSweeper := app.StartSweeper(ctx, manager, cfg.SweepInterval)
	defer stopSweeper()

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewRouter(server.Deps{
			Logger:       logger,
			Sessions:     manager,
			Tokens:       tokens,
			Store:        store,
			LoginLimiter: limiter,
			CORSOrigin:   cfg.CORSOrigin,
			Version:      Version,
			TrustProxy:   cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		logger.Info("linaform server starting",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("storage", cfg.DBDriver),
			slog.String("rate_limit_backend", cfg.RateLimitBackend),
			slog.Bool("trust_proxy", cfg.TrustProxy),
			slog.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
		close(errC)
	}()

	select {
	case err := <-errC:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

func printVersion() {
	fmt.Printf("Linaform Auth Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
