package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/i474232898/ecovision/internal/api/http"
	"github.com/i474232898/ecovision/internal/config"
	"github.com/i474232898/ecovision/internal/gateway"
	"github.com/i474232898/ecovision/internal/logging"
	"github.com/i474232898/ecovision/internal/orchestrator"
	"github.com/i474232898/ecovision/internal/scheduler"
	"github.com/i474232898/ecovision/internal/tui"
)

func main() {
	ui := flag.String("ui", "tui", "front end to run: tui, serve or once")
	flag.Parse()

	if err := run(*ui); err != nil {
		fmt.Fprintf(os.Stderr, "ecovision: %v\n", err)
		os.Exit(1)
	}
}

func run(ui string) error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The terminal owns stdout in tui mode, so logs go to LOG_FILE or nowhere.
	logOut, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logOut.Close()

	opts := logging.Options{Level: cfg.LogLevel, Format: logging.ParseFormat(cfg.LogFormat)}
	if ui == "tui" || cfg.LogFile != "" {
		opts.Output = logOut
	}
	log := logging.New(opts)

	gw, err := gateway.New(gateway.Config{
		BaseURL:         cfg.APIURL,
		Timeout:         cfg.HTTPTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	orch := orchestrator.New(gw, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch ui {
	case "once":
		return runOnce(ctx, orch, log)
	case "serve":
		return runServer(ctx, cfg, orch, log)
	case "tui":
		return runTUI(ctx, cfg, orch, log)
	default:
		return fmt.Errorf("unknown -ui %q (want tui, serve or once)", ui)
	}
}

// runOnce loads the dashboard, performs the initial apply and prints the view.
func runOnce(ctx context.Context, orch *orchestrator.Orchestrator, log zerolog.Logger) error {
	if err := orch.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("dashboard started with errors")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(orch.View())
}

func runServer(ctx context.Context, cfg *config.AppConfig, orch *orchestrator.Orchestrator, log zerolog.Logger) error {
	sched := scheduler.New(cfg.RefreshInterval, cfg.HTTPTimeout, orch, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	go func() {
		if err := orch.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("dashboard started with errors")
		}
	}()

	app := httpapi.NewApp(orch, log)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http view listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
		return err
	}
	return nil
}

func runTUI(ctx context.Context, cfg *config.AppConfig, orch *orchestrator.Orchestrator, log zerolog.Logger) error {
	sched := scheduler.New(cfg.RefreshInterval, cfg.HTTPTimeout, orch, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// The terminal view starts the orchestrator after subscribing to it.
	return tui.Run(ctx, orch)
}
