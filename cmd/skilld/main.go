// Package main runs the skilld daemon: it loads the skill registry,
// schedules declared triggers, and serves the HTTP API.
//
// Usage:
//
//	SKILLD_SKILLS_DIR=/srv/skills \
//	SKILLD_GITHUB_TOKEN=ghp_xxx \
//	./skilld --config /etc/skilld/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skilld/internal/config"
	"github.com/fyrsmithlabs/skilld/internal/engine"
	internalhttp "github.com/fyrsmithlabs/skilld/internal/http"
	"github.com/fyrsmithlabs/skilld/internal/logging"
	"github.com/fyrsmithlabs/skilld/pkg/manifest"
	"github.com/fyrsmithlabs/skilld/pkg/trigger"
	"github.com/fyrsmithlabs/skilld/pkg/verify"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("skilld starting",
		zap.String("skills_dir", cfg.Skills.Dir),
		zap.Bool("watch", cfg.Skills.Watch),
	)

	registry := manifest.NewRegistry(manifest.NewValidator(logger.Named("validator")), logger.Named("registry"))
	results, err := registry.LoadDir(cfg.Skills.Dir)
	if err != nil {
		return fmt.Errorf("loading skills from %s: %w", cfg.Skills.Dir, err)
	}
	for _, result := range results {
		if !result.Report.Valid {
			logger.Warn("skill manifest rejected",
				zap.String("path", result.Path),
				zap.Strings("errors", result.Report.Errors),
			)
		}
	}

	if cfg.Skills.Watch {
		watcher, err := manifest.NewWatcher(registry, cfg.Skills.Dir, logger.Named("watcher"))
		if err != nil {
			return fmt.Errorf("creating manifest watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting manifest watcher: %w", err)
		}
	}

	eng := engine.New(engine.Options{
		RepoPath:        cfg.Pipeline.RepoPath,
		Branch:          cfg.Pipeline.Branch,
		Push:            cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "",
		Parallel:        cfg.Pipeline.Parallel,
		MaxConcurrent:   cfg.Pipeline.MaxConcurrent,
		PollMaxAttempts: cfg.Poller.MaxAttempts,
		PollInterval:    cfg.Poller.Interval.Std(),
	}, logger.Named("engine"))

	if cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		source, err := verify.NewGitHubStatusSource(ctx, cfg.GitHub.Token.Value(), cfg.GitHub.Owner, cfg.GitHub.Repo)
		if err != nil {
			return fmt.Errorf("creating github status source: %w", err)
		}
		eng.WithStatusSource(source.StatusFor)
		logger.Info("ci verification enabled",
			zap.String("owner", cfg.GitHub.Owner),
			zap.String("repo", cfg.GitHub.Repo),
		)
	}

	dispatcher := trigger.NewDispatcher(registry, eng, logger.Named("dispatcher"))
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("starting trigger dispatcher: %w", err)
	}

	server, err := internalhttp.NewServer(registry, dispatcher, logger.Named("http"), &internalhttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}
