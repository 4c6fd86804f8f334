package main

import (
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/planweave/planweave/internal/config"
	"github.com/planweave/planweave/internal/mode"
	"github.com/planweave/planweave/internal/orchestrator"
	"github.com/planweave/planweave/internal/pool"
	"github.com/planweave/planweave/internal/reason"
	"github.com/planweave/planweave/internal/registry"
	"github.com/planweave/planweave/internal/signal"
	"github.com/planweave/planweave/internal/snapshot"
	"github.com/planweave/planweave/internal/toolexec"
)

// session bundles everything a run or resume needs, with a Close that
// releases the store and the signal watcher.
type session struct {
	orch    *orchestrator.Orchestrator
	store   *snapshot.Store
	signals *signal.Watcher
	logger  *zap.Logger
}

func (s *session) Close() {
	if s.signals != nil {
		s.signals.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.logger != nil {
		s.logger.Sync()
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// buildSession wires the registry, tool runner, engine, pool, store,
// and signal watcher into an orchestrator for the current directory.
func buildSession(cfg *config.Config, verbose bool) (*session, error) {
	logger, err := newLogger(verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	plannerMode, err := cfg.Planner.ParseMode()
	if err != nil {
		return nil, err
	}

	reg, err := registry.FromManifest(cfg.Workers.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("load capability manifest: %w", err)
	}

	apiKey, err := config.GetAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := reason.NewClient(reason.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create reasoning client: %w", err)
	}

	runner := toolexec.New(cwd, logger)
	workers := pool.NewManager(pool.ManagerConfig{
		Registry:        reg,
		Engine:          engine,
		Runner:          runner,
		IterationBudget: cfg.Budgets.Worker,
		CheckFile:       runner.FileExists,
		Logger:          logger,
	})
	if cfg.Workers.ProfilesPath != "" {
		if err := workers.LoadProfiles(cfg.Workers.ProfilesPath); err != nil {
			return nil, fmt.Errorf("load worker profiles: %w", err)
		}
	}

	store, err := snapshot.Open(storePath(cfg, cwd))
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	watcher, err := signal.NewWatcher(cwd)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create signal watcher: %w", err)
	}
	watcher.Clear()

	orch := orchestrator.New(orchestrator.Config{
		Mode:            plannerMode,
		RetryPolicy:     cfg.Planner.RetryPolicy,
		MaxAttempts:     cfg.Planner.MaxAttempts,
		IterationBudget: cfg.Budgets.Orchestrator,
	}, orchestrator.Deps{
		Engine:   engine,
		Registry: reg,
		Pool:     workers,
		Store:    store,
		Signals:  watcher,
		Logger:   logger,
	})

	return &session{orch: orch, store: store, signals: watcher, logger: logger}, nil
}

// overrideMode applies a --mode flag on top of the configured planner mode.
func overrideMode(cfg *config.Config, flag string) error {
	if flag == "" {
		return nil
	}
	if _, err := mode.Parse(flag); err != nil {
		return err
	}
	cfg.Planner.Mode = flag
	return nil
}

func storePath(cfg *config.Config, cwd string) string {
	if cfg.Storage.DBPath != "" {
		return cfg.Storage.DBPath
	}
	return snapshot.DefaultPath(cwd)
}
