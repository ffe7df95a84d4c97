// Package cmd implements the nudged command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/runger/nudge/internal/config"
	"github.com/runger/nudge/internal/engine/kv"
	"github.com/runger/nudge/internal/engine/predict"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nudged",
	Short: "adaptive proactive-suggestion engine",
	Long: `nudged - adaptive proactive-suggestion engine
  - gates suggestions on confidence, dwell, cooldown and ignore history
  - learns suggestion weights from feedback
  - mines daily and weekly scene patterns`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: XDG config dir)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Daemon.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openEngine opens the sqlite-backed store and a loaded predictor.
// The caller must Close the returned store.
func openEngine(ctx context.Context) (*predict.Predictor, *kv.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return nil, nil, fmt.Errorf("failed to create directories: %w", err)
	}

	dbPath := cfg.Daemon.DatabasePath
	if dbPath == "" {
		dbPath = paths.DatabaseFile()
	}

	store, err := kv.OpenSQLite(ctx, dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	p, err := predict.New(predict.Options{
		Store:    store,
		Logger:   newLogger(cfg),
		Trigger:  cfg.TriggerGateConfig(),
		Escalate: cfg.EscalateConfig(),
		Timeline: cfg.TimelineMinerConfig(),
		Feedback: cfg.FeedbackAdjusterConfig(),
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if err := p.Load(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return p, store, nil
}
