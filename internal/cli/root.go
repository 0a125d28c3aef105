// Package cli provides the sopd command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/sopd/internal/config"
	"github.com/sandeepkv93/sopd/internal/storage"
	"github.com/sandeepkv93/sopd/internal/tracker"
)

// Version is set at build time.
var Version = "0.1.0"

type app struct {
	configPath string
	storeFlag  string
	logLevel   string

	cfg      config.RuntimeConfig
	logger   *slog.Logger
	closeLog func() error
	store    *storage.Store
	tracker  *tracker.Tracker
	now      func() time.Time
	loc      *time.Location
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	a := &app{now: time.Now, loc: time.Local}

	root := &cobra.Command{
		Use:   "sopd",
		Short: "Schedule standard operating procedures and get reminded step by step",
		Long: `sopd turns a procedure document into a timed schedule, tracks step
completion and fires reminders when each step is due.

Procedures are stored locally in SQLite or a JSON file.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $SOPD_CONFIG or <user config dir>/sopd/config.yaml)")
	root.PersistentFlags().StringVar(&a.storeFlag, "store", "", "storage backend: sqlite or file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newScheduleCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newCompleteCmd(a),
		newSnoozeCmd(a),
		newRescheduleCmd(a),
		newArchiveCmd(a),
		newDeleteCmd(a),
		newNextCmd(a),
		newWatchCmd(a),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) open(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storeFlag != "" {
		cfg.Store = a.storeFlag
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger, a.closeLog = config.SetupLogger(cfg.LogFile, cfg.SlogLevel())

	sub, err := openSubstrate(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	a.store, err = storage.NewStore(sub, a.logger)
	if err != nil {
		_ = sub.Close()
		return err
	}
	a.tracker, err = tracker.New(a.store, tracker.WithClock(a.now), tracker.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.logger.Debug("store opened", "store", cfg.Store)
	return nil
}

func openSubstrate(ctx context.Context, cfg config.RuntimeConfig) (storage.Substrate, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch cfg.Store {
	case config.StoreFile:
		sub, err := storage.NewFileSubstrate(cfg.StateDir)
		if err != nil {
			return nil, err
		}
		return sub, nil
	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "" {
			if err := ensureDir(dir); err != nil {
				return nil, err
			}
		}
		sub, err := storage.OpenSQLite(ctx, cfg.SQLiteDriver, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return sub, nil
	}
}

func (a *app) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.closeLog != nil {
		if cerr := a.closeLog(); err == nil {
			err = cerr
		}
		a.closeLog = nil
	}
	return err
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
