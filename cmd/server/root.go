package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dexsystem/coachpay/config"
	"github.com/dexsystem/coachpay/logs"
	"github.com/dexsystem/coachpay/payroll"
	"github.com/dexsystem/coachpay/store/sqlite"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coachpay",
		Short:         "Coaching pay rules, monthly snapshots and payroll for the studio.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global config flag, available for all commands.
	cmd.PersistentFlags().String("config", "config.yaml", "config file path")

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewRulesCommand())
	cmd.AddCommand(NewTotalsCommand())

	return cmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the wiring shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *sqlite.Store
	engine *payroll.Engine
}

// openApp reads config and opens the store. One-shot commands pass quiet
// so log lines do not mix with their output.
func openApp(cmd *cobra.Command, quiet bool) (*app, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	logger := logs.Nop()
	if !quiet {
		logger = logs.New(cfg)
		slog.SetDefault(logger)
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	engine := payroll.NewEngine(store,
		payroll.WithLocation(cfg.Location()),
		payroll.WithLogger(logger),
	)
	return &app{cfg: cfg, logger: logger, store: store, engine: engine}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
