package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"budgetoffice/internal/config"
	"budgetoffice/internal/database"
	"budgetoffice/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := newRootCmd().Execute(); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the budget office database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withManager(func(m *database.Manager) error {
				if err := m.Migrate(); err != nil {
					return err
				}
				logger.Get().Info("Migrations applied successfully")
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "down [N]",
		Short: "Roll back the last N migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid step count: %q", args[0])
				}
				steps = n
			}
			return withManager(func(m *database.Manager) error {
				if err := m.Rollback(steps); err != nil {
					return err
				}
				logger.Get().Infof("Rolled back %d migration(s)", steps)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withManager(func(m *database.Manager) error {
				version, dirty, err := m.Version()
				if err != nil {
					return fmt.Errorf("failed to get version: %w", err)
				}
				logger.Get().Infof("Version: %d, Dirty: %v", version, dirty)
				return nil
			})
		},
	})

	return root
}

func withManager(fn func(*database.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	m, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Get().Warnf("database close error: %v", err)
		}
	}()

	return fn(m)
}
