package cmd

import (
	"errors"
	"fmt"

	"github.com/charukad/traceiq/internal/config"
	"github.com/charukad/traceiq/internal/database/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending PostgreSQL migrations. Safe to run from several processes at once.
Use --status to list migrations without applying them.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("status", false, "Only show which migrations are applied")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := cmd.Context()
	if !mustGetBool(cmd, "status") {
		applied, err := pool.Migrate(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Applied %d migration(s)\n", applied)
	}

	states, err := pool.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	for _, s := range states {
		if s.AppliedAt == nil {
			fmt.Printf("  %s  pending\n", s.Version)
			continue
		}
		fmt.Printf("  %s  applied %s\n", s.Version, s.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
