package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xaenox/mailsift/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := storage.Open(cmd.Context(), cfg.Database.Storage())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(cmd.Context(), db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date")
	return nil
}
