package cli

import (
	"github.com/spf13/cobra"

	"github.com/idkosilov/furniture/internal/infrastructure/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the allocation schema",
	Long:  `Applies the embedded schema for the configured database. Safe to run repeatedly.`,
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dialect, err := store.DialectFor(cfg.Database.Driver)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := store.Open(ctx, dialect, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(ctx, db, dialect); err != nil {
		return err
	}
	cmd.Printf("%s schema is up to date.\n", dialect)
	return nil
}
