package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jinnapat/jod-rod-matching-service/internal/database"
	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
)

func newMigrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the reservations table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			logger.Info("schema up to date", "database", cfg.DB.Name)
			return nil
		},
	}
}
