// Package cli builds the reservation-service command tree.
package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Jinnapat/jod-rod-matching-service/internal/config"
	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
)

// NewRootCmd returns the root command.  Running it without a subcommand
// behaves like serve.
func NewRootCmd() *cobra.Command {
	var cfgPath, logLevel string

	root := &cobra.Command{
		Use:           "reservation-service",
		Short:         "Parking reservation lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is normal outside local development.
			_ = godotenv.Load()
			level := logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			logger.SetOutput(os.Stdout, level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfgPath, false)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (info or debug); overrides LOG_LEVEL")

	root.AddCommand(newServeCmd(&cfgPath), newMigrateCmd(&cfgPath), newWatchCmd(&cfgPath), newTokenCmd(&cfgPath))
	return root
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return config.Config{}, err
	}
	logger.Debug("configuration loaded", "env", cfg.Env, "broker", cfg.Broker.Kind, "file", path)
	return cfg, nil
}
