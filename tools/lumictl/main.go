// Command lumictl holds the admin tasks that run outside the server:
// schema migrations, the TAB_HIST_SRA Agent job, spreadsheet checks and a
// notification watcher that talks to a running server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lumigente_backend/main/config"
	"lumigente_backend/main/database"
	"lumigente_backend/main/logger"
)

var (
	envFile string
	verbose bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "lumictl",
	Short:         "LumiGente admin tasks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = []string{envFile}
		}
		loaded, err := config.Load(files...)
		if err != nil {
			return err
		}
		cfg = loaded
		database.Configure(cfg.Database())
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		if log, err = logger.Init(level, !cfg.IsProduction()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "environment file (default config.env, then .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(migrateCmd, histjobCmd, historicoCmd, notificacoesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lumictl:", err)
		os.Exit(1)
	}
}
