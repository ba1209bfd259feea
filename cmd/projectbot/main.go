// Command projectbot runs the Telegram project wizard and its maintenance
// subcommands.
package main

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/projectbot/core/cmd"
	"github.com/m3rciful/projectbot/core/logger"
	"github.com/m3rciful/projectbot/internal/bot"
)

const defaultConfigPath = "config.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "projectbot",
		Short:         "Telegram bot that walks users through posting a marketplace project",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if envFile == "" {
				return nil
			}
			// A missing .env is normal outside development.
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringP("config", "c", "", "path to config.yaml (default $"+corecmd.DefaultConfigEnv+" or "+defaultConfigPath+")")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the config; empty disables")

	root.AddCommand(newRunCmd(), newMigrateCmd(), newSessionCmd(), newVersionCmd())
	return root
}

func configPath(cmd *cobra.Command) (string, error) {
	explicit, _ := cmd.Flags().GetString("config")
	opts := corecmd.Options{ConfigPath: explicit, DefaultConfigPath: defaultConfigPath}
	return opts.ResolveConfigPath()
}

// loadConfig reads the configuration and starts the logger for one-shot
// subcommands. The returned func flushes the logger.
func loadConfig(cmd *cobra.Command) (*bot.Config, func(), error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := bot.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return nil, nil, err
	}
	return cfg, func() { _ = logger.Shutdown() }, nil
}

func main() {
	start := time.Now()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "projectbot: %v (after %s)\n", err, logger.RoundMS(time.Since(start)))
		os.Exit(1)
	}
}
