package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/m3rciful/projectbot/core/bootstrap"
	corecmd "github.com/m3rciful/projectbot/core/cmd"
	"github.com/m3rciful/projectbot/internal/bot"
)

func newRunCmd() *cobra.Command {
	var (
		skipMigrations bool
		waitTimeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			explicit, _ := cmd.Flags().GetString("config")
			return corecmd.Run(cmd.Context(), corecmd.Options{
				ConfigPath:        explicit,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return bot.LoadConfig(path)
				},
				Bootstrap: func(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					return bootstrapApp(ctx, carrier, skipMigrations, waitTimeout)
				},
			})
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not migrate the session schema on start")
	cmd.Flags().DurationVar(&waitTimeout, "db-wait", 30*time.Second, "how long to wait for Postgres; 0 disables waiting")
	return cmd
}

func bootstrapApp(ctx context.Context, carrier corecmd.ConfigCarrier, skipMigrations bool, wait time.Duration) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*bot.Config)
	if !ok {
		return nil, errors.New("projectbot: unexpected config type")
	}
	opts := bootstrap.Options{
		Config:         cfg.CoreConfig(),
		SkipMigrations: skipMigrations,
		WaitTimeout:    wait,
	}
	if cfg.NeedsDatabase() {
		opts.Database = &cfg.Database
	}
	res, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	app, err := bot.New(cfg, res.DB)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	// The app owns res.DB from here and closes it with itself.
	return app, nil
}
