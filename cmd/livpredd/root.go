package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Mc-ouma/LivPredApp-sub001/internal/config"
	"github.com/Mc-ouma/LivPredApp-sub001/internal/logging"
)

type rootFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "livpredd",
		Short:        "Football fixtures, predictions and match reminders",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to the YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "dotenv file loaded before the config")

	root.AddCommand(
		newServeCmd(flags),
		newPreloadCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, reminder delivery and scheduled preloading",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := newService(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					log.WithError(err).Warn("shutdown")
				}
			}()
			return svc.Run(ctx)
		},
	}
}

func newPreloadCmd(flags *rootFlags) *cobra.Command {
	var leagues []string
	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Warm the fixture cache once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			if len(leagues) > 0 {
				cfg.Preload.Leagues = leagues
			}
			fb, err := newFootball(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer fb.Close()

			warmed, err := fb.preloader.Warm(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "warmed %d fixture lists\n", warmed)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&leagues, "leagues", nil, "league codes to warm instead of the configured ones")
	return cmd
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate the configuration and print it with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := flags.load()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(redact(cfg))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (f *rootFlags) load() (config.Config, *logrus.Logger, error) {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil {
			return config.Config{}, nil, fmt.Errorf("load env (%s): %w", f.envFile, err)
		}
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

const masked = "********"

func redact(cfg config.Config) config.Config {
	if cfg.API.Key != "" {
		cfg.API.Key = masked
	}
	if cfg.Cache.Redis.Password != "" {
		cfg.Cache.Redis.Password = masked
	}
	if cfg.Postgres.DSN != "" {
		cfg.Postgres.DSN = masked
	}
	if cfg.Reminders.WebhookToken != "" {
		cfg.Reminders.WebhookToken = masked
	}
	return cfg
}

// ignoreCanceled treats the normal end of a signal-driven run as success.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
