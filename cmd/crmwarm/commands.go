package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlesng35/crmwarm/internal/app"
	"github.com/charlesng35/crmwarm/internal/app/maintenance"
	"github.com/charlesng35/crmwarm/internal/services"
	"github.com/charlesng35/crmwarm/internal/warmer"
	apperrors "github.com/charlesng35/crmwarm/pkg/errors"
	"github.com/charlesng35/crmwarm/pkg/logger"
	"github.com/charlesng35/crmwarm/pkg/metrics"
)

type rootFlags struct {
	configPath string
	logLevel   string
	warmup     bool
	clientID   int64
	ttl        int64
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "crmwarm",
		Short: "Warm the CRM client snapshot cache",
		Long: `Reads CRM client records and caches one normalised JSON snapshot per client
under crm:client:{id}:snapshot with a fixed TTL.

Prints "Cached N client snapshot(s) with TTL T seconds." on completion.`,
		Args:          noArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWarm(cmd, flags)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.InvalidOptions(err)
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to configuration directory or file")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.Int64Var(&flags.ttl, "ttl", int64(warmer.DefaultTTL/time.Second), "Snapshot expiry in seconds")

	f := cmd.Flags()
	f.BoolVar(&flags.warmup, "warmup", false, "Print a confirmation line after a successful run")
	f.Int64Var(&flags.clientID, "client", 0, "Only cache the client with this id")

	cmd.AddCommand(newScheduleCommand(flags))
	return cmd
}

func runWarm(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := prepare(flags)
	if err != nil {
		return err
	}
	defer logger.Sync() // best effort

	ttl, err := ttlFor(cmd, flags, cfg)
	if err != nil {
		return err
	}
	opts := warmer.Options{TTL: ttl, Warmup: flags.warmup}
	if cmd.Flags().Changed("client") {
		id := flags.clientID
		opts.ClientID = &id
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	rt, err := bootstrap(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	w, err := newWarmer(rt, opts)
	if err != nil {
		return err
	}

	_, runErr := w.Run(cmd.Context(), cmd.OutOrStdout())
	writeMetrics(cfg, rt.log)
	return runErr
}

func newScheduleCommand(flags *rootFlags) *cobra.Command {
	var (
		spec   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Warm the cache repeatedly on a cron schedule until interrupted",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := prepare(flags)
			if err != nil {
				return err
			}
			defer logger.Sync() // best effort

			ttl, err := ttlFor(cmd, flags, cfg)
			if err != nil {
				return err
			}
			opts := warmer.Options{TTL: ttl}
			if err := opts.Validate(); err != nil {
				return err
			}

			rt, err := bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			w, err := newWarmer(rt, opts)
			if err != nil {
				return err
			}

			if strings.TrimSpace(spec) == "" {
				spec = cfg.Warmer.Schedule
			}
			scheduler := maintenance.NewScheduler(w,
				maintenance.WithSchedule(spec),
				maintenance.WithOutput(cmd.OutOrStdout()),
				maintenance.WithAfterRun(func(warmer.Result, error) {
					writeMetrics(cfg, rt.log)
				}),
			)

			if runNow {
				_ = scheduler.RunOnce(cmd.Context())
			}
			if err := scheduler.Start(cmd.Context()); err != nil {
				return apperrors.InvalidOptions(fmt.Errorf("schedule %q: %w", spec, err))
			}

			<-cmd.Context().Done()
			rt.log.Info("shutdown signal received")
			<-scheduler.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron specification (defaults to warmer.schedule)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run once immediately before waiting for the first tick")
	return cmd
}

// noArgs reports stray positional arguments as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return apperrors.InvalidOptions(err)
	}
	return nil
}

// prepare loads configuration, applies flag overrides and configures logging.
func prepare(flags *rootFlags) (*app.Config, error) {
	cfg, err := loadApplicationConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(flags.logLevel) != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := app.ConfigureLogging(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, nil
}

// ttlFor prefers --ttl, then warmer.ttl from configuration.
func ttlFor(cmd *cobra.Command, flags *rootFlags, cfg *app.Config) (time.Duration, error) {
	if cmd.Flags().Changed("ttl") {
		return warmer.TTLFromSeconds(flags.ttl)
	}
	return cfg.Warmer.TTLDuration()
}

func newWarmer(rt *runtime, opts warmer.Options) (*warmer.Warmer, error) {
	reader, err := services.NewClientReader(rt.db)
	if err != nil {
		return nil, err
	}
	return warmer.New(reader, rt.store, opts, warmer.WithLogger(rt.log.Named("warmer")))
}

func writeMetrics(cfg *app.Config, log *zap.Logger) {
	path := strings.TrimSpace(cfg.Metrics.Textfile)
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		log.Warn("write metrics textfile failed", zap.String("path", path), zap.Error(err))
	}
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.InvalidOptions(fmt.Errorf("config path %q does not exist", path))
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
