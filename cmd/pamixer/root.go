package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jfreymuth/pamixer"
	"github.com/jfreymuth/pamixer/internal/config"
	"github.com/jfreymuth/pamixer/internal/logging"
)

// app holds what every command needs after flags and config are loaded.
type app struct {
	v        *viper.Viper
	file     string
	settings *config.Settings
	log      *slog.Logger
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	return a.rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pamixer",
		Short:         "Live view of PulseAudio devices, streams and peak levels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.applyFlags(cmd)
			return a.run(cmd.Context())
		},
	}

	if err := setupFlags(root, a); err != nil {
		panic(err)
	}
	root.AddCommand(dumpCommand(a), versionCommand())
	return root
}

func setupFlags(root *cobra.Command, a *app) error {
	pf := root.PersistentFlags()
	pf.StringVarP(&a.file, "config", "c", "", "config file (default $XDG_CONFIG_HOME/pamixer/config.yaml)")
	pf.StringP("server", "s", "", "server string, e.g. unix:/run/user/1000/pulse/native or tcp:host")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("log-file", "", "write logs to a rotating file instead of stderr")
	pf.Bool("no-peaks", false, "do not create metering streams")
	pf.Int("peak-rate", pamixer.DefaultPeakRate, "metering samples per second")
	pf.String("metrics-listen", "", "serve Prometheus metrics on this address")

	root.Flags().Bool("no-ui", false, "log cache changes instead of showing the terminal view")

	for key, flag := range map[string]string{
		"server":         "server",
		"log.level":      "log-level",
		"log.format":     "log-format",
		"log.file":       "log-file",
		"peaks.rate":     "peak-rate",
		"metrics.listen": "metrics-listen",
	} {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func (a *app) load() error {
	settings, err := config.Load(a.v, a.file)
	if err != nil {
		return err
	}
	a.settings = settings
	return nil
}

// applyFlags copies negated boolean flags, which have no direct config key.
func (a *app) applyFlags(cmd *cobra.Command) {
	if off, err := cmd.Flags().GetBool("no-peaks"); err == nil && off {
		a.settings.Peaks.Enabled = false
	}
	if off, err := cmd.Flags().GetBool("no-ui"); err == nil && off {
		a.settings.UI.Enabled = false
	}
}

// openLog sets up logging. With the terminal view, logs only go to a file.
func (a *app) openLog() error {
	s := a.settings
	if s.UI.Enabled && s.Log.File == "" {
		a.log = slog.New(slog.DiscardHandler)
		return nil
	}
	log, closeLog, err := logging.New(logging.Config{
		Level:      s.Log.Level,
		Format:     s.Log.Format,
		File:       s.Log.File,
		MaxSizeMB:  s.Log.MaxSizeMB,
		MaxBackups: s.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	a.log, a.closeLog = log, closeLog
	return nil
}

func (a *app) sessionOptions(metrics *pamixer.Metrics) []pamixer.Option {
	s := a.settings
	opts := []pamixer.Option{
		pamixer.WithServer(s.Server),
		pamixer.WithApplicationName(s.App.Name),
		pamixer.WithApplicationID(s.App.ID),
		pamixer.WithIgnoredApps(s.IgnoreApps...),
		pamixer.WithPeakRate(s.Peaks.Rate),
		pamixer.WithLogger(a.log),
	}
	if !s.Peaks.Enabled {
		opts = append(opts, pamixer.WithoutPeaks())
	}
	if metrics != nil {
		opts = append(opts, pamixer.WithMetrics(metrics))
	}
	return opts
}

func newMetrics() (*prometheus.Registry, *pamixer.Metrics, error) {
	registry := prometheus.NewRegistry()
	m, err := pamixer.NewMetrics(registry)
	if err != nil {
		return nil, nil, fmt.Errorf("registering metrics: %w", err)
	}
	return registry, m, nil
}
