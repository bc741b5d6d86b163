package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mealcal/internal/calendar"
	"mealcal/internal/config"
	"mealcal/internal/ics"
	appLog "mealcal/internal/log"
	"mealcal/internal/sources"
	"mealcal/internal/tz"
)

const defaultConfigPath = "/etc/mealcal/config.yaml"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mealcal",
	Short: "Calendar feed aggregator for the meal planner",
	Long: `mealcal fetches ICS feeds, expands recurring events and serves the
merged, timezone-aware event list over HTTP or on the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute runs the root command. It only needs to happen once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "path to config file (created with defaults if missing)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "", "log level: debug, info, warn, error (overrides config)")
}

// app is everything a subcommand needs, built once from the config.
type app struct {
	cfg      *config.Config
	registry *sources.Registry
	fetcher  *ics.Fetcher
	service  *calendar.Service
}

func loadApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgFile, err)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	appLog.SetLevel(appLog.Level(level))

	zone := tz.ResolveTimezone(cfg.Timezone, "")
	if zone != cfg.Timezone {
		appLog.Warn("configured timezone not loadable, using fallback", "timezone", cfg.Timezone, "using", zone)
	}

	registry := sources.NewRegistry(cfg.CalendarSources())
	fetcher := ics.NewFetcher(ics.FetcherOptions{
		Timeout:      cfg.FetchTimeout,
		Retries:      cfg.FetchRetries,
		UserAgent:    cfg.UserAgent,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Location:     tz.Location(zone),
	})
	service, err := calendar.NewService(registry, fetcher, calendar.Options{
		DefaultZone: zone,
		FilterHour:  cfg.EventFilterHour.Ptr(),
		Concurrency: cfg.FetchConcurrency,
		CacheSize:   cfg.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	appLog.Info("effective config",
		"config_path", cfgFile,
		"listen", cfg.Listen,
		"timezone", zone,
		"event_filter_hour", cfg.EventFilterHour.String(),
		"refresh", cfg.RefreshCron,
		"horizon_days", cfg.HorizonDays,
		"sources", len(registry.List()),
	)

	return &app{cfg: cfg, registry: registry, fetcher: fetcher, service: service}, nil
}
