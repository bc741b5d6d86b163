package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mealcal/internal/tz"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print merged events for a window as JSON",
	Example: `  mealcal events --start 2025-07-01 --end 2025-07-07 --tz Europe/Berlin
  mealcal events --start 2025-07-01T00:00:00Z --end 2025-08-01T00:00:00Z`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		zoneFlag, _ := cmd.Flags().GetString("tz")
		zone := a.service.ResolveZone(zoneFlag)

		rawStart, _ := cmd.Flags().GetString("start")
		rawEnd, _ := cmd.Flags().GetString("end")
		start, err := tz.ParseBound(rawStart, zone, false)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		if start.IsZero() {
			start, _ = tz.DayBounds(time.Now(), zone)
		}
		end, err := tz.ParseBound(rawEnd, zone, true)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		if end.IsZero() {
			end = start.AddDate(0, 0, a.cfg.HorizonDays)
		}
		if end.Before(start) {
			return fmt.Errorf("--end %s is before --start %s", rawEnd, rawStart)
		}

		events := a.service.FetchCalendarEvents(cmd.Context(), start, end, zone)
		return printJSON(cmd.OutOrStdout(), events)
	},
}

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Print the events on one local calendar day as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		zoneFlag, _ := cmd.Flags().GetString("tz")
		zone := a.service.ResolveZone(zoneFlag)

		instant := time.Now()
		if raw, _ := cmd.Flags().GetString("date"); raw != "" {
			d, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				return fmt.Errorf("--date: want YYYY-MM-DD, got %q", raw)
			}
			instant = tz.LocalNoon(d, zone)
		}

		events := a.service.GetEventsForDate(cmd.Context(), instant, zone)
		return printJSON(cmd.OutOrStdout(), events)
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd, dayCmd)

	eventsCmd.Flags().String("start", "", "window start: RFC3339 or YYYY-MM-DD (default today)")
	eventsCmd.Flags().String("end", "", "window end: RFC3339 or YYYY-MM-DD (default start + horizon_days)")
	eventsCmd.Flags().String("tz", "", "IANA timezone (default from config)")

	dayCmd.Flags().String("date", "", "YYYY-MM-DD (default today)")
	dayCmd.Flags().String("tz", "", "IANA timezone (default from config)")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
