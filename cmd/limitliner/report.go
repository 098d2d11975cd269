package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harry123456-afk/Limitliner/internal/config"
	"github.com/harry123456-afk/Limitliner/internal/usage"
	"github.com/spf13/cobra"
)

var (
	reportRange  string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a usage report",
	Long:  `Aggregate the stored events of a range and print per-app usage, limits and the hourly histogram.`,
	Example: `  limitliner report
  limitliner -c config.yaml report --range week --format json`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportRange, "range", "today", "Report range (today, week, month)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "Output format (text, json)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	rng, err := usage.ParseRange(reportRange)
	if err != nil {
		return err
	}
	if reportFormat != "text" && reportFormat != "json" {
		return fmt.Errorf("invalid format: %s (valid: text, json)", reportFormat)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	c, err := buildComponents(cfg, quietLogger())
	if err != nil {
		return err
	}
	defer c.store.Close()

	now := time.Now().In(c.location)
	window := rng.Window(now)
	if rng == usage.RangeToday {
		// Today means the local calendar day, as the monitor sees it
		window, err = usage.WindowFromTimes(usage.StartOfDay(now), now)
		if err != nil {
			return err
		}
	}

	ctx, cancel := withTimeout()
	defer cancel()

	report, err := c.engine.Report(ctx, window)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	if reportFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(os.Stdout, report, rng, c.location)
	return nil
}

// printReport writes the text form of a report
func printReport(w io.Writer, report *usage.Report, rng usage.Range, loc *time.Location) {
	red := color.New(color.FgRed, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	start := time.UnixMilli(report.Window.Start).In(loc)
	end := time.UnixMilli(report.Window.End).In(loc)
	_, _ = cyan.Fprintf(w, "Usage %s (%s - %s)\n\n", rng, start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))

	if len(report.Records) == 0 {
		_, _ = fmt.Fprintln(w, "No app usage recorded")
	}

	for _, r := range report.Records {
		line := fmt.Sprintf("  %-32s %8s  limit %-8s remaining %s  %3.0f%%",
			truncateName(r.DisplayName, 32),
			r.FormatUsage(),
			formatLimit(r.DailyLimitMillis),
			r.FormatRemaining(),
			r.ProgressFraction()*100,
		)
		if r.IsOverLimit() {
			_, _ = red.Fprintln(w, line+"  OVER LIMIT")
		} else {
			_, _ = green.Fprintln(w, line)
		}
	}

	_, _ = cyan.Fprintln(w, "\nHourly usage (minutes)")
	printHistogram(w, report.Histogram)

	total := fmt.Sprintf("\nTotal: %d min of %d min daily limit", report.TotalMinutes, report.GlobalLimitMinutes)
	if report.GlobalOverLimit {
		_, _ = red.Fprintln(w, total+"  OVER LIMIT")
	} else {
		_, _ = green.Fprintln(w, total)
	}

	if report.Truncated {
		_, _ = red.Fprintf(w, "Warning: only the first %d events of the range were processed\n", report.EventCount)
	}
}

// printHistogram draws one bar per hour scaled to the busiest hour
func printHistogram(w io.Writer, hist usage.Histogram) {
	const width = 40

	var peak int64
	for _, m := range hist {
		if m > peak {
			peak = m
		}
	}

	for hour, minutes := range hist {
		bar := 0
		if peak > 0 {
			bar = int(minutes * width / peak)
		}
		_, _ = fmt.Fprintf(w, "  %02d:00 %-*s %d\n", hour, width, strings.Repeat("#", bar), minutes)
	}
}

func formatLimit(millis int64) string {
	d := time.Duration(millis) * time.Millisecond
	return fmt.Sprintf("%dh %dm", int64(d/time.Hour), int64(d/time.Minute)%60)
}

func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max-1]) + "…"
}
