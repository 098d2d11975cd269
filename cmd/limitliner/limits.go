package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/spf13/cobra"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Manage per-app daily limits",
}

var limitsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List apps with a custom limit or muted alerts",
	Args:  cobra.NoArgs,
	RunE:  runLimitsList,
}

var limitsSetCmd = &cobra.Command{
	Use:     "set APP DURATION",
	Short:   "Set the daily limit of an app",
	Example: `  limitliner limits set com.example.game 45m`,
	Args:    cobra.ExactArgs(2),
	RunE:    runLimitsSet,
}

var limitsMuteCmd = &cobra.Command{
	Use:   "mute APP",
	Short: "Suppress over-limit alerts for an app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSetting(args[0], func(s *storage.AppSetting) { s.Muted = true })
	},
}

var limitsUnmuteCmd = &cobra.Command{
	Use:   "unmute APP",
	Short: "Re-enable over-limit alerts for an app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSetting(args[0], func(s *storage.AppSetting) { s.Muted = false })
	},
}

var limitsClearCmd = &cobra.Command{
	Use:   "clear APP",
	Short: "Remove the settings of an app so the default limit applies",
	Args:  cobra.ExactArgs(1),
	RunE:  runLimitsClear,
}

func init() {
	limitsCmd.AddCommand(limitsListCmd)
	limitsCmd.AddCommand(limitsSetCmd)
	limitsCmd.AddCommand(limitsMuteCmd)
	limitsCmd.AddCommand(limitsUnmuteCmd)
	limitsCmd.AddCommand(limitsClearCmd)
	rootCmd.AddCommand(limitsCmd)
}

func runLimitsList(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := withTimeout()
	defer cancel()

	settings, err := store.Settings().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list settings: %w", err)
	}

	if len(settings) == 0 {
		fmt.Println("No custom limits configured")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "APP\tLIMIT\tALERTS")
	for _, s := range settings {
		limit := "default"
		if s.DailyLimitMillis > 0 {
			limit = (time.Duration(s.DailyLimitMillis) * time.Millisecond).String()
		}
		alerts := "on"
		if s.Muted {
			alerts = "muted"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", s.AppID, limit, alerts)
	}
	return tw.Flush()
}

func runLimitsSet(cmd *cobra.Command, args []string) error {
	limit, err := time.ParseDuration(args[1])
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", args[1], err)
	}
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %s", limit)
	}

	return updateSetting(args[0], func(s *storage.AppSetting) {
		s.DailyLimitMillis = limit.Milliseconds()
	})
}

func runLimitsClear(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := withTimeout()
	defer cancel()

	if err := store.Settings().Delete(ctx, args[0]); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no settings stored for %s", args[0])
		}
		return fmt.Errorf("failed to clear settings: %w", err)
	}

	_, _ = color.New(color.FgGreen).Printf("✅ %s now uses the default limit\n", args[0])
	return nil
}

// updateSetting loads the setting of appID (or a fresh one), applies fn and stores it
func updateSetting(appID string, fn func(*storage.AppSetting)) error {
	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	setting := storage.AppSetting{AppID: appID}
	existing, err := store.Settings().Get(ctx, appID)
	switch {
	case err == nil:
		setting = *existing
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("failed to load settings: %w", err)
	}

	fn(&setting)
	setting.UpdatedAt = time.Now()

	if err := store.Settings().Upsert(ctx, setting); err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}

	_, _ = color.New(color.FgGreen).Printf("✅ Updated %s\n", appID)
	return nil
}
