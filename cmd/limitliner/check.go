package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/harry123456-afk/Limitliner/internal/config"
	"github.com/harry123456-afk/Limitliner/internal/policy"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check limit decisions interactively",
	Long:  `Check what limit LimitLiner would apply to an app.`,
}

var checkLimitCmd = &cobra.Command{
	Use:   "limit APP",
	Short: "Check the effective daily limit of an app",
	Long:  `Combine the stored setting, the configured default and the limit policy into the decision used for reports.`,
	Example: `  limitliner -c config.yaml check limit com.example.game
  limitliner check limit com.android.chrome`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckLimit,
}

func init() {
	checkCmd.AddCommand(checkLimitCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckLimit(cmd *cobra.Command, args []string) error {
	appID := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	c, err := buildComponents(cfg, quietLogger())
	if err != nil {
		return err
	}
	defer c.store.Close()

	ctx, cancel := withTimeout()
	defer cancel()

	limits, err := c.limits.Limits(ctx, []string{appID})
	if err != nil {
		return fmt.Errorf("failed to resolve limits: %w", err)
	}

	var stored *storage.AppSetting
	if s, err := c.store.Settings().Get(ctx, appID); err == nil {
		stored = s
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	displayName := appID
	if meta, err := c.metadata.Resolve(ctx, appID); err == nil {
		displayName = meta.DisplayName
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	_, _ = cyan.Printf("App: %s (%s)\n", displayName, appID)
	fmt.Printf("  Default limit: %s\n", millisString(c.limits.DefaultMillis()))
	if stored != nil && stored.DailyLimitMillis > 0 {
		fmt.Printf("  Stored limit:  %s\n", millisString(stored.DailyLimitMillis))
	} else {
		fmt.Println("  Stored limit:  (none)")
	}

	if c.policy != nil {
		facts := policy.Facts{AppID: appID, DefaultLimitMillis: c.limits.DefaultMillis()}
		if stored != nil {
			facts.AppLimitMillis = stored.DailyLimitMillis
			facts.Muted = stored.Muted
		}
		decision := c.policy.Decide(ctx, facts)
		reason := decision.Reason
		if reason == "" {
			reason = "policy"
		}
		fmt.Printf("  Policy:        %s, notify=%v (%s)\n", millisString(decision.LimitMillis), decision.Notify, reason)
	} else {
		fmt.Println("  Policy:        (disabled)")
	}

	_, _ = green.Printf("Effective limit: %s\n", millisString(limits.For(appID)))
	if limits.IsMuted(appID) {
		_, _ = yellow.Println("Alerts: muted")
	} else {
		_, _ = green.Println("Alerts: on")
	}

	return nil
}

func millisString(millis int64) string {
	return (time.Duration(millis) * time.Millisecond).String()
}
