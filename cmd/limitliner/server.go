package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/config"
	"github.com/harry123456-afk/Limitliner/internal/limits"
	"github.com/harry123456-afk/Limitliner/internal/metadata"
	"github.com/harry123456-afk/Limitliner/internal/metrics"
	"github.com/harry123456-afk/Limitliner/internal/notify"
	"github.com/harry123456-afk/Limitliner/internal/policy"
	"github.com/harry123456-afk/Limitliner/internal/policy/opa"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/harry123456-afk/Limitliner/internal/storage/redis"
	"github.com/harry123456-afk/Limitliner/internal/storage/sqlite"
	"github.com/harry123456-afk/Limitliner/internal/systemd"
	"github.com/harry123456-afk/Limitliner/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start LimitLiner server",
	Long:  `Start the usage monitor, the retention scheduler and the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

// components holds everything needed to build usage reports
type components struct {
	store    storage.Store
	metadata *metadata.Resolver
	policy   *policy.Engine // nil without policy.policy_dir
	limits   *limits.Resolver
	engine   *usage.Engine
	location *time.Location
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting LimitLiner")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to get systemd listeners")
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	// Initialize Monitor
	monitor := usage.NewMonitor(
		c.engine,
		c.store.Alerts(),
		notify.NewLogNotifier(logger),
		usage.MonitorConfig{
			PollInterval: parseDuration(cfg.Usage.PollInterval, usage.DefaultPollInterval),
			RetryDelay:   parseDuration(cfg.Usage.RetryDelay, usage.DefaultRetryDelay),
			Location:     c.location,
		},
		usage.RealClock{},
		logger,
	)
	monitor.Start()
	logger.Info().Str("poll_interval", cfg.Usage.PollInterval).Msg("Usage Monitor initialized")

	// Initialize Retention Scheduler
	retention, err := usage.NewRetentionScheduler(
		c.store,
		cfg.Usage.DailyResetTime,
		cfg.Usage.RetentionDays,
		c.location,
		usage.RealClock{},
		logger,
	)
	if err != nil {
		monitor.Stop()
		return fmt.Errorf("failed to initialize Retention Scheduler: %w", err)
	}
	retention.Start()
	logger.Info().Int("retention_days", cfg.Usage.RetentionDays).Msg("Retention Scheduler initialized")

	// Start metrics server
	metricsServer := metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort), logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		monitor.Stop()
		retention.Stop()
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().Msg("LimitLiner started successfully")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	stopNotify := make(chan struct{})
	if interval := systemd.WatchdogInterval(); interval > 0 {
		logger.Info().Dur("interval", interval).Msg("systemd watchdog enabled")
		go runWatchdog(interval, stopNotify, logger)
	}
	if systemd.IsSystemdService() {
		go runStatus(monitor, parseDuration(cfg.Usage.PollInterval, usage.DefaultPollInterval), stopNotify, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// Signal handling loop
	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			break
		}

		logger.Info().Msg("SIGHUP received, reloading policies...")
		if c.policy != nil {
			if err := c.policy.Reload(); err != nil {
				logger.Error().Err(err).Msg("Failed to reload policies")
			} else {
				logger.Info().Strs("modules", c.policy.Modules()).Msg("Policies reloaded successfully")
			}
		}
		size, capacity := c.metadata.CacheStats()
		logger.Info().Int("entries", size).Int("capacity", capacity).Msg("Clearing metadata cache")
		c.metadata.ClearCache()
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	close(stopNotify)

	monitor.Stop()
	retention.Stop()

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("LimitLiner stopped")
	return nil
}

// buildComponents opens storage and wires the report engine
func buildComponents(cfg *config.Config, logger zerolog.Logger) (*components, error) {
	loc, err := cfg.Usage.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	resolver, err := metadata.NewResolver(store.Apps(), cfg.Metadata.CacheSize, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize Metadata Resolver: %w", err)
	}

	c := &components{
		store:    store,
		metadata: resolver,
		location: loc,
	}

	// The policy is optional; without it stored settings are used as-is
	var decider limits.Decider
	if cfg.Policy.PolicyDir != "" {
		c.policy, err = policy.NewEngine(opa.Config{PolicyDir: cfg.Policy.PolicyDir}, loc, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize Policy Engine: %w", err)
		}
		decider = c.policy
	}

	defaultLimit := parseDuration(cfg.Usage.DefaultAppLimit, 2*time.Hour).Milliseconds()
	c.limits = limits.NewResolver(store.Settings(), defaultLimit, decider, resolver, logger)

	maxEvents := cfg.Usage.MaxEventsPerQuery
	if maxEvents <= 0 {
		maxEvents = usage.DefaultMaxEventsPerQuery
	}

	// Read one event past the cap so the engine can tell the window was truncated
	source := usage.StoreEventSource{Store: store.Events(), Limit: maxEvents + 1}

	c.engine = usage.NewEngine(source, resolver, c.limits, usage.EngineConfig{
		DefaultAppLimitMillis:   defaultLimit,
		GlobalDailyLimitMinutes: cfg.Usage.GlobalDailyLimitMinutes,
		MaxEventsPerQuery:       maxEvents,
		Location:                loc,
	}, logger)

	return c, nil
}

// runWatchdog pings the systemd watchdog until stop is closed
func runWatchdog(interval time.Duration, stop <-chan struct{}, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := systemd.NotifyWatchdog(); err != nil {
				logger.Warn().Err(err).Msg("Failed to ping systemd watchdog")
			}
		case <-stop:
			return
		}
	}
}

// runStatus publishes the latest report summary as the systemd unit status
func runStatus(monitor *usage.Monitor, interval time.Duration, stop <-chan struct{}, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := systemd.NotifyStatus(statusLine(monitor.LastReport())); err != nil {
				logger.Warn().Err(err).Msg("Failed to send systemd status")
			}
		case <-stop:
			return
		}
	}
}

// statusLine summarizes a report in one line
func statusLine(report *usage.Report) string {
	if report == nil {
		return "Waiting for first report"
	}

	over := 0
	for _, r := range report.Records {
		if r.IsOverLimit() {
			over++
		}
	}

	status := fmt.Sprintf("%d min used today, %d of %d apps over limit", report.TotalMinutes, over, len(report.Records))
	if report.GlobalOverLimit {
		status += ", global limit reached"
	}
	return status
}

// openStorage initializes the configured storage backend
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "redis"
	}

	switch storageType {
	case "redis":
		return redis.Open(cfg.Redis)
	case "sqlite":
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be redis or sqlite)", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// quietLogger is used by one-shot commands so logs do not mix with their output
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// withTimeout returns a context for one-shot commands
func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
