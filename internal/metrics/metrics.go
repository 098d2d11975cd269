package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Event metrics
	EventsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "limitliner_events_processed_total",
			Help: "Total usage events fed into session reconstruction",
		},
	)

	EventsDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "limitliner_events_discarded_total",
			Help: "Usage events that could not be attributed to a session",
		},
	)

	EventsTruncated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "limitliner_events_truncated_total",
			Help: "Reports whose event window hit the per-query cap",
		},
	)

	// Report metrics
	ReportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "limitliner_report_duration_seconds",
			Help:    "Time spent building a usage report",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	MetadataUnresolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "limitliner_metadata_unresolved_total",
			Help: "App lookups that failed and dropped the app from a report",
		},
	)

	// Metadata cache metrics
	MetadataCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "limitliner_metadata_cache_hits_total",
			Help: "App metadata cache hits",
		},
	)

	MetadataCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "limitliner_metadata_cache_misses_total",
			Help: "App metadata cache misses",
		},
	)

	// Usage metrics
	AppUsageMinutes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "limitliner_app_usage_minutes",
			Help: "Usage minutes of each app today",
		},
		[]string{"app"},
	)

	TotalUsageMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "limitliner_total_usage_minutes",
			Help: "Usage minutes of all reported apps today",
		},
	)

	AppsOverLimit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "limitliner_apps_over_limit",
			Help: "Number of apps at or over their daily limit",
		},
	)

	AlertsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limitliner_alerts_sent_total",
			Help: "Over-limit alerts delivered",
		},
		[]string{"app"},
	)

	// Monitor metrics
	MonitorCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limitliner_monitor_cycles_total",
			Help: "Monitor polling cycles by result",
		},
		[]string{"result"},
	)

	// Retention metrics
	RetentionDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limitliner_retention_deleted_total",
			Help: "Records removed by the retention scheduler",
		},
		[]string{"type"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		EventsProcessed,
		EventsDiscarded,
		EventsTruncated,
		ReportDuration,
		MetadataUnresolved,
		MetadataCacheHits,
		MetadataCacheMisses,
		AppUsageMinutes,
		TotalUsageMinutes,
		AppsOverLimit,
		AlertsSent,
		MonitorCycles,
		RetentionDeleted,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: Handler(),
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the mux serving /metrics and /health
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
