package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/harry123456-afk/Limitliner/internal/config"
	"github.com/harry123456-afk/Limitliner/internal/metadata"
	"github.com/harry123456-afk/Limitliner/internal/storage"
	"github.com/harry123456-afk/Limitliner/internal/usage"
	"github.com/spf13/cobra"
)

const ingestBatchSize = 1000

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load events or app metadata from JSON lines",
}

var ingestEventsCmd = &cobra.Command{
	Use:   "events [FILE|-]",
	Short: "Append foreground/background events",
	Long: `Append usage events, one JSON object per line:
  {"app_id": "com.example.app", "kind": "foreground", "timestamp": 1700000000000}
The kind accepts foreground/background and MOVE_TO_FOREGROUND/MOVE_TO_BACKGROUND.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngestEvents,
}

var ingestAppsCmd = &cobra.Command{
	Use:   "apps [FILE|-]",
	Short: "Upsert installed app metadata",
	Long: `Upsert app registry entries, one JSON object per line:
  {"id": "com.example.app", "display_name": "Example", "is_system": false}`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngestApps,
}

func init() {
	ingestCmd.AddCommand(ingestEventsCmd)
	ingestCmd.AddCommand(ingestAppsCmd)
	rootCmd.AddCommand(ingestCmd)
}

// eventLine is the input form of an event; the kind is parsed leniently
type eventLine struct {
	ID        string `json:"id"`
	AppID     string `json:"app_id"`
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
}

func runIngestEvents(cmd *cobra.Command, args []string) error {
	in, closeIn, err := openInput(args)
	if err != nil {
		return err
	}
	defer closeIn()

	// Parse everything up front so a bad line leaves the store untouched
	var parsed []storage.Event
	err = scanLines(in, func(lineNo int, line []byte) error {
		var raw eventLine
		if err := json.Unmarshal(line, &raw); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if raw.AppID == "" {
			return fmt.Errorf("line %d: app_id is required", lineNo)
		}
		kind, err := usage.ParseEventKind(raw.Kind)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		event := usage.ToStorageEvent(usage.UsageEvent{AppID: raw.AppID, Kind: kind, Timestamp: raw.Timestamp})
		event.ID = raw.ID
		parsed = append(parsed, event)
		return nil
	})
	if err != nil {
		return err
	}

	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	events := store.Events()

	for start := 0; start < len(parsed); start += ingestBatchSize {
		end := start + ingestBatchSize
		if end > len(parsed) {
			end = len(parsed)
		}
		if err := events.Append(ctx, parsed[start:end]...); err != nil {
			return fmt.Errorf("failed to append events %d-%d: %w", start+1, end, err)
		}
	}

	fmt.Fprintf(os.Stdout, "Ingested %d events\n", len(parsed))
	return nil
}

func runIngestApps(cmd *cobra.Command, args []string) error {
	in, closeIn, err := openInput(args)
	if err != nil {
		return err
	}
	defer closeIn()

	var parsed []storage.App
	err = scanLines(in, func(lineNo int, line []byte) error {
		var app storage.App
		if err := json.Unmarshal(line, &app); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if app.ID == "" {
			return fmt.Errorf("line %d: id is required", lineNo)
		}
		if app.UpdatedAt.IsZero() {
			app.UpdatedAt = time.Now()
		}
		parsed = append(parsed, app)
		return nil
	})
	if err != nil {
		return err
	}

	store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	resolver, err := metadata.NewResolver(store.Apps(), 0, quietLogger())
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, app := range parsed {
		if err := resolver.Register(ctx, app); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "Stored %d apps\n", len(parsed))
	return nil
}

// openConfiguredStore loads the configuration and opens its storage backend
func openConfiguredStore() (storage.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// openInput returns stdin for no argument or "-", the named file otherwise
func openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// scanLines calls fn for every non-blank line of r
func scanLines(r io.Reader, fn func(lineNo int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if strings.TrimSpace(string(line)) == "" {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
