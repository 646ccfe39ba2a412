package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/roller/pkg/api"
	"github.com/cuemby/roller/pkg/config"
	"github.com/cuemby/roller/pkg/events"
	"github.com/cuemby/roller/pkg/journal"
	"github.com/cuemby/roller/pkg/log"
	awsprovider "github.com/cuemby/roller/pkg/provider/aws"
	"github.com/cuemby/roller/pkg/reconciler"
	"github.com/cuemby/roller/pkg/trigger"
	"github.com/cuemby/roller/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "roller",
	Short: "Roller - Rolling instance replacement for managed compute groups",
	Long: `Roller watches managed compute groups for instances running a
superseded launch configuration and replaces them one at a time,
without ever dropping below the group's desired capacity.

Groups opt in with a tag; everything else is left alone.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Roller version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the config file when one was given, defaults otherwise
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func initLogging(cfg *config.Config) {
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
}

func newProvider(ctx context.Context, cfg *config.Config) (*awsprovider.Client, error) {
	return awsprovider.New(ctx, awsprovider.Config{
		Region:             cfg.Region,
		SavedMaxSizeTagKey: cfg.SavedMaxSizeTagKey,
	})
}

func openJournal(cfg *config.Config) (*journal.Journal, error) {
	if cfg.JournalPath == "" {
		return nil, nil
	}
	return journal.Open(cfg.JournalPath, cfg.JournalRetention)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the replacement controller",
	Long: `Run the controller as a daemon: periodic full scans plus targeted
passes for notifications received on the webhook endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		initLogging(cfg)

		ctx := context.Background()
		provider, err := newProvider(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create provider: %w", err)
		}

		jrnl, err := openJournal(cfg)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		if jrnl != nil {
			defer jrnl.Close()
		}

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		recon := reconciler.New(provider, cfg, jrnl, broker)

		ticker := trigger.NewTicker(cfg.TickInterval, recon.Reconcile)
		ticker.Start()
		defer ticker.Stop()

		dispatcher := trigger.NewDispatcher(recon.Reconcile, provider, broker, cfg.FallbackScanAll)
		dispatcher.Start()
		defer dispatcher.Stop()

		server := api.NewServer(broker, jrnl, Version)
		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(cfg.ListenAddr); err != nil {
				errCh <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()

		mainLog := log.WithComponent("main")
		mainLog.Info().
			Str("version", Version).
			Str("listen_addr", cfg.ListenAddr).
			Dur("tick_interval", cfg.TickInterval).
			Msg("controller started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			mainLog.Info().Str("signal", sig.String()).Msg("shutting down")
		case err := <-errCh:
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single reconciliation pass and exit",
	Long: `Run one pass over all managed groups, or only the groups named
with --group, print the outcomes, and exit. The exit code is non-zero
when any group failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, _ := cmd.Flags().GetStringSlice("group")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		initLogging(cfg)

		ctx := context.Background()
		provider, err := newProvider(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create provider: %w", err)
		}

		jrnl, err := openJournal(cfg)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		if jrnl != nil {
			defer jrnl.Close()
		}

		recon := reconciler.New(provider, cfg, jrnl, nil)
		outcomes := recon.Reconcile(ctx, types.TriggerManual, groups)

		failed := 0
		for _, outcome := range outcomes {
			name := outcome.Group
			if name == "" {
				name = "(pass)"
			}
			fmt.Printf("%-40s %s\n", name, outcome.String())
			if outcome.Result == types.ResultError {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d groups failed", failed, len(outcomes))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent reconciliation passes from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JournalPath == "" {
			return fmt.Errorf("no journal_path configured")
		}

		jrnl, err := journal.Open(cfg.JournalPath, cfg.JournalRetention)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer jrnl.Close()

		records, err := jrnl.Recent(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No passes recorded.")
			return nil
		}

		for _, record := range records {
			fmt.Printf("%s  %s  trigger=%s  groups=%d  duration=%s\n",
				record.StartedAt.Format(time.RFC3339),
				record.ID,
				record.Trigger,
				len(record.Outcomes),
				record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond),
			)
			for _, outcome := range record.Outcomes {
				line := fmt.Sprintf("    %-40s %s", outcome.Group, outcome.String())
				if outcome.InstanceID != "" {
					line += "  instance=" + outcome.InstanceID
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	onceCmd.Flags().StringSlice("group", nil, "Reconcile only the named group (repeatable)")
	historyCmd.Flags().Int("limit", 20, "How many passes to show")
}
