package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"simhub/cmd/simhub/ui"
	"simhub/internal/cloudsync"
	"simhub/internal/config"
	"simhub/internal/hub"
	"simhub/internal/insight"
	"simhub/internal/storage"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string

	cfg    config.Config
	logger *zap.Logger
)

// rootCmd launches the interactive hub; subcommands are the headless surface.
var rootCmd = &cobra.Command{
	Use:   "simhub",
	Short: "SimHub - a personal simulation hub",
	Long: `SimHub is a terminal hub for small simulations: an incremental economy,
a market, ethics dilemmas, quizzes and more. Everything feeds one shared
profile: XP, tokens, achievements and the behavioral telemetry the insight
engine reads.

Run without arguments to start the interactive interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			configPath = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}

		// The interactive UI owns the terminal, so its logger writes to a
		// file instead of stderr.
		interactive := cmd.Use == "simhub" && cmd.CalledAs() == "simhub"
		logger, err = buildLogger(interactive)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHub()
	},
}

func buildLogger(interactive bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose || cfg.Logging.Level == "debug" {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if interactive {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		zcfg.OutputPaths = []string{cfg.LogPath()}
		zcfg.ErrorOutputPaths = []string{cfg.LogPath()}
	}
	return zcfg.Build()
}

func runHub() error {
	db, err := storage.Open(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer db.Close()

	store := hub.NewStore(db.Keyed(hub.StorageKey), hub.WithLogger(logger))

	stopWatch, err := config.Watch(configPath, logger, func(next config.Config) {
		logger.Info("config reloaded", zap.String("path", configPath))
		cfg = next
	})
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		defer stopWatch()
	}

	return ui.Run(store, db, cfg, logger)
}

// openReadOnlyStore loads the persisted profile for the headless subcommands.
func openReadOnlyStore() (*hub.Store, func(), error) {
	db, err := storage.Open(cfg.DBPath(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store := hub.NewStore(db.Keyed(hub.StorageKey), hub.WithLogger(logger))
	return store, func() { db.Close() }, nil
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the profile summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, done, err := openReadOnlyStore()
		if err != nil {
			return err
		}
		defer done()

		s := store.GetState()
		report := insight.AnalyzeUserPatterns(s)
		fmt.Printf("Handle:        %s\n", s.Auth.Handle)
		fmt.Printf("Level:         %d (%d XP)\n", s.Profile.Level, s.Profile.XP)
		fmt.Printf("Tokens:        %d\n", s.Profile.Tokens)
		fmt.Printf("Achievements:  %d\n", len(s.Profile.Achievements))
		fmt.Printf("Risk:          %.0f\n", report.RiskTolerance)
		fmt.Printf("Strategy:      %.0f\n", report.StrategicIndex)
		fmt.Printf("Most played:   %s\n", report.MostPlayed)
		fmt.Printf("Total time:    %s\n", insight.FormatTime(report.TotalTime))
		fmt.Printf("Night owl:     %d late launches\n", s.Profile.NightLaunches)
		return nil
	},
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "List unlocked achievements, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, done, err := openReadOnlyStore()
		if err != nil {
			return err
		}
		defer done()

		list := store.GetState().Profile.Achievements
		if len(list) == 0 {
			fmt.Println("No achievements yet.")
			return nil
		}
		for _, a := range list {
			fmt.Printf("%s  [%s] %s (%s)\n", a.At.Format("2006-01-02"), a.Tier, a.Title, a.AppID)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the full state snapshot as JSON to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, done, err := openReadOnlyStore()
		if err != nil {
			return err
		}
		defer done()

		blob, err := json.MarshalIndent(store.GetState(), "", "  ")
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(blob, '\n'))
		return err
	},
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase the profile and all app state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return fmt.Errorf("refusing to erase without --yes")
		}
		db, err := storage.Open(cfg.DBPath(), logger)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer db.Close()

		keys, err := db.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := db.Delete(k); err != nil {
				return err
			}
		}
		fmt.Printf("Erased %d records.\n", len(keys))
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [push|pull]",
	Short: "Push the profile to, or pull it from, the configured cloud endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, done, err := openReadOnlyStore()
		if err != nil {
			return err
		}
		defer done()

		client := cloudsync.New(cfg.Cloud.Endpoint, cfg.Cloud.APIKey, logger)
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		res := cloudsync.Sync(ctx, client, store, args[0])
		fmt.Println(res.Message)
		if !res.OK {
			return fmt.Errorf("sync failed")
		}
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [provider]",
	Short: "Attach a provider identity to the profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, done, err := openReadOnlyStore()
		if err != nil {
			return err
		}
		defer done()

		cloudsync.LoginWithProvider(store, args[0])
		s := store.GetState()
		fmt.Printf("Signed in as %s (%s).\n", s.Auth.Handle, s.Auth.PublicID)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the data directory")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the erase")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(achievementsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(loginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
