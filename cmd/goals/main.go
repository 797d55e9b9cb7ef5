// Command goals runs and inspects the goal progression loop.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/catalog"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/config"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/logging"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/storage"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/tracker"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	dbPath  string

	// cfg is loaded before every command runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "goals",
	Short: "Goal progression orchestrator",
	Long: `goals selects the highest-priority eligible goal for a character and
drives it to completion through navigation and dialogue, persisting progress
so a restarted process resumes where it left off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if dbPath != "" {
			loaded.Storage.Path = dbPath
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to progress database (overrides storage.path)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from config
func newLogger() (*zap.Logger, error) {
	return logging.New(cfg.Logging, nil, map[string]string{"character": cfg.Character})
}

// openStore opens the progress database named by config
func openStore(ctx context.Context) (storage.Storage, error) {
	return storage.NewStorage(ctx, &storage.Config{
		Path:      cfg.Storage.Path,
		Character: cfg.Character,
	})
}

// loadCatalog reads the catalog, preferring path over config when set
func loadCatalog(path string, logger *zap.Logger) (*catalog.Catalog, error) {
	if path == "" {
		path = cfg.Catalog.Path
	}
	return catalog.LoadFile(path, logger)
}

// offline holds what commands need to read or edit progress without a
// running executor.
type offline struct {
	store   storage.Storage
	catalog *catalog.Catalog
	tracker *tracker.Tracker
}

func openOffline(ctx context.Context, logger *zap.Logger) (*offline, error) {
	cat, err := loadCatalog("", logger)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	rec := events.NewRecorder(store, logger, time.Now)
	tr, err := tracker.New(ctx, store, cat, rec, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &offline{store: store, catalog: cat, tracker: tr}, nil
}

func (o *offline) Close() error {
	return o.store.Close()
}
