package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/config"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/control"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/executor"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/metrics"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/tracker"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the goal loop",
	Long: `Run the goal loop until interrupted or stopped with 'goals stop'.

The loop reconciles locked goals, selects the highest-priority eligible goal,
and performs one navigation or dialogue step per iteration. Progress is
flushed to the database after every transition, so a restarted run resumes
the goal that was in progress.

With --simulate the loop drives an in-memory world seeded from the state
file (or empty when the file does not exist). Adding --live keeps navigation
and dialogue simulated but observes the world through the state file,
reloaded whenever the perception layer rewrites it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("simulate") {
			cfg.World.Simulate, _ = cmd.Flags().GetBool("simulate")
		}
		if cmd.Flags().Changed("live") {
			cfg.World.LivePerception, _ = cmd.Flags().GetBool("live")
		}
		if path, _ := cmd.Flags().GetString("catalog"); path != "" {
			cfg.Catalog.Path = path
		}
		if path, _ := cmd.Flags().GetString("state"); path != "" {
			cfg.World.StatePath = path
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runLoop(ctx)
	},
}

func init() {
	runCmd.Flags().Bool("simulate", false, "Drive simulated navigation and dialogue")
	runCmd.Flags().Bool("live", false, "Observe the world through the state file")
	runCmd.Flags().String("catalog", "", "Path to goal catalog (overrides catalog.path)")
	runCmd.Flags().String("state", "", "Path to world state file (overrides world.state_path)")
	rootCmd.AddCommand(runCmd)
}

func runLoop(ctx context.Context) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cat, err := loadCatalog("", logger)
	if err != nil {
		return err
	}
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	rec := events.NewRecorder(store, logger, time.Now)
	for _, rej := range cat.Rejected() {
		rec.Emit(ctx, events.EventTypeCatalogEntryRejected, rej.Goal, events.SeverityWarning, rej.Error(),
			map[string]interface{}{"index": rej.Index, "field": rej.Field})
	}

	tr, err := tracker.New(ctx, store, cat, rec, logger, tracker.WithObserver(m))
	if err != nil {
		return err
	}

	w, err := newWorld(cat.All(), logger)
	if err != nil {
		return err
	}

	var retention *config.EventRetentionConfig
	if cfg.Events.CleanupEnabled {
		r := cfg.Events
		retention = &r
	}
	exec, err := executor.New(&executor.Config{
		Tracker:   tr,
		Catalog:   cat,
		Observer:  w.observer,
		Navigator: w.navigator,
		Dialogue:  w.dialogue,
		Store:     store,
		Recorder:  rec,
		Logger:    logger,
		Metrics:   m,
		Tuning:    cfg.Executor,
		Retention: retention,
	})
	if err != nil {
		return err
	}

	srv, err := control.NewServer(cfg.Control.SocketPath, exec.HandleCommand, logger)
	if err != nil {
		return err
	}

	// A stop over the control socket ends the loop; that also ends the
	// other services.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return exec.Run(gctx)
	})
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	if w.watch != nil {
		g.Go(func() error {
			return w.watch(gctx)
		})
	}
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Address, reg, logger)
		})
	}

	logger.Info("goal loop running",
		zap.Int("goals", cat.Len()),
		zap.Int("rejected", len(cat.Rejected())),
		zap.String("socket", cfg.Control.SocketPath),
		zap.Bool("live_perception", w.watch != nil),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	return g.Wait()
}

// worldCollaborators are the loop's view of and hands in the game world.
type worldCollaborators struct {
	observer  world.Observer
	navigator world.Navigator
	dialogue  world.Dialogue
	// watch keeps a live observer current; nil when the simulator observes
	watch func(ctx context.Context) error
}

// newWorld wires simulated navigation and dialogue. With live perception
// the state file is observed instead of the simulator's own state.
func newWorld(goals []*types.Goal, logger *zap.Logger) (*worldCollaborators, error) {
	if !cfg.World.Simulate {
		return nil, fmt.Errorf("no navigation or dialogue driver is linked into this binary; run with --simulate, or use 'goals check' to evaluate the live state file")
	}
	initial, err := seedState(cfg.World.StatePath)
	if err != nil {
		return nil, err
	}
	sim := world.NewSimulator(initial, goals, logger)
	w := &worldCollaborators{observer: sim, navigator: sim, dialogue: sim}
	if !cfg.World.LivePerception {
		return w, nil
	}

	if cfg.World.StatePath == "" {
		return nil, fmt.Errorf("live perception needs a world state file (set --state or world.state_path)")
	}
	state, err := world.OpenFileState(cfg.World.StatePath, logger)
	if err != nil {
		return nil, fmt.Errorf("live perception: %w", err)
	}
	state.SetDebounce(cfg.World.ReloadDebounce)
	w.observer = state
	w.watch = state.Watch
	return w, nil
}

// seedState loads the simulator's starting world, or an empty world when
// the state file does not exist.
func seedState(path string) (*world.State, error) {
	if path == "" {
		return &world.State{}, nil
	}
	s, err := world.LoadState(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &world.State{}, nil
	}
	return s, err
}

// serveMetrics exposes reg on /metrics until ctx is done
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", zap.String("address", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
