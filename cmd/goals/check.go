package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/catalog"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/requirements"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/selector"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/tracker"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate goal requirements against the world state file",
	Long: `Evaluate every goal's requirements against the world state file and
show which goal the selector would pick next.

With --watch the evaluation is repeated whenever the state file changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		if path, _ := cmd.Flags().GetString("state"); path != "" {
			cfg.World.StatePath = path
		}
		if cfg.World.StatePath == "" {
			return fmt.Errorf("no world state file configured (set --state or world.state_path)")
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		o, err := openOffline(ctx, zap.NewNop())
		if err != nil {
			return err
		}
		defer o.Close()

		state, err := world.OpenFileState(cfg.World.StatePath, logger)
		if err != nil {
			return err
		}
		state.SetDebounce(cfg.World.ReloadDebounce)

		if err := printCheck(ctx, o.catalog, o.tracker, state); err != nil {
			return err
		}
		if !watch {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return state.Watch(gctx) })
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-state.Changed():
					fmt.Println()
					if err := printCheck(gctx, o.catalog, o.tracker, state); err != nil {
						return err
					}
				}
			}
		})
		return g.Wait()
	},
}

func init() {
	checkCmd.Flags().String("state", "", "Path to world state file (overrides world.state_path)")
	checkCmd.Flags().BoolP("watch", "w", false, "Re-evaluate whenever the state file changes")
	rootCmd.AddCommand(checkCmd)
}

func printCheck(ctx context.Context, cat *catalog.Catalog, tr *tracker.Tracker, obs world.Observer) error {
	p, err := obs.Observe(ctx)
	if err != nil {
		return err
	}
	snap := tr.Snapshot(p)
	progress := tr.All()

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	for _, goal := range cat.All() {
		status := types.StatusNotStarted
		if rec, ok := progress[goal.Name]; ok {
			status = rec.Status
		}
		c := statusColor(status)
		fmt.Printf("%s %s %s\n", c.Sprint(statusIcon(status)), goal.Name, gray(status))
		if rec, ok := progress[goal.Name]; ok && rec.CoolingDown(time.Now()) {
			fmt.Printf("    %s\n", gray("retry after "+rec.LockedUntil.Local().Format(time.Kitchen)))
		}
		for _, ev := range requirements.CheckGoal(goal, snap).Requirements {
			mark := green("✓")
			if !ev.Met {
				mark = red("✗")
			}
			fmt.Printf("    %s %-36s %d/%d\n", mark, ev.Description, ev.Current, ev.Required)
		}
	}

	sel := selector.SelectNext(cat, progress, snap, time.Now())
	fmt.Println()
	if sel.Candidate == nil {
		fmt.Printf("Next goal: %s\n", gray("none eligible"))
	} else {
		fmt.Printf("Next goal: %s (%s, %d eligible)\n", green(sel.Candidate.Name), sel.Candidate.Priority, len(sel.Eligible))
	}
	return nil
}
