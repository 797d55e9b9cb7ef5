package main

import (
	"fmt"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/catalog"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/executor"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog goals with their progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		goalType, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetString("priority")

		f, err := parseFilter(goalType, priority)
		if err != nil {
			return err
		}

		o, err := openOffline(cmd.Context(), zap.NewNop())
		if err != nil {
			return err
		}
		defer o.Close()

		goals := executor.Summarize(o.catalog, o.tracker.All(), f)
		if len(goals) == 0 {
			fmt.Printf("%s\n", color.New(color.FgHiBlack).Sprint("No goals match"))
			return nil
		}
		for _, g := range goals {
			printSummary(g)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringP("type", "t", "", "Filter by goal type (e.g. key_quest, reputation_grind)")
	listCmd.Flags().StringP("priority", "p", "", "Filter by priority (critical, high, medium, low)")
	rootCmd.AddCommand(listCmd)
}

func parseFilter(goalType, priority string) (catalog.Filter, error) {
	var f catalog.Filter
	if goalType != "" {
		t, err := types.ParseGoalType(goalType)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if priority != "" {
		p, err := types.ParsePriority(priority)
		if err != nil {
			return f, err
		}
		f.Priority = p
	}
	return f, nil
}

func printSummary(g executor.GoalSummary) {
	c := statusColor(g.Status)
	fmt.Printf("%s %-28s %-12s %-9s %d/%d  %s\n",
		c.Sprint(statusIcon(g.Status)),
		g.Name,
		c.Sprint(g.Status),
		g.Priority,
		g.StepsCompleted, g.TotalSteps,
		color.New(color.FgHiBlack).Sprint(g.Location))
	if g.Reason != "" {
		fmt.Printf("  %s\n", color.New(color.FgHiBlack).Sprint(g.Reason))
	}
	if g.LockedUntil != nil {
		fmt.Printf("  %s\n", color.New(color.FgHiBlack).Sprintf("retry after %s", g.LockedUntil.Local().Format(time.Kitchen)))
	}
}
