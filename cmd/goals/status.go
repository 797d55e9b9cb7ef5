package main

import (
	"context"
	"fmt"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/control"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show goal progress",
	Long: `Show goal counts and the goal in progress.

Asks the running executor when one is reachable over the control socket,
otherwise reads the progress database directly.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, live, err := fetchStatus(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(status, live)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// fetchStatus prefers the live executor and falls back to the database.
func fetchStatus(ctx context.Context) (types.GoalStatus, bool, error) {
	var status types.GoalStatus

	client := control.NewClient(cfg.Control.SocketPath)
	if resp, err := client.Status(); err == nil && resp.Success {
		if err := resp.Decode(&status); err != nil {
			return status, false, err
		}
		return status, true, nil
	}

	o, err := openOffline(ctx, zap.NewNop())
	if err != nil {
		return status, false, err
	}
	defer o.Close()
	return o.tracker.Status(), false, nil
}

func printStatus(status types.GoalStatus, live bool) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Goal Status ==="))
	if live {
		fmt.Printf("  Executor: %s\n", color.GreenString("running"))
	} else {
		fmt.Printf("  Executor: %s\n", gray("not running"))
	}
	if cfg.Character != "" {
		fmt.Printf("  Character: %s\n", cfg.Character)
	}
	fmt.Println()

	fmt.Printf("%s\n", yellow("Goals:"))
	fmt.Printf("  Total:       %d\n", status.TotalGoals)
	fmt.Printf("  In progress: %d\n", status.ActiveGoals)
	fmt.Printf("  Completed:   %s\n", color.GreenString("%d", status.CompletedGoals))
	fmt.Printf("  Locked:      %s\n", color.YellowString("%d", status.LockedGoals))
	fmt.Printf("  Failed:      %s\n", color.RedString("%d", status.FailedGoals))
	fmt.Println()

	fmt.Printf("%s\n", yellow("Current Goal:"))
	cur := status.CurrentGoal
	if cur == nil {
		fmt.Printf("  %s\n\n", gray("none"))
		return
	}
	c := statusColor(cur.Status)
	fmt.Printf("  %s %s %s\n", c.Sprint(statusIcon(cur.Status)), cur.Name, c.Sprint(cur.Status))
	fmt.Printf("    Steps: %d/%d %s\n", cur.StepsCompleted, cur.TotalSteps, progressBar(cur.StepsCompleted, cur.TotalSteps, 20))
	if cur.CurrentStep != "" {
		fmt.Printf("    Last step: %s\n", cur.CurrentStep)
	}
	fmt.Println()
}
