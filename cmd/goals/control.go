package main

import (
	"fmt"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/control"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <goal>",
	Short: "Ask the running executor to start a goal",
	Long: `Start a goal now instead of waiting for the selector.

The start is refused when another goal is in progress, the goal is finished,
or any of its requirements is unmet; the refusal is recorded as a
goal_start_rejected event.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newControlClient().StartGoal(args[0])
		if err != nil {
			return err
		}
		if err := checkResponse("Start", resp); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Goal started: %s", green("✓"), args[0])
		if done, ok := resp.Data["steps_completed"].(float64); ok {
			total, _ := resp.Data["total_steps"].(float64)
			fmt.Printf(" (%d/%d steps)", int(done), int(total))
		}
		fmt.Println()
		return nil
	},
}

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Perform one step on the current goal now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newControlClient().Work()
		if err != nil {
			return err
		}
		if err := checkResponse("Work", resp); err != nil {
			return err
		}
		fmt.Printf("Outcome: %v\n", resp.Data["outcome"])
		if goal, ok := resp.Data["goal"].(string); ok {
			done, _ := resp.Data["steps_completed"].(float64)
			total, _ := resp.Data["total_steps"].(float64)
			fmt.Printf("  %s %d/%d %s\n", goal, int(done), int(total), progressBar(int(done), int(total), 20))
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running executor after its current iteration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newControlClient().Stop()
		if err != nil {
			return err
		}
		if err := checkResponse("Stop", resp); err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Executor stopping\n", green("✓"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(workCmd)
	rootCmd.AddCommand(stopCmd)
}

func newControlClient() *control.Client {
	return control.NewClient(cfg.Control.SocketPath)
}

// checkResponse reports a refused command
func checkResponse(action string, resp *control.Response) error {
	if resp.Success {
		return nil
	}
	if resp.Error != "" {
		return fmt.Errorf("%s failed: %s", action, resp.Error)
	}
	return fmt.Errorf("%s failed: %s", action, resp.Message)
}
