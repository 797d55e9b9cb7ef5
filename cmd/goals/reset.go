package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetCmd = &cobra.Command{
	Use:   "reset <goal>",
	Short: "Return a failed goal to NOT_STARTED",
	Long: `Reset a FAILED goal so the selector can pick it again. Its completed
steps are cleared. Completed goals can never be reset.

The executor must not be running.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if resp, err := newControlClient().Status(); err == nil && resp.Success {
			return fmt.Errorf("executor is running; stop it with 'goals stop' before resetting goals")
		}

		o, err := openOffline(cmd.Context(), zap.NewNop())
		if err != nil {
			return err
		}
		defer o.Close()

		p, err := o.tracker.Reset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Goal %s reset to %s\n", green("✓"), p.Name, p.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
