package main

import (
	"fmt"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the goal event log",
	Long: `Show recent events from the goal event log, newest last.

Examples:
  goals events --goal jedi_unlock
  goals events --type goal_locked --limit 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		goal, _ := cmd.Flags().GetString("goal")
		eventType, _ := cmd.Flags().GetString("type")
		severity, _ := cmd.Flags().GetString("severity")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := events.EventFilter{
			Goal:     goal,
			Type:     events.EventType(eventType),
			Severity: events.EventSeverity(severity),
			Limit:    limit,
		}
		if eventType != "" && !filter.Type.IsValid() {
			return fmt.Errorf("unknown event type %q", eventType)
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.GetEvents(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to query events: %w", err)
		}
		if len(list) == 0 {
			fmt.Printf("%s\n", color.New(color.FgHiBlack).Sprint("No events found"))
			return nil
		}
		// Stored newest first; print oldest first
		for i := len(list) - 1; i >= 0; i-- {
			displayEvent(list[i])
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringP("goal", "g", "", "Filter events by goal name")
	eventsCmd.Flags().StringP("type", "t", "", "Filter by event type (e.g. goal_locked, goal_navigation_failed)")
	eventsCmd.Flags().StringP("severity", "s", "", "Filter by severity (info, warning, error, critical)")
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show")
	rootCmd.AddCommand(eventsCmd)
}
