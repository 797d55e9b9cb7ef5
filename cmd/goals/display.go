package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/fatih/color"
)

// statusColor returns the color used for a goal status
func statusColor(s types.Status) *color.Color {
	switch s {
	case types.StatusInProgress:
		return color.New(color.FgCyan, color.Bold)
	case types.StatusCompleted:
		return color.New(color.FgGreen)
	case types.StatusFailed:
		return color.New(color.FgRed)
	case types.StatusLocked:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgHiBlack)
	}
}

// statusIcon returns a one-character marker for a goal status
func statusIcon(s types.Status) string {
	switch s {
	case types.StatusInProgress:
		return "●"
	case types.StatusCompleted:
		return "✓"
	case types.StatusFailed:
		return "✗"
	case types.StatusLocked:
		return "⚠"
	default:
		return "○"
	}
}

func severityColor(s events.EventSeverity) *color.Color {
	switch s {
	case events.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case events.SeverityError:
		return color.New(color.FgRed)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Reset)
	}
}

// progressBar renders done/total as a fixed-width bar
func progressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	if done > total {
		done = total
	}
	if done < 0 {
		done = 0
	}
	filled := done * width / total
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// truncateString shortens s to max runes, marking the cut with "..."
func truncateString(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// formatEventData renders event data as sorted key=value pairs
func formatEventData(data map[string]interface{}) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " | ")
}

// displayEvent prints one event on two lines: the summary, then its data
func displayEvent(event *events.GoalEvent) {
	timestamp := event.Timestamp.Local().Format("2006-01-02 15:04:05")
	goal := event.Goal
	if goal == "" {
		goal = "-"
	}
	fmt.Printf("[%s] %s %s: %s\n",
		timestamp,
		color.New(color.FgGreen).Sprint(goal),
		color.New(color.FgMagenta).Sprint(event.Type),
		severityColor(event.Severity).Sprint(truncateString(event.Message, 100)),
	)
	if meta := formatEventData(event.Data); meta != "" {
		fmt.Printf("  %s\n", color.New(color.FgHiBlack).Sprint(truncateString(meta, 120)))
	}
}
