package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var validateCmd = &cobra.Command{
	Use:   "validate [catalog]",
	Short: "Check a goal catalog",
	Long: `Load a goal catalog and report rejected entries, warnings and
collection targets shared between goals. Exits non-zero when any entry is
rejected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Catalog.Path
		if len(args) == 1 {
			path = args[0]
		}
		cat, err := loadCatalog(path, zap.NewNop())
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("%s %d goals loaded from %s\n", green("✓"), cat.Len(), path)

		for _, w := range cat.Warnings() {
			fmt.Printf("%s %s\n", yellow("⚠"), w)
		}

		shared := cat.SharedCollectionTargets()
		targets := make([]string, 0, len(shared))
		for t := range shared {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		for _, t := range targets {
			fmt.Printf("%s collection target %s is shared by %s\n", yellow("ℹ"), t, strings.Join(shared[t], ", "))
		}

		rejected := cat.Rejected()
		for _, rej := range rejected {
			fmt.Printf("%s %v\n", red("✗"), rej)
		}
		if len(rejected) > 0 {
			return fmt.Errorf("%d catalog entries rejected", len(rejected))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
