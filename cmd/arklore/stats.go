package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory, history, and profile statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()
		out := cmd.OutOrStdout()

		memStats, err := a.memory.Statistics()
		if err != nil {
			return fmt.Errorf("failed to read memory statistics: %w", err)
		}
		fmt.Fprintf(out, "Semantic memory\n")
		fmt.Fprintf(out, "  enabled:    %v\n", memStats.Enabled)
		fmt.Fprintf(out, "  engine:     %s\n", memStats.Engine)
		fmt.Fprintf(out, "  memories:   %d\n", memStats.Total)
		fmt.Fprintf(out, "  dimensions: %d\n", memStats.Dimensions)
		for owner, n := range memStats.PerOwner {
			fmt.Fprintf(out, "    %s: %d\n", owner, n)
		}

		fmt.Fprintf(out, "\nHistory\n")
		for _, owner := range a.cfg.Pipeline.Owners {
			hs, err := a.history.Statistics(owner.Key)
			if err != nil {
				fmt.Fprintf(out, "  %s: unavailable (%v)\n", owner.Key, err)
				continue
			}
			fmt.Fprintf(out, "  %s: %d summaries (%d this week, %d days of coverage)\n",
				owner.Key, hs.Total, hs.RecentWeek, hs.CoverageDays)
		}

		fmt.Fprintf(out, "\nMost active entities\n")
		for _, owner := range a.cfg.Pipeline.Owners {
			active, err := a.profiles.MostActive(owner.Key, 5)
			if err != nil || len(active) == 0 {
				continue
			}
			fmt.Fprintf(out, "  %s:\n", owner.Key)
			for _, e := range active {
				fmt.Fprintf(out, "    %s (%d events): %s\n", e.Name, e.EventCount, e.Personality)
			}
		}
		return nil
	},
}
