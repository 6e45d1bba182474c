package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"echochamber/internal/db"
)

var (
	runsJSON  bool
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs, or show one run's configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		d, err := OpenDatabase(cfg)
		if err != nil {
			return err
		}
		defer d.Close()
		ctx := cmd.Context()

		if len(args) == 1 {
			run, err := d.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if runsJSON {
				return printJSON(run)
			}
			printRun(run)
			return nil
		}

		runs, err := d.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		if runsJSON {
			if runs == nil {
				runs = []db.Run{}
			}
			return printJSON(runs)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		fmt.Printf("  %-8s  %-19s  %-12s  %5s  %6s  %-10s\n", "ID", "CREATED", "TOPOLOGY", "NODES", "STEPS", "STATUS")
		for _, r := range runs {
			fmt.Printf("  %-8s  %-19s  %-12s  %5d  %6d  %-10s\n",
				truncID(r.ID), formatMillis(r.CreatedAt), r.Config.Topology, r.Config.Nodes, r.Steps, runStatus(&r))
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Output as JSON")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list (0 = all)")
	rootCmd.AddCommand(runsCmd)
}

func printRun(r *db.Run) {
	c := r.Config
	fmt.Printf("\n  Run %s\n", r.ID)
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Created: %s  Status: %s  Steps: %d\n", formatMillis(r.CreatedAt), runStatus(r), r.Steps)
	fmt.Printf("  Nodes: %d  Avg degree: %.1f  Topology: %s  Seed: %d\n", c.Nodes, c.AvgDegree, c.Topology, c.Seed)
	fmt.Printf("  Bots: %d conservative, %d progressive\n", c.ConservativeBots, c.ProgressiveBots)
	fmt.Printf("  Positive chance: %.2f  Neutral chance: %.2f\n", c.PositiveChance, c.BecomeNeutralChance)
	fmt.Printf("  Rules: hit=%d reach human=%d bot=%d max=%d\n\n",
		c.Rules.HitRequired, c.Rules.HumanReach, c.Rules.BotReach, c.Rules.MaxReach)
}

func runStatus(r *db.Run) string {
	switch {
	case r.FinishedAt == nil:
		return "unfinished"
	case r.Terminated:
		return "converged"
	default:
		return "capped"
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
