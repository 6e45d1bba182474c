package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"echochamber/internal/db"
	"echochamber/internal/export"
)

var (
	stepsJSON  bool
	stepsFrom  int
	stepsLimit int
	stepsFile  string
)

var stepsCmd = &cobra.Command{
	Use:   "steps <run-id>",
	Short: "Print the per-tick statistics of a recorded run",
	Long: `Prints the statistics recorded for each tick of a run. With --file the
ticks are read from a .jsonl.zst export instead of the database.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if stepsFile != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if stepsFile != "" {
			return printExport(stepsFile)
		}

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

		run, err := d.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		steps, err := d.StepsForRun(ctx, run.ID, stepsFrom, stepsLimit)
		if err != nil {
			return err
		}
		if stepsJSON {
			if steps == nil {
				steps = []db.StepRecord{}
			}
			return printJSON(steps)
		}

		fmt.Printf("  Run %s (%s, %d steps)\n\n", truncID(run.ID), runStatus(run), run.Steps)
		fmt.Printf("  %5s  %6s  %6s  %6s  %8s  %6s  %7s  %6s  %6s\n",
			"step", "cons", "prog", "neut", "clusters", "exact", "largest", "cross", "ratio")
		for _, s := range steps {
			fmt.Printf("  %5d  %6d  %6d  %6d  %8d  %6d  %7d  %6d  %6s\n",
				s.Step, s.Counts.Conservative, s.Counts.Progressive, s.Counts.Neutral,
				s.ClusterCount, s.ExactClusterCount, s.LargestCluster, s.CrossInteractions, s.ConsProgRatio)
		}
		return nil
	},
}

func init() {
	stepsCmd.Flags().BoolVar(&stepsJSON, "json", false, "Output as JSON")
	stepsCmd.Flags().IntVar(&stepsFrom, "from", 0, "First step to show")
	stepsCmd.Flags().IntVar(&stepsLimit, "limit", 0, "Maximum number of steps to show (0 = all)")
	stepsCmd.Flags().StringVar(&stepsFile, "file", "", "Read ticks from a .jsonl.zst export")
	rootCmd.AddCommand(stepsCmd)
}

func printExport(path string) error {
	steps, err := export.ReadFile(path)
	if err != nil {
		return err
	}
	window := steps[:0:0]
	for _, s := range steps {
		if s.Step < stepsFrom {
			continue
		}
		if stepsLimit > 0 && len(window) >= stepsLimit {
			break
		}
		window = append(window, s)
	}
	if stepsJSON {
		return printJSON(window)
	}
	fmt.Printf("  %5s  %6s  %6s  %6s  %8s  %6s  %12s\n", "step", "cons", "prog", "neut", "clusters", "ratio", "interactions")
	for _, s := range window {
		fmt.Printf("  %5d  %6d  %6d  %6d  %8d  %6s  %12d\n",
			s.Step, s.Counts.Conservative, s.Counts.Progressive, s.Counts.Neutral,
			s.Clusters.Count, s.ConsProgRatio, len(s.Interactions))
	}
	return nil
}
