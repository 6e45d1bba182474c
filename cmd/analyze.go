package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"echochamber/internal/sim"
)

var (
	analyzeSim          simFlags
	analyzeJSON         bool
	analyzeTopN         int
	analyzeHubThreshold int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a simulation and analyze the final network: polarization, topology, bridges",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSimConfig(cmd, &analyzeSim)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		s := sim.New(cfg.SimConfig(), sim.WithLogger(logger))
		summary, err := sim.Run(cmd.Context(), s, cfg.Simulation.MaxSteps)
		if err != nil {
			return fmt.Errorf("running simulation: %w", err)
		}
		logger.Debug("simulation finished", "steps", summary.Steps, "terminated", summary.Terminated)

		config := &sim.AnalyzerConfig{
			HubThreshold: analyzeHubThreshold,
			TopN:         analyzeTopN,
		}

		report := s.Analyze(config)

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printHumanReadable(report, s, analyzeTopN)
		return nil
	},
}

func init() {
	analyzeSim.register(analyzeCmd.Flags())
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output as JSON")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top-n", 10, "Number of top items to show per section")
	analyzeCmd.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", 6, "Visible degree above which an agent counts as a hub")
	rootCmd.AddCommand(analyzeCmd)
}

func printHumanReadable(report *sim.AnalysisReport, s *sim.Simulation, topN int) {
	// Polarization bar
	fmt.Printf("\n  Polarization: %.0f%%  [%s]\n", report.PolarizationScore*100, bar(report.PolarizationScore, 20))
	fmt.Printf("  breakdown: segregation=%.2f balance=%.2f commitment=%.2f\n\n",
		report.PolarizationBreakdown.Segregation,
		report.PolarizationBreakdown.Balance,
		report.PolarizationBreakdown.Commitment)

	// Opinions
	st := report.Stats
	fmt.Println("  OPINIONS")
	fmt.Println("  ────────────────────────────────────────")
	status := "running"
	if !st.Running {
		status = "stopped"
	}
	fmt.Printf("  Step %d (%s)\n", st.Step, status)
	total := st.Counts.Total()
	for _, row := range []struct {
		label string
		n     int
	}{
		{"conservative", st.Counts.Conservative},
		{"progressive", st.Counts.Progressive},
		{"neutral", st.Counts.Neutral},
	} {
		share := 0.0
		if total > 0 {
			share = float64(row.n) / float64(total)
		}
		fmt.Printf("    %-12s %5d  [%s]\n", row.label, row.n, bar(share, 20))
	}
	fmt.Printf("  Humans: %d  Bots: %d  Cons/Prog ratio: %s\n", st.Counts.Humans, st.Counts.Bots, st.ConsProgRatio)

	// Clusters
	c := st.Clusters
	fmt.Println("\n  CLUSTERS")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Clusters: %d  Avg size: %.2f  Cluster/node ratio: %.2f\n", c.Count, c.AvgSize, c.ClusterToNodeRatio)
	fmt.Printf("  Conservative: %d (avg %d)  Progressive: %d (avg %d)\n",
		c.ConservativeCount, c.ConservativeAvgSize, c.ProgressiveCount, c.ProgressiveAvgSize)
	fmt.Printf("  Largest: %d  Size std dev: %.2f  Cross-opinion ties: %d\n", c.Largest, c.SizeStdDev, c.CrossInteractions)
	if c.UnderMerged > 0 {
		fmt.Printf("  Note: %d clusters would merge under full propagation (exact count %d)\n", c.UnderMerged, c.ExactCount)
	}

	// Topology
	t := report.Topology
	fmt.Println("\n  TOPOLOGY")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Agents: %d  Directed ties: %d  Visible pairs: %d\n", t.TotalNodes, t.TotalEdges, t.VisiblePairs)
	fmt.Printf("  Dashed ties: %d  Invisible ties: %d\n", t.DashedEdges, t.InvisibleEdges)
	fmt.Printf("  Components: %d  Largest: %d  Smallest: %d\n", t.NumComponents, t.LargestComponent, t.SmallestComponent)

	if t.OrphanCount > 0 {
		fmt.Printf("  Orphans: %d agents without visible ties\n", t.OrphanCount)
		limit := 5
		if len(t.OrphanIDs) < limit {
			limit = len(t.OrphanIDs)
		}
		for _, id := range t.OrphanIDs[:limit] {
			fmt.Printf("    - %s\n", describeAgent(s, id))
		}
		if t.OrphanCount > 5 {
			fmt.Printf("    ... and %d more\n", t.OrphanCount-5)
		}
	}

	// Degree distribution
	fmt.Println("\n  Degree distribution:")
	for _, b := range t.DegreeHistogram {
		if b.Count > 0 {
			barWidth := int(math.Log2(float64(b.Count))) + 2
			if barWidth < 1 {
				barWidth = 1
			}
			fmt.Printf("    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	// Hubs
	if len(t.Hubs) > 0 {
		fmt.Println("\n  Top hubs (degree > threshold):")
		for _, hub := range t.Hubs {
			fmt.Printf("    degree=%d (in=%d, out=%d)  %s\n",
				hub.Degree, hub.InDegree, hub.OutDegree, describeAgent(s, hub.ID))
		}
	}

	// Bridges
	br := report.Bridges
	if br.APCount > 0 || br.BridgeCount > 0 {
		fmt.Println("\n  STRUCTURAL FRAGILITY")
		fmt.Println("  ────────────────────────────────────────")
		if br.APCount > 0 {
			fmt.Printf("  %d articulation points (removal splits a community):\n", br.APCount)
			limit := listLimit(len(br.ArticulationPoints), topN)
			for _, ap := range br.ArticulationPoints[:limit] {
				fmt.Printf("    degree %d  %s\n", ap.Degree, describeAgent(s, ap.ID))
			}
		}
		if br.BridgeCount > 0 {
			fmt.Printf("  %d bridge ties (removal splits a community):\n", br.BridgeCount)
			limit := listLimit(len(br.BridgeEdges), topN)
			for _, be := range br.BridgeEdges[:limit] {
				fmt.Printf("    %s <-> %s\n", describeAgent(s, be.U), describeAgent(s, be.V))
			}
		}
	}

	fmt.Println()
}

// listLimit caps a listing of n items at topN; topN <= 0 lists everything
func listLimit(n, topN int) int {
	if topN <= 0 || n < topN {
		return n
	}
	return topN
}

func describeAgent(s *sim.Simulation, id int) string {
	a := s.Agent(id)
	if a == nil {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("#%d %s %s", id, a.Opinion, a.Kind)
}

func bar(frac float64, width int) string {
	n := int(frac * float64(width))
	if n > width {
		n = width
	}
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}
