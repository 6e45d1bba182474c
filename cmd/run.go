package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"echochamber/internal/config"
	"echochamber/internal/db"
	"echochamber/internal/export"
	"echochamber/internal/sim"
)

// simFlags are the simulation parameters shared by run, analyze and serve.
// Only flags the user set override the configuration.
type simFlags struct {
	nodes          int
	avgDegree      float64
	consBots       int
	progBots       int
	positiveChance float64
	neutralChance  float64
	seed           uint64
	topology       string
	maxSteps       int
}

func (f *simFlags) register(fs *pflag.FlagSet) {
	d := config.Default().Simulation
	fs.IntVar(&f.nodes, "nodes", d.Nodes, "Number of agents")
	fs.Float64Var(&f.avgDegree, "avg-degree", d.AvgDegree, "Expected ties per agent")
	fs.IntVar(&f.consBots, "cons-bots", d.ConservativeBots, "Number of conservative bots")
	fs.IntVar(&f.progBots, "prog-bots", d.ProgressiveBots, "Number of progressive bots")
	fs.Float64Var(&f.positiveChance, "positive-chance", d.PositiveChance, "Probability a positive interaction attempt succeeds")
	fs.Float64Var(&f.neutralChance, "neutral-chance", d.BecomeNeutralChance, "Probability a human goes neutral after a negative interaction")
	fs.Uint64Var(&f.seed, "seed", d.Seed, "Random seed")
	fs.StringVar(&f.topology, "topology", d.Topology, "Graph family: erdos-renyi or power-law")
	fs.IntVar(&f.maxSteps, "max-steps", d.MaxSteps, "Stop after this many ticks (0 = until no neutrals remain)")
}

func (f *simFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	s := &cfg.Simulation
	if fs.Changed("nodes") {
		s.Nodes = f.nodes
	}
	if fs.Changed("avg-degree") {
		s.AvgDegree = f.avgDegree
	}
	if fs.Changed("cons-bots") {
		s.ConservativeBots = f.consBots
	}
	if fs.Changed("prog-bots") {
		s.ProgressiveBots = f.progBots
	}
	if fs.Changed("positive-chance") {
		s.PositiveChance = f.positiveChance
	}
	if fs.Changed("neutral-chance") {
		s.BecomeNeutralChance = f.neutralChance
	}
	if fs.Changed("seed") {
		s.Seed = f.seed
	}
	if fs.Changed("topology") {
		s.Topology = f.topology
	}
	if fs.Changed("max-steps") {
		s.MaxSteps = f.maxSteps
	}
}

// loadSimConfig resolves configuration including the simulation flags
func loadSimConfig(cmd *cobra.Command, f *simFlags) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	f.apply(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var (
	runSim       simFlags
	runJSON      bool
	runQuiet     bool
	runShowLog   bool
	runNoRecord  bool
	runExportDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation to completion and record its statistics",
	Long: `Runs one simulation until no neutral agents remain or --max-steps ticks
have passed. Each tick is recorded in the run database when one is found (or
given with --db), and exported as compressed JSON lines with --export-dir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSimConfig(cmd, &runSim)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("export-dir") {
			cfg.Storage.ExportDir = runExportDir
		}
		logger := newLogger(cfg)
		ctx := cmd.Context()

		simCfg := cfg.SimConfig().Normalize()
		opts := []sim.Option{sim.WithLogger(logger)}

		var rec *db.Recorder
		if !runNoRecord {
			if path, err := DiscoverDB(cfg, false); err == nil {
				store, err := db.OpenDB(path)
				if err != nil {
					return err
				}
				defer store.Close()
				rec, err = db.NewRecorder(ctx, store, simCfg)
				if err != nil {
					return err
				}
				opts = append(opts, sim.WithCollector(rec))
				logger.Debug("recording run", "db", path, "run", rec.RunID())
			} else {
				logger.Info("no run database, statistics will not be recorded", "reason", err)
			}
		}

		if cfg.Storage.ExportDir != "" {
			name := fmt.Sprintf("%s-%d", simCfg.Topology, simCfg.Seed)
			if rec != nil {
				name = rec.RunID()
			}
			w, err := export.NewStepWriter(cfg.Storage.ExportDir, name)
			if err != nil {
				return err
			}
			defer func() {
				if err := w.Close(); err != nil {
					logger.Error("closing export", "error", err)
				}
			}()
			opts = append(opts, sim.WithCollector(w))
			logger.Debug("exporting steps", "path", w.Path())
		}

		if !runJSON && !runQuiet {
			opts = append(opts, sim.WithCollector(sim.CollectorFunc(printTick)))
			printTickHeader()
		}

		s := sim.New(simCfg, opts...)
		summary, err := sim.Run(ctx, s, cfg.Simulation.MaxSteps)
		if err != nil {
			return fmt.Errorf("running simulation: %w", err)
		}
		if rec != nil {
			if err := rec.Finish(ctx, summary); err != nil {
				return err
			}
		}
		logger.Info("run finished", "steps", summary.Steps, "terminated", summary.Terminated)

		if runJSON {
			out := struct {
				RunID string `json:"run_id,omitempty"`
				*sim.RunSummary
			}{RunSummary: summary}
			if rec != nil {
				out.RunID = rec.RunID()
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		printSummary(summary, rec)
		if runShowLog {
			fmt.Println()
			fmt.Println(s.InteractionLog())
		}
		return nil
	},
}

func init() {
	runSim.register(runCmd.Flags())
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output the run summary as JSON")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print a line per tick")
	runCmd.Flags().BoolVar(&runShowLog, "interactions", false, "Print the full interaction log at the end")
	runCmd.Flags().BoolVar(&runNoRecord, "no-record", false, "Do not record the run in the database")
	runCmd.Flags().StringVar(&runExportDir, "export-dir", "", "Write per-tick statistics to <dir>/<run>.jsonl.zst")
	rootCmd.AddCommand(runCmd)
}

func printTickHeader() {
	fmt.Printf("  %5s  %6s  %6s  %6s  %8s  %6s  %6s\n", "step", "cons", "prog", "neut", "clusters", "cross", "ratio")
}

func printTick(st *sim.StepStats) error {
	fmt.Printf("  %5d  %6d  %6d  %6d  %8d  %6d  %6s\n",
		st.Step, st.Counts.Conservative, st.Counts.Progressive, st.Counts.Neutral,
		st.Clusters.Count, st.Clusters.CrossInteractions, st.ConsProgRatio)
	return nil
}

func printSummary(summary *sim.RunSummary, rec *db.Recorder) {
	status := "stopped: no neutral agents left"
	if !summary.Terminated {
		status = "step cap reached"
	}
	fmt.Printf("\n  %d steps, %s\n", summary.Steps, status)
	if rec != nil {
		fmt.Printf("  recorded as run %s\n", truncID(rec.RunID()))
	}
	if f := summary.Final; f != nil {
		c := f.Clusters
		fmt.Printf("  clusters: %d (exact %d)  conservative %d avg %d  progressive %d avg %d  largest %d\n",
			c.Count, c.ExactCount, c.ConservativeCount, c.ConservativeAvgSize,
			c.ProgressiveCount, c.ProgressiveAvgSize, c.Largest)
	}
}
