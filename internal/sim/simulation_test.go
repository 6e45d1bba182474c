package sim

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestStarConvergesToBotOpinion(t *testing.T) {
	s := starSim(t, 10, 1.0, 0)
	summary, err := Run(context.Background(), s, 500)
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Terminated {
		t.Fatalf("star should terminate, ran %d steps", summary.Steps)
	}
	for _, a := range s.Agents() {
		if a.Opinion != Conservative {
			t.Errorf("agent %d is %v, want conservative", a.ID, a.Opinion)
		}
		if a.HitConservative != 0 || a.HitProgressive != 0 {
			t.Errorf("agent %d kept hits %d/%d", a.ID, a.HitConservative, a.HitProgressive)
		}
	}
	final := summary.Final
	if final.Running {
		t.Error("final stats should report stopped")
	}
	if final.Clusters.Count != 1 {
		t.Errorf("expected a single cluster, got %d", final.Clusters.Count)
	}
	if final.Counts.Neutral != 0 || final.Counts.Conservative != 10 {
		t.Errorf("unexpected counts %+v", final.Counts)
	}
	if !final.ConsProgRatio.IsInf() {
		t.Errorf("no progressives left, ratio should be inf, got %v", final.ConsProgRatio)
	}
}

func TestStepAfterStopIsNoop(t *testing.T) {
	s := starSim(t, 4, 1.0, 0)
	if _, err := Run(context.Background(), s, 200); err != nil {
		t.Fatal(err)
	}
	if s.Running() {
		t.Fatal("expected stopped simulation")
	}
	step, opinions := s.StepCount(), s.Opinions()
	stats, err := s.Step()
	if err != nil {
		t.Fatal(err)
	}
	if s.StepCount() != step || stats.Step != step {
		t.Errorf("step advanced after stop: %d -> %d", step, s.StepCount())
	}
	if !reflect.DeepEqual(opinions, s.Opinions()) {
		t.Error("opinions changed after stop")
	}
}

func TestZeroPositiveChanceKeepsHumansNeutral(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nodes = 30
	cfg.AvgDegree = 4
	cfg.ConservativeBots = 2
	cfg.ProgressiveBots = 2
	cfg.PositiveChance = 0
	s := New(cfg)

	summary, err := Run(context.Background(), s, 50)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Terminated || !s.Running() {
		t.Error("simulation should still be running")
	}
	if summary.Steps != 50 {
		t.Errorf("steps = %d, want 50", summary.Steps)
	}
	c := summary.Final.Counts
	if c.Neutral != c.Humans || c.Humans != 26 {
		t.Errorf("humans should all stay neutral, got %+v", c)
	}
}

func TestZeroNodes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nodes = 0
	s := New(cfg)
	stats, err := s.Step()
	if err != nil {
		t.Fatal(err)
	}
	if s.Running() {
		t.Error("empty simulation has no neutrals and should stop")
	}
	if stats.Clusters.Count != 0 || stats.Clusters.ClusterToNodeRatio != 0 {
		t.Errorf("unexpected clusters %+v", stats.Clusters)
	}
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       Config
		wantCons int
		wantProg int
	}{
		{"fits", Config{Nodes: 10, ConservativeBots: 3, ProgressiveBots: 2}, 3, 2},
		{"overflow splits evenly", Config{Nodes: 10, ConservativeBots: 30, ProgressiveBots: 30}, 5, 5},
		{"odd overflow favours conservative", Config{Nodes: 7, ConservativeBots: 7, ProgressiveBots: 1}, 4, 3},
		{"negatives clamp", Config{Nodes: 5, ConservativeBots: -1, ProgressiveBots: -3}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if got.ConservativeBots != tt.wantCons || got.ProgressiveBots != tt.wantProg {
				t.Errorf("bots = %d/%d, want %d/%d", got.ConservativeBots, got.ProgressiveBots, tt.wantCons, tt.wantProg)
			}
			if !reflect.DeepEqual(got.Rules, DefaultRules()) {
				t.Errorf("zero rules should normalize to defaults, got %+v", got.Rules)
			}
		})
	}

	c := Config{PositiveChance: 1.7, BecomeNeutralChance: -0.2, Topology: "ring"}.Normalize()
	if c.PositiveChance != 1 || c.BecomeNeutralChance != 0 {
		t.Errorf("probabilities not clamped: %f %f", c.PositiveChance, c.BecomeNeutralChance)
	}
	if c.Topology != "erdos-renyi" {
		t.Errorf("unknown topology should fall back, got %q", c.Topology)
	}
}

func TestBotsAreDisjoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nodes = 20
	cfg.ConservativeBots = 5
	cfg.ProgressiveBots = 5
	s := New(cfg)

	c := s.Latest().Counts
	if c.Bots != 10 || c.Conservative != 5 || c.Progressive != 5 || c.Neutral != 10 {
		t.Errorf("unexpected initial counts %+v", c)
	}
	for _, a := range s.Agents() {
		if a.Kind == Bot && a.Reach != cfg.Rules.BotReach {
			t.Errorf("bot %d starts with reach %d", a.ID, a.Reach)
		}
	}
}

func TestReachStaysBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nodes = 40
	cfg.AvgDegree = 6
	cfg.ConservativeBots = 8
	cfg.ProgressiveBots = 8
	s := New(cfg)
	rules := s.Rules()
	for i := 0; i < 30; i++ {
		if _, err := s.Step(); err != nil {
			t.Fatal(err)
		}
		for _, a := range s.Agents() {
			if a.Reach < 1 || a.Reach > rules.MaxReach {
				t.Fatalf("step %d: agent %d reach %d out of bounds", i+1, a.ID, a.Reach)
			}
			if a.Kind == Human && a.Reach != rules.HumanReach {
				t.Fatalf("step %d: human %d reach changed to %d", i+1, a.ID, a.Reach)
			}
		}
	}
}

func TestSameSeedSameRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Nodes = 25
	cfg.AvgDegree = 4
	cfg.ConservativeBots = 3
	cfg.ProgressiveBots = 3
	cfg.Seed = 7

	a, b := New(cfg), New(cfg)
	for i := 0; i < 15; i++ {
		sa, _ := a.Step()
		sb, _ := b.Step()
		if !reflect.DeepEqual(sa, sb) {
			t.Fatalf("step %d diverged", i+1)
		}
	}
	if a.InteractionLog() != b.InteractionLog() {
		t.Error("interaction logs differ")
	}
}

func TestRunCollectsInitialState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PositiveChance = 0
	var steps []int
	s := New(cfg, WithCollector(CollectorFunc(func(st *StepStats) error {
		steps = append(steps, st.Step)
		return nil
	})))

	summary, err := Run(context.Background(), s, 5)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{0, 1, 2, 3, 4, 5}; !reflect.DeepEqual(steps, want) {
		t.Errorf("collected steps %v, want %v", steps, want)
	}
	if summary.Steps != 5 || summary.Final.Step != 5 {
		t.Errorf("summary %+v", summary)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(DefaultConfig())
	summary, err := Run(ctx, s, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Steps != 0 {
		t.Errorf("no tick should run after cancellation, got %d", summary.Steps)
	}
}

func TestCollectorErrorStopsRun(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	cfg := DefaultConfig()
	cfg.PositiveChance = 0
	s := New(cfg, WithCollector(CollectorFunc(func(st *StepStats) error {
		calls++
		if st.Step == 2 {
			return boom
		}
		return nil
	})))
	_, err := Run(context.Background(), s, 10)
	if !errors.Is(err, boom) {
		t.Fatalf("expected collector error, got %v", err)
	}
	if !strings.Contains(err.Error(), "step 2") {
		t.Errorf("error should name the step: %v", err)
	}
	if calls != 3 {
		t.Errorf("collector calls = %d, want 3", calls)
	}
}

func TestRatioJSON(t *testing.T) {
	tests := []struct {
		r    Ratio
		want string
	}{
		{NewRatio(3, 2), "1.5"},
		{NewRatio(0, 4), "0"},
		{NewRatio(5, 0), `"inf"`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.r)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tt.want {
			t.Errorf("marshal %v = %s, want %s", tt.r, b, tt.want)
		}
		var back Ratio
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatal(err)
		}
		if back.IsInf() != tt.r.IsInf() || (!back.IsInf() && math.Abs(float64(back-tt.r)) > 1e-12) {
			t.Errorf("round trip %v -> %v", tt.r, back)
		}
	}
	if NewRatio(1, 0).String() != "∞" {
		t.Errorf("inf ratio string = %q", NewRatio(1, 0).String())
	}
}

func TestAnalyzeConvergedStar(t *testing.T) {
	s := starSim(t, 10, 1.0, 0)
	if _, err := Run(context.Background(), s, 500); err != nil {
		t.Fatal(err)
	}
	report := s.Analyze(nil)

	b := report.PolarizationBreakdown
	if b.Segregation != 1 || b.Balance != 0 || b.Commitment != 1 {
		t.Errorf("breakdown = %+v", b)
	}
	if math.Abs(report.PolarizationScore-0.7) > 1e-9 {
		t.Errorf("score = %f, want 0.7", report.PolarizationScore)
	}
	if report.Topology.NumComponents != 1 || report.Topology.VisiblePairs != 9 {
		t.Errorf("topology = %+v", report.Topology)
	}
	// every leaf hangs off the bot
	if report.Bridges.BridgeCount != 9 || report.Bridges.APCount != 1 {
		t.Errorf("bridges = %d, articulation points = %d", report.Bridges.BridgeCount, report.Bridges.APCount)
	}
}

func TestNormalize_PartialRules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules = Rules{MaxReach: 20}
	s := New(cfg)
	r := s.Rules()
	if r.MaxReach != 20 || r.HitRequired != 10 {
		t.Errorf("set fields should survive and unset ones default, got %+v", r)
	}
	if p := r.NegativeProbability(); p != 2.0/7.0 {
		t.Errorf("unset negative chance should default to 2/7, got %v", p)
	}

	cfg.Rules = Rules{MaxReach: 20, NegativeChance: Probability(0)}
	if p := cfg.Normalize().Rules.NegativeProbability(); p != 0 {
		t.Errorf("explicit zero negative chance should be kept, got %v", p)
	}

	given := Probability(3)
	cfg.Rules = Rules{NegativeChance: given}
	if p := cfg.Normalize().Rules.NegativeProbability(); p != 1 {
		t.Errorf("negative chance should clamp to 1, got %v", p)
	}
	if *given != 3 {
		t.Errorf("normalize must not modify the caller's value, got %v", *given)
	}
}
