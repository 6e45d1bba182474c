package export

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"echochamber/internal/graph"
	"echochamber/internal/sim"
)

func TestStepWriter_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	w, err := NewStepWriter(dir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if w.Path() != filepath.Join(dir, "run-1.jsonl.zst") {
		t.Errorf("unexpected path %s", w.Path())
	}

	g := graph.New(4)
	for i := 1; i < 4; i++ {
		g.AddUndirected(0, i)
	}
	cfg := sim.DefaultConfig()
	cfg.PositiveChance = 1
	cfg.BecomeNeutralChance = 0
	s := sim.NewWithGraph(cfg, g, sim.WithBotAssignment([]int{0}, nil), sim.WithCollector(w))

	summary, err := sim.Run(context.Background(), s, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}

	steps, err := ReadFile(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != summary.Steps+1 {
		t.Fatalf("expected %d lines, got %d", summary.Steps+1, len(steps))
	}
	if steps[0].Step != 0 || steps[0].Counts.Neutral != 3 {
		t.Errorf("first line should be the initial state: %+v", steps[0])
	}
	last := steps[len(steps)-1]
	if last.Running || !last.ConsProgRatio.IsInf() {
		t.Errorf("last line should be stopped with inf ratio: %+v", last)
	}
	if len(last.Clusters.Assignment) != 4 {
		t.Errorf("cluster assignment not exported: %v", last.Clusters.Assignment)
	}

	var interactions int
	for _, st := range steps {
		interactions += len(st.Interactions)
	}
	if interactions != len(s.Interactions()) {
		t.Errorf("exported %d interactions, simulation logged %d", interactions, len(s.Interactions()))
	}
}

func TestStepWriter_CollectAfterClose(t *testing.T) {
	w, err := NewStepWriter(t.TempDir(), "closed")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Collect(&sim.StepStats{Step: 3}); err == nil {
		t.Error("expected error writing to a closed export")
	}
}

func TestReadSteps_PlainZstdStream(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	lines := `{"step":0,"running":true,"counts":{"conservative":1,"progressive":0,"neutral":2,"humans":2,"bots":1},"cons_prog_ratio":"inf","clusters":{}}` + "\n" +
		`{"step":1,"running":false,"counts":{"conservative":1,"progressive":1,"neutral":0,"humans":1,"bots":1},"cons_prog_ratio":1,"clusters":{}}` + "\n"
	if _, err := enc.Write([]byte(lines)); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	steps, err := ReadSteps(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if !steps[0].ConsProgRatio.IsInf() || float64(steps[1].ConsProgRatio) != 1 {
		t.Errorf("ratios = %v, %v", steps[0].ConsProgRatio, steps[1].ConsProgRatio)
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "none"+Ext))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
