package cmd

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"echochamber/internal/graph"
	"echochamber/internal/sim"
)

// captureStdout returns what fn prints to stdout
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		done <- buf.String()
	}()
	fn()
	w.Close()
	return <-done
}

func TestListLimit(t *testing.T) {
	tests := []struct {
		n, topN, want int
	}{
		{3, 10, 3},
		{30, 10, 10},
		{30, 0, 30},
		{0, 5, 0},
	}
	for _, tt := range tests {
		if got := listLimit(tt.n, tt.topN); got != tt.want {
			t.Errorf("listLimit(%d, %d) = %d, want %d", tt.n, tt.topN, got, tt.want)
		}
	}
}

func TestPrintHumanReadable_FragilityHonoursTopN(t *testing.T) {
	// a path has n-1 bridges and n-2 articulation points
	const n = 15
	g := graph.New(n)
	for i := 0; i+1 < n; i++ {
		g.AddUndirected(i, i+1)
	}
	s := sim.NewWithGraph(sim.DefaultConfig(), g, sim.WithBotAssignment(nil, nil))
	report := s.Analyze(&sim.AnalyzerConfig{HubThreshold: 6, TopN: 3})

	out := captureStdout(t, func() { printHumanReadable(report, s, 3) })
	if got := strings.Count(out, "<->"); got != 3 {
		t.Errorf("expected 3 bridge lines, got %d\n%s", got, out)
	}
	if got := strings.Count(out, "    degree 2  "); got != 3 {
		t.Errorf("expected 3 articulation point lines, got %d\n%s", got, out)
	}

	out = captureStdout(t, func() { printHumanReadable(report, s, 20) })
	if got := strings.Count(out, "<->"); got != n-1 {
		t.Errorf("expected all %d bridges, got %d", n-1, got)
	}
}
