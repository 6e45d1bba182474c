package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"echochamber/internal/db"
	"echochamber/internal/graph"
	"echochamber/internal/sim"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStar builds a bot-centred star whose humans all convert
func newStar(collectors ...sim.Collector) *sim.Simulation {
	g := graph.New(5)
	for i := 1; i < 5; i++ {
		g.AddUndirected(0, i)
	}
	cfg := sim.DefaultConfig()
	cfg.PositiveChance = 1
	cfg.BecomeNeutralChance = 0
	opts := []sim.Option{sim.WithBotAssignment([]int{0}, nil)}
	for _, c := range collectors {
		opts = append(opts, sim.WithCollector(c))
	}
	return sim.NewWithGraph(cfg, g, opts...)
}

func setupServer(t *testing.T) (*httptest.Server, *Live, *Hub, *db.DB, string) {
	t.Helper()
	store, err := db.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	rec, err := db.NewRecorder(ctx, store, newStar().Config())
	if err != nil {
		t.Fatal(err)
	}
	recorded := newStar(rec)
	summary, err := sim.Run(ctx, recorded, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Finish(ctx, summary); err != nil {
		t.Fatal(err)
	}

	hub := NewHub(quietLogger())
	live := NewLive(newStar(hub))
	srv := httptest.NewServer(New(store, live, hub, quietLogger()).Router())
	t.Cleanup(srv.Close)
	return srv, live, hub, store, rec.RunID()
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, map[string]string{"foo": "bar"})

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _, _, _ := setupServer(t)
	if code := getJSON(t, srv.URL+"/health", nil); code != http.StatusOK {
		t.Errorf("health = %d", code)
	}
}

func TestState(t *testing.T) {
	srv, live, _, _, _ := setupServer(t)
	if _, err := live.Step(); err != nil {
		t.Fatal(err)
	}

	var st struct {
		Stats struct {
			Step   int  `json:"step"`
			Counts struct {
				Bots int `json:"bots"`
			} `json:"counts"`
		} `json:"stats"`
		Agents []struct {
			ID   int    `json:"id"`
			Kind string `json:"kind"`
		} `json:"agents"`
		Edges []struct {
			Weight string `json:"weight"`
		} `json:"edges"`
	}
	if code := getJSON(t, srv.URL+"/api/state", &st); code != http.StatusOK {
		t.Fatalf("state = %d", code)
	}
	if st.Stats.Step != 1 || st.Stats.Counts.Bots != 1 {
		t.Errorf("unexpected stats %+v", st.Stats)
	}
	if len(st.Agents) != 5 || st.Agents[0].Kind != "bot" {
		t.Errorf("unexpected agents %+v", st.Agents)
	}
	if len(st.Edges) != 8 {
		t.Errorf("expected 8 directed edges, got %d", len(st.Edges))
	}
}

func TestAnalysis(t *testing.T) {
	srv, _, _, _, _ := setupServer(t)
	var report sim.AnalysisReport
	if code := getJSON(t, srv.URL+"/api/analysis?top=3", &report); code != http.StatusOK {
		t.Fatalf("analysis = %d", code)
	}
	if report.Topology == nil || report.Topology.TotalNodes != 5 {
		t.Errorf("unexpected topology %+v", report.Topology)
	}
}

func TestRuns(t *testing.T) {
	srv, _, _, _, runID := setupServer(t)

	var runs []db.Run
	if code := getJSON(t, srv.URL+"/api/runs", &runs); code != http.StatusOK {
		t.Fatalf("runs = %d", code)
	}
	if len(runs) != 1 || runs[0].ID != runID || !runs[0].Terminated {
		t.Errorf("unexpected runs %+v", runs)
	}

	var run db.Run
	if code := getJSON(t, srv.URL+"/api/runs/"+runID[:8], &run); code != http.StatusOK {
		t.Fatalf("run = %d", code)
	}
	if run.ID != runID {
		t.Errorf("prefix lookup returned %s", run.ID)
	}

	var steps []db.StepRecord
	if code := getJSON(t, srv.URL+"/api/runs/"+runID+"/steps?from=1&limit=2", &steps); code != http.StatusOK {
		t.Fatalf("steps = %d", code)
	}
	if len(steps) != 2 || steps[0].Step != 1 {
		t.Errorf("unexpected steps %+v", steps)
	}

	if code := getJSON(t, srv.URL+"/api/runs/does-not-exist", nil); code != http.StatusNotFound {
		t.Errorf("missing run = %d, want 404", code)
	}
}

func TestUnavailableWithoutBackends(t *testing.T) {
	srv := httptest.NewServer(New(nil, nil, nil, quietLogger()).Router())
	defer srv.Close()

	for _, path := range []string{"/api/state", "/api/analysis", "/api/runs", "/api/runs/x", "/api/runs/x/steps"} {
		if code := getJSON(t, srv.URL+path, nil); code != http.StatusServiceUnavailable {
			t.Errorf("%s = %d, want 503", path, code)
		}
	}
}

func TestStepStream(t *testing.T) {
	srv, live, hub, _, _ := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/steps"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// wait for the handler to subscribe before ticking
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	done := make(chan *sim.RunSummary, 1)
	go func() {
		summary, _ := live.Run(runCtx, time.Millisecond, 50)
		done <- summary
	}()

	var seen []int
	for len(seen) < 2 {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var st sim.StepStats
		if err := json.Unmarshal(data, &st); err != nil {
			t.Fatalf("decode: %v", err)
		}
		seen = append(seen, st.Step)
	}
	if seen[0] != 0 || seen[1] != 1 {
		t.Errorf("expected steps 0 then 1, got %v", seen)
	}

	select {
	case summary := <-done:
		if !summary.Terminated {
			t.Errorf("star should converge, got %+v", summary)
		}
	case <-ctx.Done():
		t.Fatal("live run did not finish")
	}
}

func TestHub_DropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(quietLogger())
	updates, unsubscribe := hub.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		if err := hub.Collect(&sim.StepStats{Step: i}); err != nil {
			t.Fatal(err)
		}
	}
	if len(updates) != subscriberBuffer {
		t.Errorf("expected a full buffer of %d, got %d", subscriberBuffer, len(updates))
	}

	unsubscribe()
	unsubscribe()
	if hub.Subscribers() != 0 {
		t.Errorf("expected no subscribers, got %d", hub.Subscribers())
	}

	late, stop := hub.Subscribe()
	defer stop()
	var st sim.StepStats
	if err := json.Unmarshal(<-late, &st); err != nil {
		t.Fatal(err)
	}
	if st.Step != subscriberBuffer+4 {
		t.Errorf("late subscriber should get the latest tick, got %d", st.Step)
	}
}
