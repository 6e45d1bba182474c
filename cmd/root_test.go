package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"echochamber/internal/config"
)

func TestDiscoverDB_ConfiguredPath(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "runs.db")

	got, err := DiscoverDB(cfg, false)
	if err != nil {
		t.Fatalf("DiscoverDB: %v", err)
	}
	if got != cfg.Storage.DBPath {
		t.Errorf("got %q, want %q", got, cfg.Storage.DBPath)
	}

	if _, err := DiscoverDB(cfg, true); err == nil {
		t.Error("expected error for missing database with mustExist")
	}
}

func TestDiscoverDB_WalksUp(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, dbFileName)
	if err := os.WriteFile(want, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	got, err := DiscoverDB(config.Default(), true)
	if err != nil {
		t.Fatalf("DiscoverDB: %v", err)
	}
	// TempDir may sit behind a symlink (macOS /var -> /private/var)
	gotInfo, err := os.Stat(got)
	if err != nil {
		t.Fatal(err)
	}
	wantInfo, _ := os.Stat(want)
	if !os.SameFile(gotInfo, wantInfo) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSimFlags_OnlyChangedOverride(t *testing.T) {
	var f simFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	if err := fs.Parse([]string{"--nodes", "42", "--topology", "power-law"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Simulation.Seed = 99
	cfg.Simulation.AvgDegree = 3.5
	f.apply(fs, cfg)

	if cfg.Simulation.Nodes != 42 {
		t.Errorf("Nodes = %d, want 42", cfg.Simulation.Nodes)
	}
	if cfg.Simulation.Topology != "power-law" {
		t.Errorf("Topology = %q, want power-law", cfg.Simulation.Topology)
	}
	if cfg.Simulation.Seed != 99 {
		t.Errorf("Seed = %d, want 99 (flag not set)", cfg.Simulation.Seed)
	}
	if cfg.Simulation.AvgDegree != 3.5 {
		t.Errorf("AvgDegree = %v, want 3.5 (flag not set)", cfg.Simulation.AvgDegree)
	}
}

func TestTruncID(t *testing.T) {
	if got := truncID("0123456789abcdef"); got != "01234567" {
		t.Errorf("truncID = %q", got)
	}
	if got := truncID("abc"); got != "abc" {
		t.Errorf("truncID = %q", got)
	}
}
