package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"echochamber/internal/config"
	"echochamber/internal/db"
	"echochamber/internal/logging"
)

// dbFileName is looked for in the working directory and its parents
const dbFileName = ".echochamber.db"

var (
	dbPath     string
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "echochamber",
	Short: "Agent-based echo-chamber simulation and analysis",
	Long: `Simulates opinion dynamics on a social graph: neutral humans are pushed
toward conservative or progressive opinions by neighbours and fixed-opinion
bots, ties fade as agents disengage, and every tick the network is split into
connected same-opinion clusters.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the run database (default: discover "+dbFileName+")")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: info, debug, trace")
}

// loadConfig resolves configuration.
// Order: defaults -> config file -> .env -> environment -> explicit flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("db") {
		cfg.Storage.DBPath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger creates the CLI's stderr logger
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, os.Stderr)
}

// DiscoverDB finds the database path using priority: flag/env/config > walk-up > XDG fallback.
// With mustExist false an explicitly configured path is returned even if the
// file does not exist yet, so that it can be created.
func DiscoverDB(cfg *config.Config, mustExist bool) (string, error) {
	// 1. Flag, ECHO_DB or config file
	if p := cfg.Storage.DBPath; p != "" {
		if _, err := os.Stat(p); err == nil || !mustExist {
			return p, nil
		}
		return "", fmt.Errorf("database not found at %s", p)
	}

	// 2. Walk up from CWD
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, dbFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 3. XDG fallback
	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".local", "share", "echochamber", "runs.db")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", fmt.Errorf("no %s found (set ECHO_DB, use --db, or run from a directory containing %s)", dbFileName, dbFileName)
}

// OpenDatabase discovers and opens an existing database
func OpenDatabase(cfg *config.Config) (*db.DB, error) {
	path, err := DiscoverDB(cfg, true)
	if err != nil {
		return nil, err
	}
	return db.OpenDB(path)
}

func truncID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// jsonLogger creates the structured stderr logger used by long-running commands
func jsonLogger(cfg *config.Config) *slog.Logger {
	return logging.NewJSONLogger(cfg.Logging.Level, os.Stderr)
}
