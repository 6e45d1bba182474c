// Package config provides unified configuration loading for echochamber.
// It supports loading from YAML files, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"echochamber/internal/graph"
	"echochamber/internal/logging"
	"echochamber/internal/sim"
)

// DefaultFile is the config file picked up from the working directory.
const DefaultFile = "echochamber.yaml"

// Config contains all echochamber configuration settings.
type Config struct {
	// Simulation holds the population and graph parameters.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Rules holds the interaction constants.
	Rules sim.Rules `json:"rules" yaml:"rules"`

	// Storage locates the run database and export directory.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Server configures the HTTP API.
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig configures one simulation run.
type SimulationConfig struct {
	Nodes               int     `json:"nodes" yaml:"nodes"`
	AvgDegree           float64 `json:"avg_degree" yaml:"avg_degree"`
	ConservativeBots    int     `json:"conservative_bots" yaml:"conservative_bots"`
	ProgressiveBots     int     `json:"progressive_bots" yaml:"progressive_bots"`
	PositiveChance      float64 `json:"positive_chance" yaml:"positive_chance"`
	BecomeNeutralChance float64 `json:"become_neutral_chance" yaml:"become_neutral_chance"`
	Seed                uint64  `json:"seed" yaml:"seed"`

	// Topology is "erdos-renyi" or "power-law".
	Topology string `json:"topology" yaml:"topology"`

	// MaxSteps caps a run. 0 means run until no neutral agents remain.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
}

// StorageConfig locates persisted output.
type StorageConfig struct {
	// DBPath is the SQLite file runs are recorded in. Empty disables recording
	// unless the CLI finds a database on its own.
	DBPath string `json:"db_path" yaml:"db_path"`

	// ExportDir receives one .jsonl.zst file per run when set.
	ExportDir string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`

	// TickInterval is the delay between live simulation ticks.
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "trace" logs every agent interaction.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	d := sim.DefaultConfig()
	return &Config{
		Simulation: SimulationConfig{
			Nodes:               d.Nodes,
			AvgDegree:           d.AvgDegree,
			ConservativeBots:    d.ConservativeBots,
			ProgressiveBots:     d.ProgressiveBots,
			PositiveChance:      d.PositiveChance,
			BecomeNeutralChance: d.BecomeNeutralChance,
			Seed:                d.Seed,
			Topology:            string(d.Topology),
			MaxSteps:            1000,
		},
		Rules: sim.DefaultRules(),
		Server: ServerConfig{
			Addr:         ":8080",
			TickInterval: time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path, or from ./echochamber.yaml when path
// is empty and that file exists, then applies environment overrides.
// Order: defaults -> config file -> environment variables
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (./.env when none)
// into the process environment. Variables already set win. A missing file is
// not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Nodes < 0 {
		return fmt.Errorf("nodes must be non-negative, got %d", s.Nodes)
	}
	if s.AvgDegree < 0 {
		return fmt.Errorf("avg_degree must be non-negative, got %f", s.AvgDegree)
	}
	if s.PositiveChance < 0 || s.PositiveChance > 1 {
		return fmt.Errorf("positive_chance must be between 0 and 1, got %f", s.PositiveChance)
	}
	if s.BecomeNeutralChance < 0 || s.BecomeNeutralChance > 1 {
		return fmt.Errorf("become_neutral_chance must be between 0 and 1, got %f", s.BecomeNeutralChance)
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative, got %d", s.MaxSteps)
	}

	switch graph.Topology(s.Topology) {
	case graph.TopologyErdosRenyi, graph.TopologyPowerLaw:
	default:
		return fmt.Errorf("invalid topology: %s (valid: %s, %s)", s.Topology, graph.TopologyErdosRenyi, graph.TopologyPowerLaw)
	}

	if p := c.Rules.NegativeChance; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("negative_chance must be between 0 and 1, got %f", *p)
	}

	if c.Server.TickInterval < 0 {
		return fmt.Errorf("tick_interval must be non-negative, got %v", c.Server.TickInterval)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// SimConfig maps the file settings onto the engine's construction contract.
func (c *Config) SimConfig() sim.Config {
	s := c.Simulation
	return sim.Config{
		Nodes:               s.Nodes,
		AvgDegree:           s.AvgDegree,
		ConservativeBots:    s.ConservativeBots,
		ProgressiveBots:     s.ProgressiveBots,
		PositiveChance:      s.PositiveChance,
		BecomeNeutralChance: s.BecomeNeutralChance,
		Seed:                s.Seed,
		Topology:            graph.Topology(s.Topology),
		Rules:               c.Rules,
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	setInt("ECHO_NODES", &config.Simulation.Nodes)
	setFloat("ECHO_AVG_DEGREE", &config.Simulation.AvgDegree)
	setInt("ECHO_CONSERVATIVE_BOTS", &config.Simulation.ConservativeBots)
	setInt("ECHO_PROGRESSIVE_BOTS", &config.Simulation.ProgressiveBots)
	setFloat("ECHO_POSITIVE_CHANCE", &config.Simulation.PositiveChance)
	setFloat("ECHO_BECOME_NEUTRAL_CHANCE", &config.Simulation.BecomeNeutralChance)
	setInt("ECHO_MAX_STEPS", &config.Simulation.MaxSteps)

	if v := os.Getenv("ECHO_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}

	if v := os.Getenv("ECHO_TOPOLOGY"); v != "" {
		config.Simulation.Topology = v
	}

	if v := os.Getenv("ECHO_DB"); v != "" {
		config.Storage.DBPath = v
	}

	if v := os.Getenv("ECHO_EXPORT_DIR"); v != "" {
		config.Storage.ExportDir = v
	}

	if v := os.Getenv("ECHO_ADDR"); v != "" {
		config.Server.Addr = v
	}

	if v := os.Getenv("ECHO_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.TickInterval = d
		}
	}

	if v := os.Getenv("ECHO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
