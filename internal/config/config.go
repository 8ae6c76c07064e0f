// Package config provides depot configuration for Muster.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/steveyegge/muster/internal/constants"
)

// Config is the depot configuration loaded from .muster/config.toml.
type Config struct {
	// Fleet contains worker fleet settings.
	Fleet FleetConfig `toml:"fleet"`

	// Tasks contains task pool settings.
	Tasks TasksConfig `toml:"tasks"`

	// Accept contains merge pipeline settings.
	Accept AcceptConfig `toml:"accept"`

	// Daemon contains control loop settings.
	Daemon DaemonConfig `toml:"daemon"`

	// Labels maps a task label to its prompt context.
	Labels map[string]LabelConfig `toml:"labels,omitempty"`
}

// FleetConfig contains worker fleet settings.
type FleetConfig struct {
	// Size is how many workers `muster up` provisions if none exist yet.
	Size int `toml:"size"`

	// AgentCommand is the command run inside each worker session.
	AgentCommand string `toml:"agent_command"`
}

// TasksConfig contains task pool settings.
type TasksConfig struct {
	// Dir is the task directory, relative to the depot root unless
	// absolute.
	Dir string `toml:"dir"`
}

// AcceptConfig contains merge pipeline settings.
type AcceptConfig struct {
	// PostAcceptCommand runs in the depot root after every successful
	// accept (e.g. a test suite or a push). A non-zero exit is a hard
	// failure: something is wrong with the freshly merged default branch.
	PostAcceptCommand string `toml:"post_accept_command,omitempty"`
}

// DaemonConfig contains control loop settings.
type DaemonConfig struct {
	// PatrolIntervalSecs is the patrol cadence in seconds.
	PatrolIntervalSecs int `toml:"patrol_interval_secs"`
}

// LabelConfig is per-label prompt context injected around task bodies.
type LabelConfig struct {
	Prologue string `toml:"prologue,omitempty"`
	Epilogue string `toml:"epilogue,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Fleet: FleetConfig{
			Size:         2,
			AgentCommand: "claude --dangerously-skip-permissions",
		},
		Tasks: TasksConfig{
			Dir: filepath.Join(constants.DirMuster, constants.DirTasks),
		},
		Daemon: DaemonConfig{
			PatrolIntervalSecs: constants.DefaultPatrolIntervalSecs,
		},
	}
}

// Path returns the config file path for a depot root.
func Path(root string) string {
	return filepath.Join(root, constants.DirMuster, constants.FileConfig)
}

// Load reads the depot config, applying defaults for anything unset.
// A missing file yields the defaults.
func Load(root string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", Path(root), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", Path(root), err)
	}
	return cfg, nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.Fleet.Size < 0 {
		return fmt.Errorf("fleet.size must be non-negative, got %d", c.Fleet.Size)
	}
	if c.Fleet.AgentCommand == "" {
		return fmt.Errorf("fleet.agent_command must not be empty")
	}
	if c.Tasks.Dir == "" {
		return fmt.Errorf("tasks.dir must not be empty")
	}
	if c.Daemon.PatrolIntervalSecs <= 0 {
		return fmt.Errorf("daemon.patrol_interval_secs must be positive, got %d", c.Daemon.PatrolIntervalSecs)
	}
	return nil
}

// TaskDir resolves the task directory against the depot root.
func (c *Config) TaskDir(root string) string {
	if filepath.IsAbs(c.Tasks.Dir) {
		return c.Tasks.Dir
	}
	return filepath.Join(root, c.Tasks.Dir)
}

// LabelContext returns the prologue and epilogue for a label.
func (c *Config) LabelContext(label string) (prologue, epilogue string) {
	if label == "" || c.Labels == nil {
		return "", ""
	}
	lc, ok := c.Labels[label]
	if !ok {
		return "", ""
	}
	return lc.Prologue, lc.Epilogue
}

// DefaultTOML is the config file written by `muster init`.
const DefaultTOML = `# Muster depot configuration.

[fleet]
# Workers provisioned by 'muster up' when the fleet is empty.
size = 2
# Command run inside each worker's tmux session.
agent_command = "claude --dangerously-skip-permissions"

[tasks]
# Task directory, relative to the depot root.
dir = ".muster/tasks"

[accept]
# Command run in the depot root after each successful accept.
# post_accept_command = "make test"

[daemon]
patrol_interval_secs = 10

# Per-label prompt context:
# [labels.backend]
# prologue = "Follow the service style guide in docs/backend.md."
# epilogue = "Run 'make test-backend' before finishing."
`

// WriteDefault writes the default config file, failing if one exists.
func WriteDefault(root string) error {
	path := Path(root)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating depot directory: %w", err)
	}
	return os.WriteFile(path, []byte(DefaultTOML), 0644)
}
