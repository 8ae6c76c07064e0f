package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(Path(root)), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(root), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Fleet.Size != 2 {
		t.Errorf("Fleet.Size = %d, want 2", cfg.Fleet.Size)
	}
	if cfg.Fleet.AgentCommand == "" {
		t.Error("default agent command missing")
	}
	if cfg.Daemon.PatrolIntervalSecs != 10 {
		t.Errorf("PatrolIntervalSecs = %d, want 10", cfg.Daemon.PatrolIntervalSecs)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
[fleet]
size = 5
agent_command = "my-agent --yolo"

[tasks]
dir = "work/queue"

[accept]
post_accept_command = "make test"

[daemon]
patrol_interval_secs = 30

[labels.backend]
prologue = "Mind the style guide."
epilogue = "Run the backend suite."
`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Fleet.Size != 5 || cfg.Fleet.AgentCommand != "my-agent --yolo" {
		t.Errorf("fleet = %+v", cfg.Fleet)
	}
	if cfg.Accept.PostAcceptCommand != "make test" {
		t.Errorf("post accept = %q", cfg.Accept.PostAcceptCommand)
	}
	if got := cfg.TaskDir(root); got != filepath.Join(root, "work/queue") {
		t.Errorf("TaskDir = %q", got)
	}

	pro, epi := cfg.LabelContext("backend")
	if pro != "Mind the style guide." || epi != "Run the backend suite." {
		t.Errorf("LabelContext = (%q, %q)", pro, epi)
	}
	if pro, epi := cfg.LabelContext("unknown"); pro != "" || epi != "" {
		t.Errorf("unknown label context = (%q, %q), want empty", pro, epi)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[fleet\nsize = ")
	if _, err := Load(root); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"negative fleet", func(c *Config) { c.Fleet.Size = -1 }, false},
		{"empty agent command", func(c *Config) { c.Fleet.AgentCommand = "" }, false},
		{"empty task dir", func(c *Config) { c.Tasks.Dir = "" }, false},
		{"zero patrol interval", func(c *Config) { c.Daemon.PatrolIntervalSecs = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestTaskDirAbsolutePassthrough(t *testing.T) {
	cfg := Default()
	cfg.Tasks.Dir = "/somewhere/else"
	if got := cfg.TaskDir("/depot"); got != "/somewhere/else" {
		t.Errorf("TaskDir = %q, want the absolute path untouched", got)
	}
}

func TestWriteDefault(t *testing.T) {
	root := t.TempDir()
	if err := WriteDefault(root); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	// The generated file parses and validates.
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load of generated config: %v", err)
	}
	if cfg.Fleet.Size != 2 {
		t.Errorf("Fleet.Size = %d", cfg.Fleet.Size)
	}
	// Refuses to clobber.
	if err := WriteDefault(root); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second WriteDefault = %v, want already-exists error", err)
	}
}
