// Package tmux wraps the tmux binary for worker session management.
package tmux

import (
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/muster/internal/constants"
	"github.com/steveyegge/muster/internal/util"
)

// Tmux drives tmux sessions through the tmux binary.
type Tmux struct {
	// debounce is the pause between pasting text and sending Enter.
	debounce time.Duration
}

// NewTmux creates a Tmux instance with the default debounce.
func NewTmux() *Tmux {
	return &Tmux{debounce: constants.DefaultDebounceMs * time.Millisecond}
}

// HasSession checks whether a session exists. The trailing = makes the
// name an exact match; tmux otherwise matches by prefix, so "muster-a"
// would match when only "muster-ab" is running.
func (t *Tmux) HasSession(name string) bool {
	return util.ExecRun("", "tmux", "has-session", "-t", name+"=") == nil
}

// NewSession creates a detached session running the given command in
// workDir, with env vars set in the session environment before the
// command starts.
func (t *Tmux) NewSession(name, workDir, command string, env map[string]string) error {
	args := []string{"new-session", "-d", "-s", name, "-c", workDir}
	for k, v := range env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	if command != "" {
		args = append(args, command)
	}
	if err := util.ExecRun("", "tmux", args...); err != nil {
		return fmt.Errorf("creating session %s: %w", name, err)
	}
	return nil
}

// KillSession terminates a session. Killing a session that is already
// gone is not an error.
func (t *Tmux) KillSession(name string) error {
	err := util.ExecRun("", "tmux", "kill-session", "-t", name+"=")
	if err != nil && strings.Contains(err.Error(), "can't find session") {
		return nil
	}
	return err
}

// SendText pastes text into a session and presses Enter after a debounce.
// The pause is required for agents to register the paste before the Enter
// arrives; without it the Enter lands mid-paste and is swallowed.
func (t *Tmux) SendText(name, text string) error {
	if err := util.ExecRun("", "tmux", "send-keys", "-t", name+"=", "-l", text); err != nil {
		return fmt.Errorf("sending text to %s: %w", name, err)
	}
	time.Sleep(t.debounce)
	return t.SendRaw(name, "Enter")
}

// SendRaw sends a key name (Enter, C-c, Escape, ...) to a session.
func (t *Tmux) SendRaw(name, key string) error {
	if err := util.ExecRun("", "tmux", "send-keys", "-t", name+"=", key); err != nil {
		return fmt.Errorf("sending %s to %s: %w", key, name, err)
	}
	return nil
}

// SendInterrupt sends Ctrl-C to a session.
func (t *Tmux) SendInterrupt(name string) error {
	return t.SendRaw(name, "C-c")
}

// CapturePane returns the visible contents of a session's active pane.
func (t *Tmux) CapturePane(name string) (string, error) {
	return util.ExecWithOutput("", "tmux", "capture-pane", "-t", name+"=", "-p")
}

// ListSessions returns all session names. No tmux server running means
// no sessions, not an error.
func (t *Tmux) ListSessions() ([]string, error) {
	out, err := util.ExecWithOutput("", "tmux", "list-sessions", "-F", "#{session_name}")
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "no server running") || strings.Contains(msg, "No such file or directory") {
			return nil, nil
		}
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// SetEnvironment sets a variable in a session's environment for panes
// spawned afterward.
func (t *Tmux) SetEnvironment(name, key, value string) error {
	return util.ExecRun("", "tmux", "set-environment", "-t", name+"=", key, value)
}
