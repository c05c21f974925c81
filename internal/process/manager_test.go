package process

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/posebridge/internal/infrastructure/config"
)

type lineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) Debug(msg string, args ...any) {
	if msg != "process output" {
		return
	}
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "line" {
			l.mu.Lock()
			l.lines = append(l.lines, args[i+1].(string))
			l.mu.Unlock()
		}
	}
}
func (l *lineLogger) Info(string, ...any)  {}
func (l *lineLogger) Warn(string, ...any)  {}
func (l *lineLogger) Error(string, ...any) {}

func (l *lineLogger) has(line string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, got := range l.lines {
		if got == line {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func shell(script string) Config {
	return Config{
		Name:            "test-proc",
		Binary:          "/bin/sh",
		Args:            []string{"-c", script},
		RestartDelay:    10 * time.Millisecond,
		GracefulTimeout: 2 * time.Second,
	}
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{Name: "test-proc", Binary: "/usr/bin/test"})

	if m.config.RestartDelay != 5*time.Second {
		t.Errorf("RestartDelay = %v, want 5s", m.config.RestartDelay)
	}
	if m.config.GracefulTimeout != 10*time.Second {
		t.Errorf("GracefulTimeout = %v, want 10s", m.config.GracefulTimeout)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want stopped", m.Status())
	}
}

func TestFromLaunchConfig(t *testing.T) {
	cfg := FromLaunchConfig(config.LaunchConfig{
		Binary:              "/opt/psmove/PSMoveService",
		Args:                []string{"--headless"},
		Env:                 []string{"DISPLAY=:0"},
		WorkingDir:          "/opt/psmove",
		RestartOnFailure:    true,
		RestartDelaySeconds: 3,
		MaxRestartAttempts:  4,
		StopTimeoutSeconds:  7,
	})

	if cfg.Binary != "/opt/psmove/PSMoveService" || cfg.WorkDir != "/opt/psmove" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Args) != 1 || len(cfg.Env) != 1 {
		t.Errorf("Args = %v, Env = %v", cfg.Args, cfg.Env)
	}
	if !cfg.RestartOnFailure || cfg.MaxRestartAttempts != 4 {
		t.Errorf("restart policy = %v/%d", cfg.RestartOnFailure, cfg.MaxRestartAttempts)
	}
	if cfg.RestartDelay != 3*time.Second || cfg.GracefulTimeout != 7*time.Second {
		t.Errorf("durations = %v/%v", cfg.RestartDelay, cfg.GracefulTimeout)
	}
}

func TestStart_MissingBinary(t *testing.T) {
	m := NewManager(Config{Name: "missing", Binary: "/nonexistent/binary"})

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("Start() expected error for missing binary")
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want failed", m.Status())
	}
	if m.LastError() == nil {
		t.Error("LastError() = nil after failed start")
	}
	// Stop after a failed start must not block.
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestStartStop(t *testing.T) {
	m := NewManager(shell("sleep 30"))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	if m.Stats().PID == 0 {
		t.Error("Stats().PID = 0 while running")
	}

	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want stopped", m.Status())
	}
	if m.Stats().PID != 0 {
		t.Error("Stats().PID set after Stop")
	}
}

func TestStop_KillsAfterTimeout(t *testing.T) {
	cfg := shell(`trap "" TERM; sleep 30`)
	cfg.GracefulTimeout = 100 * time.Millisecond
	m := NewManager(cfg)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// Give the shell time to install the trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("Stop() took %v", time.Since(start))
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want stopped", m.Status())
	}
}

func TestUnexpectedExit_NoRestart(t *testing.T) {
	var exits atomic.Int32
	cfg := shell("exit 3")
	cfg.OnExit = func(error) { exits.Add(1) }
	m := NewManager(cfg)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "failed status", func() bool { return m.Status() == StatusFailed })
	waitFor(t, "exit callback", func() bool { return exits.Load() == 1 })
	if m.LastError() == nil {
		t.Error("LastError() = nil after non-zero exit")
	}
	if m.RestartCount() != 0 {
		t.Errorf("RestartCount() = %d, want 0", m.RestartCount())
	}
}

func TestUnexpectedExit_RestartCap(t *testing.T) {
	var exits atomic.Int32
	cfg := shell("exit 1")
	cfg.RestartOnFailure = true
	cfg.MaxRestartAttempts = 2
	cfg.OnExit = func(error) { exits.Add(1) }
	m := NewManager(cfg)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "three exits", func() bool { return exits.Load() == 3 })
	waitFor(t, "failed status", func() bool { return m.Status() == StatusFailed })

	// Give a fourth run the chance to appear if the cap were broken.
	time.Sleep(100 * time.Millisecond)
	if got := exits.Load(); got != 3 {
		t.Errorf("exits = %d, want 3 (one start, two restarts)", got)
	}
	if m.RestartCount() != 2 {
		t.Errorf("RestartCount() = %d, want 2", m.RestartCount())
	}
}

func TestContextCancel_StopsRestarts(t *testing.T) {
	var exits atomic.Int32
	cfg := shell("exit 1")
	cfg.RestartOnFailure = true
	cfg.RestartDelay = time.Hour
	cfg.OnExit = func(error) { exits.Add(1) }
	m := NewManager(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "first exit", func() bool { return exits.Load() == 1 })
	cancel()

	time.Sleep(50 * time.Millisecond)
	if exits.Load() != 1 {
		t.Errorf("exits = %d after cancel, want 1", exits.Load())
	}
}

func TestCaptureOutput(t *testing.T) {
	logger := &lineLogger{}
	m := NewManager(shell("echo service ready; echo oops >&2"))
	m.SetLogger(logger)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "stdout line", func() bool { return logger.has("service ready") })
	waitFor(t, "stderr line", func() bool { return logger.has("oops") })
}

func TestCaptureOutput_LongLine(t *testing.T) {
	logger := &lineLogger{}
	m := NewManager(Config{Name: "long"})
	m.SetLogger(logger)

	m.captureOutput("stdout", strings.NewReader(strings.Repeat("a", 100)+"\nnext\n"))

	if !logger.has("next") {
		t.Error("line after a long line was not captured")
	}
}
