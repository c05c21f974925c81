package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/posebridge/internal/infrastructure/config"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// maxOutputLine caps a single captured stdout/stderr line.
const maxOutputLine = 64 * 1024

// ErrAlreadyRunning is returned by Start when the process is already up.
var ErrAlreadyRunning = errors.New("process: already running")

// Config holds configuration for a managed subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	WorkDir string

	// RestartOnFailure enables automatic restart when the process exits unexpectedly.
	RestartOnFailure bool

	// RestartDelay is the time to wait before restarting after a failure.
	RestartDelay time.Duration

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// OnExit is called after every unexpected exit, before any restart.
	OnExit func(err error)
}

// FromLaunchConfig builds a Config for the tracking service from the
// tracking.launch section of the bridge configuration.
func FromLaunchConfig(cfg config.LaunchConfig) Config {
	return Config{
		Name:               "tracking-service",
		Binary:             cfg.Binary,
		Args:               cfg.Args,
		Env:                cfg.Env,
		WorkDir:            cfg.WorkingDir,
		RestartOnFailure:   cfg.RestartOnFailure,
		RestartDelay:       time.Duration(cfg.RestartDelaySeconds) * time.Second,
		MaxRestartAttempts: cfg.MaxRestartAttempts,
		GracefulTimeout:    time.Duration(cfg.StopTimeoutSeconds) * time.Second,
	}
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager manages the lifecycle of a subprocess.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Start may be called again after the process stopped or failed.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool

	// done is closed when the monitor goroutine exits.
	done chan struct{}
}

// NewManager creates a new process manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the subprocess and begins monitoring it.
//
// ctx bounds the whole supervised lifetime: cancelling it kills the process
// and stops restarts. Use Stop for a graceful shutdown.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.restartCount = 0
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	if err := m.startProcess(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		m.mu.Unlock()
		close(done)
		return err
	}

	go m.monitor(ctx, done)

	return nil
}

func (m *Manager) startProcess(ctx context.Context) error {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // Binary comes from operator config

	// Own process group so Stop can signal the service and its children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	go m.captureOutput("stdout", stdout)
	go m.captureOutput("stderr", stderr)

	m.logger.Info("process started",
		"name", m.config.Name,
		"pid", cmd.Process.Pid,
	)

	return nil
}

// captureOutput logs the stream line by line until it closes.
func (m *Manager) captureOutput(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxOutputLine)
	for scanner.Scan() {
		m.logger.Debug("process output",
			"name", m.config.Name,
			"stream", stream,
			"line", scanner.Text(),
		)
	}
	if err := scanner.Err(); err != nil {
		m.logger.Debug("output stream closed",
			"name", m.config.Name,
			"stream", stream,
			"error", err,
		)
	}
}

// monitor waits on the process and applies the restart policy.
func (m *Manager) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		m.mu.RLock()
		cmd := m.cmd
		m.mu.RUnlock()

		err := cmd.Wait()

		m.mu.Lock()
		stopRequested := m.stopRequested
		if stopRequested {
			m.status = StatusStopped
		} else {
			m.status = StatusFailed
			m.lastError = err
		}
		m.mu.Unlock()

		if stopRequested {
			m.logger.Info("process stopped as requested", "name", m.config.Name)
			return
		}

		m.logger.Warn("process exited unexpectedly",
			"name", m.config.Name,
			"error", err,
		)
		if m.config.OnExit != nil {
			m.config.OnExit(err)
		}

		if !m.nextRestart(ctx) {
			return
		}

		if err := m.startProcess(ctx); err != nil {
			m.logger.Error("failed to restart process",
				"name", m.config.Name,
				"error", err,
			)
			m.mu.Lock()
			m.lastError = err
			m.mu.Unlock()
			return
		}
	}
}

// nextRestart reports whether a restart is due and waits out the delay.
func (m *Manager) nextRestart(ctx context.Context) bool {
	if !m.config.RestartOnFailure {
		return false
	}

	m.mu.Lock()
	if m.config.MaxRestartAttempts > 0 && m.restartCount >= m.config.MaxRestartAttempts {
		m.mu.Unlock()
		m.logger.Error("max restart attempts reached",
			"name", m.config.Name,
			"attempts", m.config.MaxRestartAttempts,
		)
		return false
	}
	m.restartCount++
	attempt := m.restartCount
	m.mu.Unlock()

	m.logger.Info("restarting process",
		"name", m.config.Name,
		"attempt", attempt,
		"delay", m.config.RestartDelay,
	)

	timer := time.NewTimer(m.config.RestartDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.stopRequested
}

// Stop gracefully stops the subprocess.
// It sends SIGTERM to the process group, then SIGKILL after GracefulTimeout.
func (m *Manager) Stop() error {
	m.mu.Lock()
	m.stopRequested = true
	running := m.status == StatusRunning
	cmd := m.cmd
	done := m.done
	m.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("failed to send SIGTERM to process group", "name", m.config.Name, "error", err)
	}

	timer := time.NewTimer(m.config.GracefulTimeout)
	defer timer.Stop()
	select {
	case <-done:
		m.logger.Info("process stopped gracefully", "name", m.config.Name)
		return nil
	case <-timer.C:
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
	}

	<-done
	m.logger.Info("process killed", "name", m.config.Name)

	return nil
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the last error that caused the process to exit.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// RestartCount returns the number of restarts since the last Start.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restartCount
}

// Stats returns statistics about the managed process.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RestartCount: m.restartCount,
	}
	if m.cmd != nil && m.cmd.Process != nil && m.status == StatusRunning {
		stats.PID = m.cmd.Process.Pid
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}

	return stats
}
