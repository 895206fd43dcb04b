// Package framework runs the ssession binary for integration tests.
package framework

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Process manages the lifecycle of one long-running ssession command.
type Process struct {
	dir     string
	name    string
	args    []string
	logFile string

	cmd           *exec.Cmd
	started       bool
	mu            sync.Mutex
	output        *logWriter
	logFileHandle *os.File
	done          chan struct{}
	ctx           context.Context
	cancelFunc    context.CancelFunc
}

// ProcessConfig holds configuration for a process.
type ProcessConfig struct {
	// Dir is the path to the ssession main package (e.g., "cmd/ssession").
	Dir string

	// Args are the command-line arguments, starting with the subcommand.
	Args []string

	// LogFile is an optional path to write output to (in addition to test output).
	LogFile string
}

// NewProcess creates a new process manager.
func NewProcess(config ProcessConfig) *Process {
	ctx, cancel := context.WithCancel(context.Background())

	name := "ssession"
	if len(config.Args) > 0 {
		name = config.Args[0]
	}
	return &Process{
		dir:        config.Dir,
		name:       name,
		args:       config.Args,
		logFile:    config.LogFile,
		done:       make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the command using `go run`.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("process already started")
	}

	p.cmd = exec.CommandContext(p.ctx, "go", append([]string{"run", "."}, p.args...)...)
	absPath, err := filepath.Abs(p.dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	p.cmd.Dir = absPath

	// Enable full PION logging for debugging
	p.cmd.Env = append(os.Environ(),
		"PION_LOG_DEBUG=all",
		"PION_LOG_INFO=all",
		"PION_LOG_WARN=all",
		"PION_LOG_ERROR=all",
	)

	if p.logFile != "" {
		logFile, err := os.OpenFile(p.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		p.logFileHandle = logFile
	}

	p.output = newLogWriter(fmt.Sprintf("[%s]", p.name), p.logFileHandle)
	p.cmd.Stdout = p.output
	p.cmd.Stderr = p.output

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.name, err)
	}
	p.started = true

	go func() {
		defer close(p.done)
		p.cmd.Wait()
	}()
	return nil
}

// WaitForOutput blocks until the process has printed substr or the timeout
// expires.
func (p *Process) WaitForOutput(substr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(p.Output(), substr) {
			return nil
		}
		select {
		case <-p.done:
			if strings.Contains(p.Output(), substr) {
				return nil
			}
			return fmt.Errorf("%s exited before printing %q", p.name, substr)
		case <-time.After(50 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s did not print %q within %v", p.name, substr, timeout)
}

// Output returns everything the process has printed so far.
func (p *Process) Output() string {
	if p.output == nil {
		return ""
	}
	return p.output.String()
}

// Stop gracefully stops the process.
func (p *Process) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.cancelFunc()

	if p.cmd != nil && p.cmd.Process != nil {
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			p.cmd.Process.Kill()
		}
	}

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		if p.cmd != nil && p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
	}

	if p.logFileHandle != nil {
		p.logFileHandle.Close()
		p.logFileHandle = nil
	}
	p.started = false
	return nil
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Run executes a short-lived ssession command and returns its combined output.
func Run(dir string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", append([]string{"run", "."}, args...)...)
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	cmd.Dir = absPath

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("ssession %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// logWriter echoes each write with a prefix and keeps a copy of the output.
type logWriter struct {
	prefix  string
	logFile *os.File
	mu      sync.Mutex
	buf     bytes.Buffer
}

func newLogWriter(prefix string, logFile *os.File) *logWriter {
	return &logWriter{
		prefix:  prefix,
		logFile: logFile,
	}
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Printf("%s %s", w.prefix, string(p))
	if w.logFile != nil {
		fmt.Fprintf(w.logFile, "%s %s", w.prefix, string(p))
	}
	return w.buf.Write(p)
}

func (w *logWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
