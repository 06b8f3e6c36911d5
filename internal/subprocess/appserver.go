// Package subprocess provides the subprocess transport for the codex app
// server.
//
// This package implements the Transport interface by spawning `codex
// app-server` as a child process and communicating via newline-delimited
// JSON over stdin/stdout. The child's stderr is passed through untouched
// for diagnostics. It handles process lifecycle management, line framing,
// and graceful termination.
package subprocess

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/agentwire/codex-sdk-go/internal/cli"
	"github.com/agentwire/codex-sdk-go/internal/config"
	"github.com/agentwire/codex-sdk-go/internal/errors"
	"github.com/agentwire/codex-sdk-go/internal/rpc"
)

const (
	// maxScanTokenSize is the maximum buffer size for reading output lines.
	maxScanTokenSize = 1024 * 1024 // 1MB

	// terminateGracePeriod is how long Close waits after SIGTERM before
	// escalating to SIGKILL.
	terminateGracePeriod = 250 * time.Millisecond
)

// AppServerTransport implements Transport by spawning a codex app server
// subprocess.
type AppServerTransport struct {
	log       *slog.Logger
	options   *config.Options
	codexPath string
	args      []string
	env       []string
	cwd       string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	mu            sync.Mutex // Protects stdin writes and lifecycle flags
	closing       bool
	stdinClosed   bool
	readerStarted bool
	exitErr       *errors.ProcessError

	readerOnce sync.Once
	readerDone chan struct{}
	waitDone   chan struct{}
}

// Compile-time verification that AppServerTransport implements Transport.
var _ config.Transport = (*AppServerTransport)(nil)

// NewAppServerTransport creates a transport that will spawn the codex app
// server on Start. Binary discovery is deferred to Start.
func NewAppServerTransport(log *slog.Logger, options *config.Options) *AppServerTransport {
	return &AppServerTransport{
		log:        log.With("component", "app_server_transport"),
		options:    options,
		readerDone: make(chan struct{}),
		waitDone:   make(chan struct{}),
	}
}

// Start spawns the app server subprocess.
//
// This discovers the codex binary, builds the command, and spawns the
// process with a writable stdin pipe, a readable stdout pipe, and stderr
// inherited from the parent.
//
// Returns CodexNotFoundError if the binary cannot be located, or
// ConnectionError if the process fails to start.
func (t *AppServerTransport) Start(_ context.Context) error {
	t.log.Info("Starting codex app server subprocess")

	discoverer := cli.NewDiscoverer(&cli.Config{
		CodexPath: t.options.CodexPath,
		Logger:    t.log,
	})

	codexPath, err := discoverer.Discover()
	if err != nil {
		return fmt.Errorf("discover codex: %w", err)
	}

	t.codexPath = codexPath
	t.args = cli.BuildArgs(t.options)
	t.env = cli.BuildEnvironment(t.options)

	t.cwd = t.options.Cwd
	if t.cwd == "" {
		t.cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	//nolint:gosec // G204: subprocess launching with a discovered binary path is the point
	cmd := exec.Command(t.codexPath, t.args...)
	cmd.Dir = t.cwd
	cmd.Env = t.env
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	if err := cmd.Start(); err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.cmd = cmd
	t.log.Info("Codex app server started", "pid", cmd.Process.Pid)

	// Observe process exit. Waits for the reader to drain stdout first so
	// Wait does not discard buffered output. Exit is logged only; it does
	// not resolve or fail in-flight requests or turns.
	go t.waitForExit()

	return nil
}

// waitForExit waits for the reader to finish, reaps the process, and logs
// the outcome.
func (t *AppServerTransport) waitForExit() {
	defer close(t.waitDone)

	<-t.readerDone

	err := t.cmd.Wait()

	t.mu.Lock()
	closing := t.closing
	t.mu.Unlock()

	switch {
	case err == nil:
		t.log.Info("Codex app server exited cleanly")
	case closing:
		t.log.Debug("Codex app server terminated during shutdown")
	default:
		exitCode := 0
		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		}

		// Later sends report the exit instead of a bare pipe error.
		t.mu.Lock()
		t.exitErr = &errors.ProcessError{ExitCode: exitCode, Err: err}
		t.mu.Unlock()

		t.log.Error("Codex app server exited abnormally", "exit_code", exitCode, "error", err)
	}
}

// ReadMessages reads newline-delimited JSON messages from the subprocess
// stdout.
//
// Blank lines are skipped. Lines that fail to parse as JSON are dropped at
// debug level and reading continues; this tolerance is deliberate since
// diagnostics go to the separate stderr stream. Both channels are closed
// when the stream ends.
func (t *AppServerTransport) ReadMessages(
	ctx context.Context,
) (<-chan *rpc.Message, <-chan error) {
	messages := make(chan *rpc.Message)
	errs := make(chan error, 1)

	t.mu.Lock()
	t.readerStarted = true
	t.mu.Unlock()

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.readerOnce.Do(func() { close(t.readerDone) })
		defer t.log.Debug("ReadMessages goroutine stopped")

		scanner := bufio.NewScanner(t.stdout)
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			msg, err := rpc.Decode(line)
			if err != nil {
				t.log.Debug("Dropping unparseable line", "error", err, "line", string(line))

				continue
			}

			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			t.mu.Lock()
			closing := t.closing
			t.mu.Unlock()

			if !closing {
				t.log.Error("Scanner error while reading app server output", "error", err)

				errs <- fmt.Errorf("scanner error: %w", err)
			}
		}
	}()

	return messages, errs
}

// SendMessage writes one message as a single newline-terminated JSON line.
//
// The stdin mutex guarantees writes never interleave partial JSON across
// two logical messages.
func (t *AppServerTransport) SendMessage(ctx context.Context, msg *rpc.Message) error {
	data, err := rpc.Encode(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrTransportNotConnected
	}

	if t.exitErr != nil {
		return t.exitErr
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := t.stdin.Write(data); err != nil {
		return fmt.Errorf("write to stdin: %w", err)
	}

	return nil
}

// IsReady checks if the transport is ready for communication.
func (t *AppServerTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil && !t.stdinClosed && t.exitErr == nil
}

// Close terminates the app server process.
//
// Termination is graceful first: SIGTERM, a short grace period, then
// SIGKILL if the process is still alive. Safe to call multiple times or on
// an already-terminated process.
func (t *AppServerTransport) Close() error {
	t.mu.Lock()

	if t.closing {
		t.mu.Unlock()

		return nil
	}

	t.closing = true
	t.stdinClosed = true

	if t.stdin != nil {
		_ = t.stdin.Close()
	}

	cmd := t.cmd
	readerStarted := t.readerStarted
	t.mu.Unlock()

	// If no reader was ever attached, unblock the exit observer ourselves.
	if !readerStarted {
		t.readerOnce.Do(func() { close(t.readerDone) })
	}

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	t.log.Debug("Terminating codex app server", "pid", cmd.Process.Pid)

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.log.Debug("SIGTERM failed, process may have already exited", "error", err)
	}

	select {
	case <-t.waitDone:
		return nil
	case <-time.After(terminateGracePeriod):
	}

	t.log.Debug("Grace period elapsed, killing codex app server")

	if err := cmd.Process.Kill(); err != nil {
		t.log.Debug("Kill failed, process may have already exited", "error", err)
	}

	select {
	case <-t.waitDone:
	case <-time.After(time.Second):
		t.log.Warn("Timed out waiting for codex app server to be reaped")
	}

	return nil
}
