package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// StdioConfig configures a stdio MCP transport that runs the tool host
// as a subprocess and speaks newline-delimited JSON-RPC over its
// stdin/stdout.
type StdioConfig struct {
	// Command is the tool host executable.
	Command string

	// Args are command-line arguments passed to the executable.
	Args []string

	// Env are extra environment variables ("KEY=VALUE"), appended to
	// the current process environment.
	Env []string

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// StdioTransport exchanges newline-delimited JSON-RPC with a tool host
// subprocess. Calls are serialized under the mutex: a request is always
// answered before the next one is written, so the host owes exactly one
// reply line per request and responses are verified by id, never
// searched for.
type StdioTransport struct {
	config StdioConfig
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
}

// NewStdioTransport creates a stdio transport for the given config.
// The subprocess is not started until the first Send.
func NewStdioTransport(cfg StdioConfig) *StdioTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioTransport{
		config: cfg,
		logger: logger,
	}
}

// Send writes one request line and, unless the request is a
// notification, reads the single reply line the host owes. Any wire
// fault kills the subprocess; the next call starts a fresh one.
func (t *StdioTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureStarted(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		t.cleanup()
		return nil, fmt.Errorf("write to tool host stdin: %w", err)
	}

	if req.IsNotification() {
		return nil, nil
	}

	line, err := t.readLine(ctx)
	if err != nil {
		// A half-read stream cannot be reused.
		t.cleanup()
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		t.cleanup()
		return nil, fmt.Errorf("malformed tool host reply: %w", err)
	}
	if resp.ID != *req.ID {
		t.cleanup()
		return nil, fmt.Errorf("tool host answered id %d, expected %d", resp.ID, *req.ID)
	}

	return &resp, nil
}

// readLine reads one line from the subprocess. The read runs in a
// goroutine so a cancelled context can interrupt it.
func (t *StdioTransport) readLine(ctx context.Context) ([]byte, error) {
	type read struct {
		line []byte
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		line, err := t.reader.ReadBytes('\n')
		ch <- read{line, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("read from tool host stdout: %w", r.err)
		}
		return r.line, nil
	}
}

// ensureStarted launches the subprocess if it is not already running.
// The subprocess outlives individual request contexts; only Close or a
// wire fault terminates it. Caller must hold t.mu.
func (t *StdioTransport) ensureStarted() error {
	if t.cmd != nil && t.cmd.ProcessState == nil {
		return nil
	}

	cmd := exec.Command(t.config.Command, t.config.Args...)
	cmd.Env = append(os.Environ(), t.config.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stderr.Close()
		stdout.Close()
		stdin.Close()
		return fmt.Errorf("start tool host %s: %w", t.config.Command, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.reader = bufio.NewReaderSize(stdout, 1<<20)

	// Stderr carries the host's logs, not protocol frames.
	go t.relayStderr(stderr)

	t.logger.Info("tool host process started",
		"command", t.config.Command,
		"pid", cmd.Process.Pid,
	)
	return nil
}

// relayStderr forwards the subprocess's log lines to our logger.
func (t *StdioTransport) relayStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		t.logger.Debug("tool host stderr", "line", sc.Text())
	}
}

// cleanup force-kills the subprocess after a wire fault. Caller must
// hold t.mu.
func (t *StdioTransport) cleanup() {
	if t.cmd == nil {
		return
	}
	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		_ = t.cmd.Wait()
	}
	t.cmd, t.stdin, t.reader = nil, nil, nil
}

// Close shuts the subprocess down: closing stdin asks it to exit, and
// a kill follows if it has not done so shortly after.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.logger.Info("stopping tool host process", "pid", t.cmd.Process.Pid)

	if t.stdin != nil {
		t.stdin.Close()
	}

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.logger.Warn("tool host did not exit, killing", "pid", t.cmd.Process.Pid)
		_ = t.cmd.Process.Kill()
		<-done
	}

	t.cmd, t.stdin, t.reader = nil, nil, nil
	return err
}
