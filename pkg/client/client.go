// Package client supervises a browserd worker process and talks to it over
// its stdio protocol.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/entrhq/browserd/pkg/logging"
	"github.com/entrhq/browserd/pkg/protocol"
)

// Defaults used by Start and Close.
const (
	DefaultStartTimeout = 120 * time.Second
	DefaultCloseTimeout = 5 * time.Second
	DefaultExitTimeout  = 3 * time.Second
	StderrTailLines     = 200
)

var (
	// ErrExited is reported for requests still pending when the worker exits.
	ErrExited = errors.New("Playwright persistent process exited") //nolint:stylecheck
	// ErrNotRunning is returned when a request is made after the worker exited.
	ErrNotRunning = errors.New("Playwright persistent process is not running") //nolint:stylecheck
)

// Options configure the worker process.
type Options struct {
	// Command is the worker executable followed by any leading arguments.
	// Defaults to "browserd".
	Command []string
	// SkillDir is passed as --skill-dir and used as the process directory.
	SkillDir string
	// Env is appended to the current process environment.
	Env []string
	// StartTimeout bounds the initial ping. The first start may install
	// browsers, so the default is generous.
	StartTimeout time.Duration
}

// Client owns one worker process.
type Client struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *protocol.Response
	exited  bool

	tail       *lineTail
	readers    sync.WaitGroup
	stderrDone chan struct{}
	done       chan struct{}
	waitErr    error

	logger *logging.Logger
}

// Start launches the worker and waits for it to answer a ping.
func Start(ctx context.Context, opts Options) (*Client, error) {
	command := opts.Command
	if len(command) == 0 {
		command = []string{"browserd"}
	}
	args := append(append([]string{}, command[1:]...), "--skill-dir", opts.SkillDir)

	cmd := exec.Command(command[0], args...) //nolint:gosec
	cmd.Dir = opts.SkillDir
	cmd.Env = append(os.Environ(), opts.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	c := &Client{
		cmd:        cmd,
		stdin:      stdin,
		pending:    make(map[string]chan *protocol.Response),
		tail:       newLineTail(StderrTailLines),
		stderrDone: make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logging.NewLogger("client"),
	}

	c.readers.Add(2)
	go c.readStderr(stderr)
	go c.readStdout(stdout)
	go c.wait()

	timeout := opts.StartTimeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.Request(pingCtx, protocol.MethodPing, nil)
	if err != nil {
		c.abandon()
		return nil, fmt.Errorf("worker did not start: %w", err)
	}
	if !resp.OK {
		c.abandon()
		return nil, fmt.Errorf("worker did not start: %s", c.describe(resp))
	}

	c.logger.Infof("worker started for %s (pid %d)", opts.SkillDir, cmd.Process.Pid)
	return c, nil
}

// Request sends one request and waits for its response. If ctx expires
// first the worker is killed, since its state is no longer known.
func (c *Client) Request(ctx context.Context, method string, params any) (*protocol.Response, error) {
	id := uuid.NewString()
	ch := make(chan *protocol.Response, 1)

	c.mu.Lock()
	if c.exited {
		c.mu.Unlock()
		return nil, ErrNotRunning
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if params == nil {
		params = map[string]any{}
	}
	line, err := json.Marshal(map[string]any{"id": id, "method": method, "params": params})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	c.writeMu.Lock()
	_, err = c.stdin.Write(append(line, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to write to worker: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.logger.Warnf("%s request timed out, killing worker", method)
		c.kill()
		return nil, fmt.Errorf("%s request timed out: %w", method, ctx.Err())
	}
}

// Exec runs code in the worker.
func (c *Client) Exec(ctx context.Context, args []string, env map[string]*string) (*protocol.Response, error) {
	if args == nil {
		args = []string{}
	}
	if env == nil {
		env = map[string]*string{}
	}
	return c.Request(ctx, protocol.MethodExec, map[string]any{"args": args, "env": env})
}

// Close asks the worker to shut down and waits for it, killing it if it
// does not exit in time.
func (c *Client) Close(ctx context.Context) error {
	if c.Exited() {
		return nil
	}

	closeCtx, cancel := context.WithTimeout(ctx, DefaultCloseTimeout)
	if _, err := c.Request(closeCtx, protocol.MethodClose, nil); err != nil {
		c.logger.Debugf("close request failed: %v", err)
	}
	cancel()
	_ = c.stdin.Close()

	select {
	case <-c.done:
	case <-time.After(DefaultExitTimeout):
		c.kill()
		<-c.done
	}
	return nil
}

// Exited reports whether the worker process has ended.
func (c *Client) Exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed once the worker has exited and been reaped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// StderrTail returns the most recent diagnostic lines of the worker.
func (c *Client) StderrTail() []string {
	return c.tail.lines()
}

func (c *Client) readStdout(r io.Reader) {
	defer c.readers.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), protocol.MaxLineSize)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var resp protocol.Response
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			c.tail.add("[stdout] " + raw)
			continue
		}
		id := gjson.ParseBytes(resp.ID)
		if !id.Exists() || id.String() == "" {
			continue
		}

		c.mu.Lock()
		ch := c.pending[id.String()]
		c.mu.Unlock()
		if ch != nil {
			select {
			case ch <- &resp:
			default:
			}
		}
	}

	// Give the stderr reader a moment so the tail holds the final diagnostics.
	select {
	case <-c.stderrDone:
	case <-time.After(time.Second):
	}
	c.failPending()
}

func (c *Client) readStderr(r io.Reader) {
	defer c.readers.Done()
	defer close(c.stderrDone)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), protocol.MaxLineSize)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r\n"); line != "" {
			c.tail.add(line)
		}
	}
}

// failPending answers every outstanding request once stdout has closed.
func (c *Client) failPending() {
	c.mu.Lock()
	c.exited = true
	pending := c.pending
	c.pending = make(map[string]chan *protocol.Response)
	c.mu.Unlock()

	stderr := c.tail.lines()
	for id, ch := range pending {
		rawID, _ := json.Marshal(id)
		select {
		case ch <- &protocol.Response{ID: rawID, OK: false, Error: ErrExited.Error(), Stderr: stderr}:
		default:
		}
	}
}

func (c *Client) wait() {
	c.readers.Wait()
	c.waitErr = c.cmd.Wait()
	if c.waitErr != nil {
		c.logger.Debugf("worker exited: %v", c.waitErr)
	}
	close(c.done)
}

func (c *Client) kill() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

// abandon kills a worker that failed to start and waits until it is reaped.
func (c *Client) abandon() {
	c.kill()
	select {
	case <-c.done:
	case <-time.After(DefaultExitTimeout):
		c.logger.Warnf("worker did not exit after kill")
	}
}

// describe renders a failed response with the recent stderr lines.
func (c *Client) describe(resp *protocol.Response) string {
	var pieces []string
	if resp.Error != "" {
		pieces = append(pieces, resp.Error)
	}
	if len(resp.Stderr) > 0 {
		pieces = append(pieces, strings.Join(lastN(resp.Stderr, 50), "\n"))
	}
	if tail := c.tail.lines(); len(tail) > 0 {
		pieces = append(pieces, strings.Join(lastN(tail, 50), "\n"))
	}
	if msg := strings.TrimSpace(strings.Join(pieces, "\n")); msg != "" {
		return msg
	}
	return "Unknown Playwright session error"
}

// FormatOutput renders an exec response as text: stdout lines, then stderr
// after a separator, with the error message first when the exec failed.
func FormatOutput(resp *protocol.Response) string {
	var b strings.Builder
	b.WriteString(strings.Join(resp.Stdout, "\n"))
	if len(resp.Stderr) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n--- stderr ---\n")
		}
		b.WriteString(strings.Join(resp.Stderr, "\n"))
	}

	output := b.String()
	if !resp.OK && resp.Error != "" {
		if output == "" {
			return resp.Error
		}
		return resp.Error + "\n" + output
	}
	return output
}

func lastN(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// lineTail keeps the last max lines written to it.
type lineTail struct {
	mu    sync.Mutex
	max   int
	items []string
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, line)
	if len(t.items) > t.max {
		t.items = append([]string(nil), t.items[len(t.items)-t.max:]...)
	}
}

func (t *lineTail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.items...)
}
