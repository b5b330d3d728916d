package evaluator

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// capture redirects the process-global os.Stdout/os.Stderr variables to
// in-memory buffers for the duration of one evaluation, per spec.md
// §4.5's requirement that a session's stdout/stderr be captured rather
// than inherited by the server process. It is scoped acquisition with
// guaranteed release: start() swaps os.Stdout/os.Stderr, and stop()
// restores them unconditionally, even when the wrapped evaluation
// panics, since callers both call it directly to collect the captured
// text and defer it immediately after startCapture as a panic backstop.
//
// Builtins in the evaluated language (puts, warn) write directly to the
// capture's buffers rather than through the os.Stdout/os.Stderr pipes;
// the pipe redirection exists so that anything the host runtime or a
// future native builtin writes through os.Stdout/os.Stderr is captured
// too. The process's file descriptors 1 and 2 themselves are not
// redirected, so writes made directly to them are not captured.
type capture struct {
	mu sync.Mutex

	origStdout *os.File
	origStderr *os.File

	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File

	stdoutBuf bytes.Buffer
	stderrBuf bytes.Buffer

	wg sync.WaitGroup

	stopped        bool
	outStr, errStr string
}

// startCapture redirects os.Stdout and os.Stderr to pipes drained into
// in-memory buffers. The returned capture must have stop() called on it
// exactly once, typically via defer, to restore the originals.
func startCapture() (*capture, error) {
	c := &capture{origStdout: os.Stdout, origStderr: os.Stderr}

	var err error
	c.stdoutR, c.stdoutW, err = os.Pipe()
	if err != nil {
		return nil, err
	}
	c.stderrR, c.stderrW, err = os.Pipe()
	if err != nil {
		c.stdoutR.Close()
		c.stdoutW.Close()
		return nil, err
	}

	os.Stdout = c.stdoutW
	os.Stderr = c.stderrW

	c.wg.Add(2)
	go c.drain(c.stdoutR, &c.stdoutBuf)
	go c.drain(c.stderrR, &c.stderrBuf)

	return c, nil
}

func (c *capture) drain(r *os.File, buf *bytes.Buffer) {
	defer c.wg.Done()
	_, _ = io.Copy(lockedWriter{mu: &c.mu, buf: buf}, r)
}

// stop restores the original os.Stdout/os.Stderr and returns everything
// written during the capture window. Idempotent: the caller calls it
// directly to collect the captured text, and may additionally defer it
// right after startCapture to guarantee os.Stdout/os.Stderr get
// restored even if the wrapped evaluation panics instead of returning;
// the second call is a no-op that replays the first call's result.
func (c *capture) stop() (stdout, stderr string) {
	c.mu.Lock()
	if c.stopped {
		defer c.mu.Unlock()
		return c.outStr, c.errStr
	}
	c.stopped = true
	c.mu.Unlock()

	os.Stdout = c.origStdout
	os.Stderr = c.origStderr

	c.stdoutW.Close()
	c.stderrW.Close()
	c.wg.Wait()
	c.stdoutR.Close()
	c.stderrR.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.outStr, c.errStr = c.stdoutBuf.String(), c.stderrBuf.String()
	return c.outStr, c.errStr
}

// writeStdout/writeStderr let the evaluated language's builtins append
// directly to the captured buffers without a round trip through the
// real file descriptors.
func (c *capture) writeStdout(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stdoutBuf.WriteString(s)
}

func (c *capture) writeStderr(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stderrBuf.WriteString(s)
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}
