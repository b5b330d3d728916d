package transport

import "os"

// Stdio wraps the process's own stdin/stdout as a single io.ReadWriter,
// the default transport (spec.md §5: "a byte stream... typically stdin/
// stdout"). Reads come from stdin, writes go to stdout; nothing else may
// ever write to stdout while this is in use, since the protocol channel
// and human-readable diagnostics cannot share a stream.
type Stdio struct{}

// NewStdio builds the stdio transport.
func NewStdio() Stdio { return Stdio{} }

func (Stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (Stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
