package toolkit

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/loomkit/loom/pkg/core"
	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

// IO bundles the stream backed tools. Writes share one mutex so concurrent
// branches do not interleave mid line.
type IO struct {
	mu  sync.Mutex
	out io.Writer
	in  *bufio.Reader
}

// NewIO creates an IO toolset over explicit streams. A nil writer discards
// output; a nil reader reads as immediately exhausted.
func NewIO(out io.Writer, in io.Reader) *IO {
	if out == nil {
		out = io.Discard
	}
	if in == nil {
		in = strings.NewReader("")
	}
	return &IO{out: out, in: bufio.NewReader(in)}
}

// StdIO creates an IO toolset over the process streams.
func StdIO() *IO {
	return NewIO(os.Stdout, os.Stdin)
}

// Toolset returns print, read-line and write-bytes bound to the streams.
func (s *IO) Toolset() core.Toolset {
	return core.NewToolset("io", map[string]core.Tool{
		"print": core.Describe(core.ToolFunc(s.print), core.Info{
			Description: "Write the input to the output stream followed by a newline, then echo the input back. Strings print raw; other values print as JSON.",
		}),
		"read-line": core.Describe(core.ToolFunc(s.readLine), core.Info{
			Description: "Read one line from the input stream. Returns {\"line\": string, \"eof\": bool}.",
		}),
		"write-bytes": core.Describe(core.ToolFunc(s.writeBytes), core.Info{
			Description: "Write the input string to the output stream verbatim, without a trailing newline.",
		}),
	})
}

func (s *IO) print(_ context.Context, input any, _ *core.Env) (any, error) {
	input = value.Normalize(input)
	text, ok := input.(string)
	if !ok {
		encoded, err := value.Encode(input)
		if err != nil {
			return nil, lerrors.New(lerrors.KindInternal, "encode print output", err)
		}
		text = string(encoded)
	}
	s.mu.Lock()
	_, err := io.WriteString(s.out, text+"\n")
	s.mu.Unlock()
	if err != nil {
		return nil, lerrors.New(lerrors.KindToolFailure, "write to output stream", err)
	}
	return input, nil
}

func (s *IO) readLine(_ context.Context, _ any, _ *core.Env) (any, error) {
	s.mu.Lock()
	line, err := s.in.ReadString('\n')
	s.mu.Unlock()
	eof := false
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, lerrors.New(lerrors.KindToolFailure, "read from input stream", err)
		}
		eof = true
	}
	line = strings.TrimRight(line, "\r\n")
	return map[string]any{"line": line, "eof": eof}, nil
}

func (s *IO) writeBytes(_ context.Context, input any, _ *core.Env) (any, error) {
	text, ok := value.Normalize(input).(string)
	if !ok {
		return nil, lerrors.New(lerrors.KindInvalidInput, "write-bytes expects a string", nil)
	}
	s.mu.Lock()
	_, err := io.WriteString(s.out, text)
	s.mu.Unlock()
	if err != nil {
		return nil, lerrors.New(lerrors.KindToolFailure, "write to output stream", err)
	}
	return nil, nil
}
