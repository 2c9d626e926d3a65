// Package extract isolates the single JSON object embedded in a model's
// streamed text output. Models are instructed to reply with bare JSON but in
// practice prepend commentary, wrap the object in markdown fences, or emit a
// reasoning monologue first; everything before the first '{' and after the
// object closes is discarded.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed reports that no parsable JSON object was found in the stream.
var ErrMalformed = errors.New("no parsable JSON object in response")

// MaxDiagnosticBytes bounds how much of the raw buffer a malformed-stream
// error carries for debugging.
const MaxDiagnosticBytes = 256

// Stream is the minimal consumer-side view of a streamed completion: Recv
// returns the next text fragment, or io.EOF when the transport signals
// completion.
type Stream interface {
	Recv() (string, error)
}

// scanner tracks brace depth across fragment boundaries. Braces inside JSON
// string literals do not count, so the scanner also tracks string and escape
// state.
type scanner struct {
	started  bool
	depth    int
	inString bool
	escaped  bool
	buf      strings.Builder
}

// feed consumes one fragment and reports whether the object closed inside it.
func (s *scanner) feed(fragment string) bool {
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]

		if !s.started {
			if c != '{' {
				continue
			}
			s.started = true
		}

		s.buf.WriteByte(c)

		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			continue
		}

		switch c {
		case '"':
			s.inString = true
		case '{':
			s.depth++
		case '}':
			s.depth--
			if s.depth == 0 {
				return true
			}
		}
	}
	return false
}

// Object consumes fragments from the stream until the first top-level JSON
// object closes, then parses it. Trailing fragments are drained and ignored.
// A stream that ends before the object closes, or a closed buffer that is
// not valid JSON, yields ErrMalformed. Context cancellation short-circuits
// between fragments rather than waiting for stream end.
func Object(ctx context.Context, stream Stream) (map[string]any, error) {
	var sc scanner

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fragment, err := stream.Recv()
		if err == io.EOF {
			return nil, malformed(sc.buf.String())
		}
		if err != nil {
			return nil, err
		}

		if sc.feed(fragment) {
			break
		}
	}

	return parse(sc.buf.String())
}

func parse(buf string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(buf), &obj); err != nil {
		return nil, malformed(buf)
	}
	return obj, nil
}

func malformed(buf string) error {
	prefix := buf
	if len(prefix) > MaxDiagnosticBytes {
		prefix = prefix[:MaxDiagnosticBytes]
	}
	if prefix == "" {
		return fmt.Errorf("%w: no '{' seen", ErrMalformed)
	}
	return fmt.Errorf("%w: buffer prefix %q", ErrMalformed, prefix)
}
